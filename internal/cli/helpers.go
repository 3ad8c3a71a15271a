package cli

import (
	"context"
	"strings"

	"github.com/volo-kola/kola/internal/daemon"
)

// openDaemon builds the runtime for one-shot commands. Logging is kept to
// errors so command output stays readable.
func openDaemon(ctx context.Context) (*daemon.Daemon, error) {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return nil, err
	}
	cfg.Logging.Level = "error"
	cfg.Logging.Format = "console"
	return daemon.NewWithConfig(ctx, cfg)
}

// bar renders n as a run of blocks scaled against max.
func bar(n, max int64, width int) string {
	if n <= 0 || max <= 0 {
		return ""
	}
	w := int(n * int64(width) / max)
	if w == 0 {
		w = 1
	}
	return strings.Repeat("█", w)
}
