// Package progress applies the engagement rules to stored learner state.
// Every mutating operation reads, decides and writes inside one store
// transaction and is retried from scratch on a concurrent update.
package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/volo-kola/kola/internal/app/engagement"
	"github.com/volo-kola/kola/internal/domain"
	"github.com/volo-kola/kola/internal/infra/metrics"
)

// MaxAttempts bounds retries after domain.ErrConcurrentUpdate.
const MaxAttempts = 3

// Rules are the tunable accounting parameters.
type Rules struct {
	MaxHearts     int
	RegenInterval time.Duration
	// Location is the learner calendar used for day boundaries.
	Location *time.Location
}

// DefaultRules returns 5 hearts, 4h regeneration, Monrovia calendar.
func DefaultRules() Rules {
	loc, err := time.LoadLocation("Africa/Monrovia")
	if err != nil {
		loc = time.UTC
	}
	return Rules{
		MaxHearts:     engagement.DefaultMaxHearts,
		RegenInterval: engagement.DefaultRegenInterval,
		Location:      loc,
	}
}

// Service is the completion accounting engine.
type Service struct {
	store domain.Store
	rules Rules
	clock func() time.Time
	newID func() string
	log   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock injects the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

// NewService creates the accounting service over store.
func NewService(store domain.Store, rules Rules, opts ...Option) *Service {
	if rules.MaxHearts <= 0 {
		rules.MaxHearts = engagement.DefaultMaxHearts
	}
	if rules.Location == nil {
		rules.Location = time.UTC
	}
	s := &Service{
		store: store,
		rules: rules,
		clock: time.Now,
		newID: uuid.NewString,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rules returns the active accounting parameters.
func (s *Service) Rules() Rules { return s.rules }

// now is the current instant in the learner calendar.
func (s *Service) now() time.Time {
	return s.clock().In(s.rules.Location)
}

// withRetry runs fn in a fresh transaction, retrying the whole thing when
// the store reports a concurrent update. fn must rebuild all of its output
// on every call.
func (s *Service) withRetry(ctx context.Context, op string, fn func(tx domain.Tx, now time.Time) error) error {
	var err error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		now := s.now()
		err = s.store.InTx(ctx, func(tx domain.Tx) error {
			return fn(tx, now)
		})
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			return err
		}
		if attempt < MaxAttempts {
			metrics.TxRetries.WithLabelValues(op).Inc()
			s.log.Debug("retrying after concurrent update",
				zap.String("operation", op), zap.Int("attempt", attempt), zap.Error(err))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s: gave up after %d attempts: %w", op, MaxAttempts, err)
}

// requireID trims *id in place so stored and looked-up IDs agree.
func requireID(kind string, id *string) error {
	*id = strings.TrimSpace(*id)
	if *id == "" {
		return fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, kind)
	}
	if len(*id) > 128 {
		return fmt.Errorf("%w: %s longer than 128 bytes", domain.ErrInvalidInput, kind)
	}
	return nil
}
