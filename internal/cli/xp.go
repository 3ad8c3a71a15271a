package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/volo-kola/kola/internal/app/progress"
	"github.com/volo-kola/kola/internal/domain"
)

func init() {
	xpChartCmd.Flags().IntVar(&chartDays, "days", progress.DefaultChartDays, "Number of trailing days")
	leaderboardCmd.Flags().StringVar(&boardPeriod, "period", string(domain.PeriodWeek), "day, week or all")
	leaderboardCmd.Flags().IntVar(&boardLimit, "limit", progress.DefaultLeaderboardLimit, "Number of learners")
	xpCmd.AddCommand(xpChartCmd, leaderboardCmd)
	rootCmd.AddCommand(xpCmd)
}

var (
	chartDays   int
	boardPeriod string
	boardLimit  int
)

var xpCmd = &cobra.Command{
	Use:   "xp",
	Short: "XP charts and leaderboards",
}

var xpChartCmd = &cobra.Command{
	Use:   "chart ID",
	Short: "Print a learner's daily XP for the trailing days",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		chart, err := d.Progress.XPChart(cmd.Context(), args[0], chartDays)
		if err != nil {
			return err
		}
		var peak, total int64
		for _, b := range chart {
			total += b.XP
			if b.XP > peak {
				peak = b.XP
			}
		}

		out := cmd.OutOrStdout()
		for _, b := range chart {
			fmt.Fprintf(out, "%s %6s %s\n", b.Date, humanize.Comma(b.XP), bar(b.XP, peak, 40))
		}
		fmt.Fprintf(out, "Total: %s XP over %d days\n", humanize.Comma(total), len(chart))
		return nil
	},
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Print the XP leaderboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		period, err := domain.ParseLeaderboardPeriod(boardPeriod)
		if err != nil {
			return err
		}
		d, err := openDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		entries, err := d.Progress.Leaderboard(cmd.Context(), period, boardLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No XP earned in this period.")
			return nil
		}
		for _, e := range entries {
			name := e.DisplayName
			if name == "" {
				name = e.UserID
			}
			fmt.Fprintf(out, "%3s  %-24s %8s XP\n", humanize.Ordinal(e.Rank), name, humanize.Comma(e.XP))
		}
		return nil
	},
}
