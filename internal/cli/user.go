package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	userCreateCmd.Flags().StringVar(&userName, "name", "", "Display name")
	userCmd.AddCommand(userCreateCmd, userShowCmd)
	rootCmd.AddCommand(userCmd)
}

var userName string

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Create and inspect learners",
}

var userCreateCmd = &cobra.Command{
	Use:   "create ID",
	Short: "Register a learner with a full heart pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		u, err := d.Progress.RegisterUser(cmd.Context(), args[0], userName)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created learner %s with %d hearts\n", u.ID, u.Hearts)
		return nil
	},
}

var userShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a learner's hearts, XP and streak",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		ctx := cmd.Context()
		u, err := d.Progress.User(ctx, args[0])
		if err != nil {
			return err
		}
		st, err := d.Progress.LearnerState(ctx, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		name := st.DisplayName
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(out, "Learner:      %s (%s)\n", st.UserID, name)
		fmt.Fprintf(out, "Joined:       %s\n", humanize.Time(u.CreatedAt))
		hearts := fmt.Sprintf("%d/%d", st.Hearts, st.MaxHearts)
		if st.NextHeartRegeneration != nil {
			hearts += fmt.Sprintf(" (next %s)", humanize.RelTime(st.AsOf, *st.NextHeartRegeneration, "ago", "from now"))
		}
		fmt.Fprintf(out, "Hearts:       %s\n", hearts)
		fmt.Fprintf(out, "Level:        %d (%.0f%%, %s XP to next)\n",
			st.Level, st.LevelProgressPct, humanize.Comma(st.XPToNextLevel))
		fmt.Fprintf(out, "Total XP:     %s\n", humanize.Comma(st.TotalXP))
		fmt.Fprintf(out, "Today:        %s XP\n", humanize.Comma(st.TodayXP))
		fmt.Fprintf(out, "This week:    %s XP\n", humanize.Comma(st.WeeklyXP))
		fmt.Fprintf(out, "Streak:       %d days (longest %d, +%d%% bonus)\n",
			st.CurrentStreak, st.LongestStreak, st.StreakBonusPercent)
		if u.LastActivityDate != nil {
			fmt.Fprintf(out, "Last active:  %s\n", humanize.RelTime(*u.LastActivityDate, st.AsOf, "ago", "from now"))
		}
		fmt.Fprintf(out, "Lessons:      %s\n", humanize.Comma(int64(st.LessonsCompleted)))
		fmt.Fprintf(out, "Exercises:    %s\n", humanize.Comma(int64(st.ExercisesCompleted)))
		fmt.Fprintf(out, "As of:        %s\n", st.AsOf.Format(time.RFC3339))
		return nil
	},
}
