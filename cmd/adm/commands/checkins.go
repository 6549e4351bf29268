package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/warp/habit-vault/checkin"
)

// profilesCommand lists a user's profiles with today's due state.
func profilesCommand(e *env) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List a user's check-in profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag("user", userID); err != nil {
				return err
			}
			a, err := e.get()
			if err != nil {
				return err
			}

			profiles, err := a.Service.ListProfiles(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if len(profiles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No profiles")
				return nil
			}

			today := a.Service.Today()
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tTITLE\tRECURRENCE\tACTIVE\tDUE TODAY")
			for _, p := range profiles {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\n",
					p.ID, p.Title, describeRecurrence(p.Recurrence), p.IsActive, p.Recurrence.IsCheckinDay(today))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	return cmd
}

func missingCommand(e *env) *cobra.Command {
	var userID, profileID string
	var window int

	cmd := &cobra.Command{
		Use:   "missing",
		Short: "List missed check-in days that can still be made up",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag("user", userID); err != nil {
				return err
			}
			if err := requireFlag("profile", profileID); err != nil {
				return err
			}
			a, err := e.get()
			if err != nil {
				return err
			}

			dates, err := a.Service.MissingDates(cmd.Context(), userID, checkin.ProfileID(profileID), window)
			if err != nil {
				return err
			}
			if len(dates) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing missing")
				return nil
			}
			for _, d := range dates {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", d, d.Weekday())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	cmd.Flags().StringVar(&profileID, "profile", "", "Profile id")
	cmd.Flags().IntVar(&window, "window", checkin.RemedialWindowDays, "Days to look back (1-3)")
	return cmd
}

func streakCommand(e *env) *cobra.Command {
	var userID, profileID string

	cmd := &cobra.Command{
		Use:   "streak",
		Short: "Show a profile's current streak and totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag("user", userID); err != nil {
				return err
			}
			if err := requireFlag("profile", profileID); err != nil {
				return err
			}
			a, err := e.get()
			if err != nil {
				return err
			}

			stats, err := a.Service.Stats(cmd.Context(), userID, checkin.ProfileID(profileID))
			if err != nil {
				return err
			}
			last := "never"
			if stats.LastCheckin != nil {
				last = stats.LastCheckin.String()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "streak: %d\nrecords: %d (%d remedial)\nrewards: %s\nlast check-in: %s\n",
				stats.CurrentStreak, stats.TotalRecords, stats.RemedialRecords, stats.TotalRewards, last)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	cmd.Flags().StringVar(&profileID, "profile", "", "Profile id")
	return cmd
}

func remindersCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "reminders",
		Short: "List reminders that are due now across all users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.get()
			if err != nil {
				return err
			}

			due, err := a.Service.PendingReminders(cmd.Context())
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "USER\tPROFILE\tTITLE\tAT")
			for _, r := range due {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Profile.UserID, r.Profile.ID, r.Profile.Title, r.Profile.ReminderTime)
			}
			return w.Flush()
		},
	}
}

func describeRecurrence(r checkin.RecurrenceRule) string {
	switch r.Type {
	case checkin.RecurWeekly:
		names := make([]string, 0, len(r.WeeklyDays))
		for _, d := range r.WeeklyDays {
			if d >= 0 && d <= 6 {
				names = append(names, weekdayNames[d])
			}
		}
		return "weekly(" + strings.Join(names, ",") + ")"
	case checkin.RecurCustom:
		return fmt.Sprintf("custom(%d dates)", len(r.CustomDates))
	default:
		return string(r.Type)
	}
}

var weekdayNames = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
