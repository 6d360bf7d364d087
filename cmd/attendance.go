package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/report"
	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Show who was present on a day",
	Long:  `Show the attendance records of one day (today by default) and who from the roster is absent.`,
	Args:  cobra.NoArgs,
	RunE:  runAttendance,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)

	attendanceCmd.Flags().String("date", "", "Day to show (YYYY-MM-DD, default today)")
}

func runAttendance(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	l, err := a.openLedger(ctx)
	if err != nil {
		return fmt.Errorf("opening attendance ledger: %w", err)
	}

	date := mustGetString(cmd, "date")
	if date == "" {
		date = l.Today()
	} else if _, err := time.Parse(ledger.DateLayout, date); err != nil {
		return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", date)
	}

	s := report.Summarize(a.store, l, date)
	fmt.Printf("Attendance for %s\n\n", s.Date)
	fmt.Printf("Present (%d):\n", len(s.Present))
	for _, p := range s.Present {
		fmt.Printf("  %s  %s\n", p.Time, p.Identity)
	}
	fmt.Printf("\nAbsent (%d):\n", len(s.Absent))
	for _, name := range s.Absent {
		fmt.Printf("  %s\n", name)
	}
	return nil
}
