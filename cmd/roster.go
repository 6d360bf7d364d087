package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "List registered people",
	Args:  cobra.NoArgs,
	RunE:  runRoster,
}

func init() {
	rootCmd.AddCommand(rosterCmd)
}

func runRoster(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.close()

	entries := a.store.Entries()
	if len(entries) == 0 {
		fmt.Println("Roster is empty. Use 'register' or 'enroll' to add people.")
		return nil
	}

	fmt.Printf("%-4s %-32s %-5s %s\n", "#", "NAME", "DIM", "REGISTERED")
	for i, e := range entries {
		fmt.Printf("%-4d %-32s %-5d %s\n", i+1, e.Identity, len(e.Embedding), e.RegisteredAt.Local().Format(time.DateTime))
	}
	fmt.Printf("\nTotal: %d\n", len(entries))
	return nil
}
