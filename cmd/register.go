package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/enroll"
	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Register a person from the camera",
	Long: `Grab frames from the camera until a face is found and register the largest
face under the given name. Names are unique regardless of case and diacritics.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().Int("attempts", constants.DefaultEnrollAttempts, "Frames to inspect for a face before giving up")
}

func runRegister(cmd *cobra.Command, args []string) error {
	name := strings.Join(args, " ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	enroller := enroll.New(a.camera, a.extractor, a.store, a.repo, a.cfg.Camera.RetryInterval, a.log)

	fmt.Printf("Look at the camera (%s)...\n", a.camera.URL())
	entry, err := enroller.Capture(ctx, name, mustGetInt(cmd, "attempts"))
	if err != nil {
		return fmt.Errorf("registering %q: %w", name, err)
	}

	fmt.Printf("Successfully registered %s (%d-dimensional embedding)\n", entry.Identity, len(entry.Embedding))
	fmt.Printf("Roster: %d identities\n", a.store.Len())
	return nil
}
