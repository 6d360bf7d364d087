package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/kozaktomas/face-attendance/internal/enroll"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <directory>",
	Short: "Register people from a directory of photos",
	Long: `Register every image in a directory. The file name without extension is the
person's name, e.g. "Jane Doe.jpg". The largest face in each image is used.
People already in the roster are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}

var enrollExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".bmp": true,
}

// enrollFiles lists the images of dir sorted by name.
func enrollFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !enrollExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// labelFromFile turns "photos/Jane_Doe.jpg" into "Jane Doe".
func labelFromFile(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.TrimSpace(strings.ReplaceAll(base, "_", " "))
}

func runEnroll(cmd *cobra.Command, args []string) error {
	files, err := enrollFiles(args[0])
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No images found")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	enroller := enroll.New(a.camera, a.extractor, a.store, a.repo, a.cfg.Camera.RetryInterval, a.log)

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Registering"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var registered, skipped int
	var failures []string
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		label := labelFromFile(path)

		data, err := os.ReadFile(path)
		if err == nil {
			_, err = enroller.EnrollImage(ctx, label, data)
		}

		var dup *roster.DuplicateIdentityError
		switch {
		case err == nil:
			registered++
		case errors.As(err, &dup):
			skipped++
		default:
			failures = append(failures, fmt.Sprintf("%s: %v", filepath.Base(path), err))
		}
		bar.Add(1)
	}
	bar.Finish()

	fmt.Printf("\n\nRegistered: %d\n", registered)
	fmt.Printf("Already in roster: %d\n", skipped)
	if len(failures) > 0 {
		fmt.Printf("Failed: %d\n", len(failures))
		for _, f := range failures {
			fmt.Printf("  - %s\n", f)
		}
	}
	fmt.Printf("Roster: %d identities\n", a.store.Len())
	return ctx.Err()
}
