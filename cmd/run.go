package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-attendance/internal/enroll"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
	"github.com/kozaktomas/face-attendance/internal/render"
	"github.com/kozaktomas/face-attendance/internal/report"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start marking attendance",
	Long: `Start the attendance loop. Frames are pulled from CAMERA_URL, faces are
matched against the roster and every recognized person is recorded once per day.
The loop keeps retrying while the camera is unreachable and stops on Ctrl+C.

With WEB_PORT set, an HTTP API exposes the roster, the attendance ledger, the
latest annotated frame and a live event stream.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("port", 0, "Port for the HTTP API (overrides WEB_PORT, 0 keeps it)")
	runCmd.Flags().Int("workers", 0, "Observations matched concurrently per frame (overrides MATCH_WORKERS)")
	runCmd.Flags().Bool("no-report", false, "Disable the daily attendance summary")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if port := mustGetInt(cmd, "port"); port > 0 {
		a.cfg.Web.Port = port
	}
	if workers := mustGetInt(cmd, "workers"); workers > 0 {
		a.cfg.Matching.Workers = workers
	}

	l, err := a.openLedger(ctx)
	if err != nil {
		return fmt.Errorf("opening attendance ledger: %w", err)
	}
	m, err := a.matcher()
	if err != nil {
		return err
	}

	frames := render.NewLatest()
	p := pipeline.New(a.camera, a.extractor, a.store, m, l, frames, pipeline.Options{
		RetryInterval: a.cfg.Camera.RetryInterval,
		AlertAfter:    a.cfg.Camera.AlertAfter,
		Workers:       a.cfg.Matching.Workers,
	}, a.log)

	fmt.Printf("Roster: %d identities\n", a.store.Len())
	fmt.Printf("Camera: %s\n", a.camera.URL())
	fmt.Printf("Matching: %s, threshold %.2f, tie-break %s\n",
		a.cfg.Matching.Metric, a.cfg.Matching.Threshold, a.cfg.Matching.TieBreak)
	if a.store.Len() == 0 {
		fmt.Println("Warning: roster is empty, every face will be reported as Unknown")
	}

	if a.cfg.Report.At != "" && !mustGetBool(cmd, "no-report") {
		sched, err := report.NewScheduler(a.cfg.Report.At, l.Location(), a.store, l, a.log, nil)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
		fmt.Printf("Daily summary at %s (next %s)\n", a.cfg.Report.At, sched.NextRun().Format(time.DateTime))
	}

	var server *web.Server
	serverErr := make(chan error, 1)
	if a.cfg.Web.Port > 0 {
		enroller := enroll.New(a.camera, a.extractor, a.store, a.repo, a.cfg.Camera.RetryInterval, a.log)
		server = web.NewServer(web.Deps{
			Store:    a.store,
			Ledger:   l,
			Pipeline: p,
			Frames:   frames,
			Enroller: enroller,
		}, a.cfg.Web.Host, a.cfg.Web.Port, a.cfg.Web.AllowedOrigins, a.log)

		go func() {
			serverErr <- server.Start()
		}()
		fmt.Printf("HTTP API on http://%s:%d/api/v1\n", a.cfg.Web.Host, a.cfg.Web.Port)
	}

	fmt.Println("Press Ctrl+C to stop")

	pipelineDone := make(chan error, 1)
	go func() {
		pipelineDone <- p.Run(ctx)
	}()

	var runErr error
	select {
	case runErr = <-pipelineDone:
	case err := <-serverErr:
		if err != nil {
			runErr = err
			stop()
			<-pipelineDone
		}
	}

	fmt.Println("\nShutting down...")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}

	stats := p.Stats()
	fmt.Printf("Frames: %d, recorded: %d, unknown faces: %d\n", stats.Frames, stats.Recorded, stats.Unknown)
	if l.Dirty() {
		runErr = errors.Join(runErr, errors.New("some attendance records could not be persisted"))
	}
	return runErr
}
