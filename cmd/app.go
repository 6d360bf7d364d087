package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/file"
	"github.com/kozaktomas/face-attendance/internal/database/mariadb"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/logging"
	"github.com/kozaktomas/face-attendance/internal/matcher"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/rs/zerolog"
)

// app holds the components shared by the commands.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	repo      database.RosterRepository
	store     *roster.Store
	camera    *camera.Client
	extractor *extractor.Client
	closers   []func() error
}

// newApp loads configuration, connects the configured backends and restores
// the roster.
func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, nil)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		log:       logger,
		camera:    camera.NewClient(cfg.Camera.URL, cfg.Camera.Timeout),
		extractor: extractor.NewClient(cfg.Embedding.URL, cfg.Embedding.Model),
	}

	if cfg.Database.URL != "" {
		fmt.Printf("Connecting to PostgreSQL database...\n")
		if err := postgres.Initialize(&cfg.Database); err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		a.closers = append(a.closers, postgres.GetGlobalPool().Close)
		if a.repo, err = database.GetRosterRepository(ctx); err != nil {
			a.close()
			return nil, err
		}
	} else {
		a.repo = file.NewRosterRepository(cfg.Roster.Path)
	}

	entries, err := a.repo.List(ctx)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("loading roster: %w", err)
	}
	a.store = roster.NewStore()
	if err := a.store.Load(entries); err != nil {
		a.close()
		return nil, fmt.Errorf("restoring roster: %w", err)
	}
	return a, nil
}

// openLedger opens the attendance ledger on the configured backend.
func (a *app) openLedger(ctx context.Context) (*ledger.Ledger, error) {
	loc, err := a.cfg.Ledger.Location()
	if err != nil {
		return nil, err
	}
	storage, err := a.ledgerStorage(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.Open(ctx, storage, ledger.Options{
		Location:     loc,
		FlushRetries: a.cfg.Ledger.FlushRetries,
		Logger:       a.log,
	})
}

func (a *app) ledgerStorage(ctx context.Context) (ledger.Storage, error) {
	switch a.cfg.Ledger.Backend {
	case database.BackendFile, "":
		return ledger.NewFileStorage(a.cfg.Ledger.Path)
	case database.BackendPostgres:
		if !database.IsPostgresInitialized() {
			return nil, errors.New("LEDGER_BACKEND=postgres requires DATABASE_URL")
		}
	case database.BackendMariaDB:
		pool, err := mariadb.Initialize(ctx, a.cfg.MariaDB.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
	}
	return database.GetAttendanceStorage(ctx, a.cfg.Ledger.Backend)
}

// matcher builds the matcher from the matching configuration.
func (a *app) matcher() (*matcher.Matcher, error) {
	metric, err := matcher.ParseMetric(a.cfg.Matching.Metric)
	if err != nil {
		return nil, err
	}
	tieBreak, err := matcher.ParseTieBreak(a.cfg.Matching.TieBreak)
	if err != nil {
		return nil, err
	}
	return matcher.New(metric, tieBreak, a.cfg.Matching.Threshold, a.cfg.Matching.IndexMinEntries), nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("closing backend")
		}
	}
	a.closers = nil
}
