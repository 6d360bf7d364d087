package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/rs/zerolog"
)

func TestOpenLedger_UnknownTimezone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.csv")
	a := &app{
		cfg: &config.Config{Ledger: config.LedgerConfig{
			Path:     path,
			Timezone: "Mars/Olympus",
		}},
		log: zerolog.Nop(),
	}

	l, err := a.openLedger(context.Background())
	if err == nil {
		t.Fatalf("expected an error for an unknown timezone, got ledger %v", l)
	}
	if !strings.Contains(err.Error(), "Mars/Olympus") {
		t.Errorf("error should name the zone, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Errorf("ledger file must not be created, stat returned %v", statErr)
	}
}

func TestOpenLedger_ValidTimezone(t *testing.T) {
	a := &app{
		cfg: &config.Config{Ledger: config.LedgerConfig{
			Path:     filepath.Join(t.TempDir(), "attendance.csv"),
			Timezone: "UTC",
		}},
		log: zerolog.Nop(),
	}

	l, err := a.openLedger(context.Background())
	if err != nil {
		t.Fatalf("openLedger: %v", err)
	}
	if got := l.Location().String(); got != "UTC" {
		t.Errorf("expected ledger in UTC, got %s", got)
	}
}
