package server

import (
	"testing"
	"time"
)

func TestIsDueDaily(t *testing.T) {
	if !isDue("@daily", nil) {
		t.Fatalf("brief with no prior run should be due")
	}
	recent := time.Now().Add(-time.Hour)
	if isDue("@daily", &recent) {
		t.Fatalf("daily brief fired again within the hour")
	}
	old := time.Now().Add(-25 * time.Hour)
	if !isDue("@daily", &old) {
		t.Fatalf("daily brief not due after 25h")
	}
}

func TestIsDueHourly(t *testing.T) {
	recent := time.Now().Add(-30 * time.Minute)
	if isDue("@hourly", &recent) {
		t.Fatalf("hourly brief fired again within 30m")
	}
	old := time.Now().Add(-61 * time.Minute)
	if !isDue("@hourly", &old) {
		t.Fatalf("hourly brief not due after 61m")
	}
}

func TestIsDueCronExpression(t *testing.T) {
	// Every minute: any last run older than a minute is due.
	old := time.Now().Add(-2 * time.Minute)
	if !isDue("* * * * *", &old) {
		t.Fatalf("every-minute brief not due after 2m")
	}
	if !isDue("* * * * *", nil) {
		t.Fatalf("every-minute brief with no prior run should be due")
	}

	// Yearly schedule: a run from a few minutes ago means the next firing
	// is far in the future.
	recent := time.Now().Add(-5 * time.Minute)
	if isDue("0 0 1 1 *", &recent) {
		t.Fatalf("yearly brief due minutes after firing")
	}
}

func TestIsDueInvalidSpecFallsBackToDaily(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	if isDue("not a cron spec", &recent) {
		t.Fatalf("invalid spec fired within the hour")
	}
	old := time.Now().Add(-25 * time.Hour)
	if !isDue("not a cron spec", &old) {
		t.Fatalf("invalid spec not due after 25h")
	}
}
