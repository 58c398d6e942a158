package cron_test

import (
	"errors"
	"testing"
	"time"

	"github.com/huffmsa/nuts"
	"github.com/huffmsa/nuts/cron"
)

func TestParseSchedule(t *testing.T) {
	from := time.Date(2025, 1, 6, 1, 0, 0, 0, time.UTC)

	tests := []struct {
		expr string
		want time.Time
	}{
		{"0 2 * * *", time.Date(2025, 1, 6, 2, 0, 0, 0, time.UTC)},
		{"30 0 2 * * *", time.Date(2025, 1, 6, 2, 0, 30, 0, time.UTC)},
		{"0 0 2 * * * *", time.Date(2025, 1, 6, 2, 0, 0, 0, time.UTC)},
		{"@hourly", time.Date(2025, 1, 6, 2, 0, 0, 0, time.UTC)},
		{"@every 90s", from.Add(90 * time.Second)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := cron.NextRun(tt.expr, from)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("NextRun = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseSchedule_Invalid(t *testing.T) {
	for _, expr := range []string{"nope", "0 0 2 * * * 2026", "61 * * * *"} {
		if _, err := cron.ParseSchedule(expr); !errors.Is(err, nuts.ErrInvalidSchedule) {
			t.Errorf("%q: expected ErrInvalidSchedule, got %v", expr, err)
		}
	}
	if err := cron.ValidateSchedule(""); err != nil {
		t.Fatalf("empty expression means not recurring: %v", err)
	}
}
