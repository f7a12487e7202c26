package diag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/jpalmerr/watchboard/monitor"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Category
	}{
		{context.Canceled, Cancellation},
		{fmt.Errorf("build: %w", context.DeadlineExceeded), Cancellation},
		{fmt.Errorf("%w: processor missing", ErrMalformed), Malformed},
		{fmt.Errorf("field X: %w", monitor.ErrMalformedTag), Malformed},
		{errors.New("boom"), Unknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestSink_ReportLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	sink := NewSink(logger, map[Category]slog.Level{Malformed: slog.LevelError})

	sink.Report("skipping member", fmt.Errorf("%w: bad", ErrMalformed), "member", "Player.Score")
	sink.Report("discovery cancelled", context.Canceled)

	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "member=Player.Score") {
		t.Errorf("malformed report not logged at ERROR: %s", out)
	}
	if strings.Contains(out, "discovery cancelled") {
		t.Errorf("cancellation logged above DEBUG: %s", out)
	}
}

func TestParseCategoryAndLevel(t *testing.T) {
	if c, err := ParseCategory(" Malformed "); err != nil || c != Malformed {
		t.Errorf("ParseCategory() = %q, %v", c, err)
	}
	if _, err := ParseCategory("fatal"); err == nil {
		t.Error("ParseCategory(fatal): expected error")
	}
	if l, err := ParseLevel("warn"); err != nil || l != slog.LevelWarn {
		t.Errorf("ParseLevel() = %v, %v", l, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel(loud): expected error")
	}
}
