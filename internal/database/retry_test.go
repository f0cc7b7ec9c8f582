package database

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		errors int
		want   time.Duration
	}{
		{0, 250 * time.Millisecond},
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{4, 4 * time.Second},
		{5, 5 * time.Second},
		{30, 5 * time.Second},
	}

	for _, tt := range tests {
		if got := CalculateBackoff(tt.errors); got != tt.want {
			t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.errors, got, tt.want)
		}
	}
}

func TestPingWithRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	ping := func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := PingWithRetry(ctx, "postgres", ping); err != nil {
		t.Fatalf("PingWithRetry() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("ping called %d times, want 3", calls)
	}
}

func TestPingWithRetry_ReturnsLastErrorWhenContextEnds(t *testing.T) {
	pingErr := errors.New("connection refused")
	ping := func(context.Context) error { return pingErr }

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := PingWithRetry(ctx, "redis", ping)
	if !errors.Is(err, pingErr) {
		t.Errorf("PingWithRetry() error = %v, want wrapped ping error", err)
	}
}
