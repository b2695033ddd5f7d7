package main

import (
	"testing"
	"time"
)

func TestRetryLaterDoesNotBlockCaller(t *testing.T) {
	published := make(chan struct{})

	start := time.Now()
	retryLater(50*time.Millisecond, func() error {
		close(published)
		return nil
	})
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Fatalf("retryLater blocked the caller for %v", elapsed)
	}

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("publish never fired")
	}
}

func TestBackoffDoubles(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Minute},
		{1, 2 * time.Minute},
		{2, 4 * time.Minute},
		{3, 8 * time.Minute},
	}
	for _, c := range cases {
		if got := backoff(c.attempt); got != c.want {
			t.Errorf("backoff(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}
