package temporalx

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TEMPORAL_ADDRESS", "")
	t.Setenv("TEMPORAL_NAMESPACE_RETENTION_DAYS", "900")
	cfg := LoadConfig()
	if cfg.Enabled() {
		t.Fatalf("empty address should disable temporal")
	}
	if cfg.Namespace != "coursetrack" || cfg.TaskQueue != "coursetrack-sync" {
		t.Fatalf("defaults: namespace=%q queue=%q", cfg.Namespace, cfg.TaskQueue)
	}
	if cfg.NamespaceRetention != 7*24*time.Hour {
		t.Fatalf("out-of-range retention should fall back: got=%v", cfg.NamespaceRetention)
	}

	t.Setenv("TEMPORAL_ADDRESS", "temporal:7233")
	if !LoadConfig().Enabled() {
		t.Fatalf("address should enable temporal")
	}
}

func TestDialDisabled(t *testing.T) {
	c, err := Dial(context.Background(), nil, Config{})
	if err != nil || c != nil {
		t.Fatalf("disabled client: c=%v err=%v", c, err)
	}
}

func TestBackoffDoublesAndClamps(t *testing.T) {
	cfg := Config{DialBackoff: 100 * time.Millisecond, DialBackoffMax: time.Second}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{10, time.Second},
	}
	for _, tc := range cases {
		if got := cfg.Backoff(tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: want=%v got=%v", tc.attempt, tc.want, got)
		}
	}
	if got := (Config{}).Backoff(1); got != 250*time.Millisecond {
		t.Fatalf("default base: got=%v", got)
	}
}

func TestTLSConfigNeedsKeyPair(t *testing.T) {
	if _, err := (Config{ClientCAPath: "/tmp/ca.pem"}).tlsConfig(); err == nil {
		t.Fatalf("mTLS without cert and key should fail")
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	cfg := Config{DialBackoff: time.Millisecond}
	calls := 0
	err := Retry(context.Background(), cfg, time.Second, func(int) (bool, error) {
		calls++
		return false, errors.New("boom")
	})
	if err == nil || calls != 1 {
		t.Fatalf("permanent error: calls=%d err=%v", calls, err)
	}
}

func TestRetryUntilSuccess(t *testing.T) {
	cfg := Config{DialBackoff: time.Millisecond}
	calls := 0
	err := Retry(context.Background(), cfg, time.Second, func(attempt int) (bool, error) {
		calls++
		if attempt < 3 {
			return true, errors.New("unavailable")
		}
		return false, nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("retry: calls=%d err=%v", calls, err)
	}
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := Config{DialBackoff: time.Hour}
	err := Retry(ctx, cfg, time.Hour, func(int) (bool, error) { return true, errors.New("down") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
