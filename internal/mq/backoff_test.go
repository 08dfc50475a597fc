package mq

import (
	"testing"
	"time"
)

func TestDefaultBackoff(t *testing.T) {
	p := DefaultBackoff()

	if p.Kind != BackoffConstant {
		t.Errorf("expected constant backoff, got %q", p.Kind)
	}
	if p.Delay != 2*time.Second {
		t.Errorf("expected 2s delay, got %v", p.Delay)
	}
}

func TestBackoffPolicy_Constant(t *testing.T) {
	b := BackoffPolicy{Kind: BackoffConstant, Delay: 300 * time.Millisecond}.New()

	for i := 0; i < 5; i++ {
		if d := nextDelay(b); d != 300*time.Millisecond {
			t.Errorf("attempt %d: expected 300ms, got %v", i, d)
		}
	}
}

func TestBackoffPolicy_ExponentialCapped(t *testing.T) {
	p := BackoffPolicy{Kind: BackoffExponential, Delay: 100 * time.Millisecond, MaxDelay: time.Second}
	b := p.New()

	// jitter ±50% вокруг текущего интервала
	limit := time.Duration(float64(p.MaxDelay) * 1.5)

	var last time.Duration
	for i := 0; i < 50; i++ {
		last = nextDelay(b)
		if last <= 0 {
			t.Fatalf("attempt %d: expected positive delay, got %v", i, last)
		}
		if last > limit {
			t.Fatalf("attempt %d: delay %v exceeds cap %v", i, last, limit)
		}
	}
	if last < p.MaxDelay/2 {
		t.Errorf("expected delay to grow towards cap, got %v", last)
	}
}

func TestBackoffPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  BackoffPolicy
		wantErr bool
	}{
		{"constant", BackoffPolicy{Kind: BackoffConstant, Delay: time.Second}, false},
		{"exponential", BackoffPolicy{Kind: BackoffExponential, Delay: time.Second, MaxDelay: time.Minute}, false},
		{"empty kind", BackoffPolicy{}, false},
		{"unknown kind", BackoffPolicy{Kind: "linear"}, true},
		{"negative delay", BackoffPolicy{Kind: BackoffConstant, Delay: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
