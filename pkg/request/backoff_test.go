package request

import (
	"testing"
	"time"
)

func TestProviderBackoff_ExponentialDelay(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		baseDelay time.Duration
		maxDelay  time.Duration
		wantMinMs int64
		wantMaxMs int64
	}{
		{"First failure", 1, 1 * time.Second, 60 * time.Second, 1000, 1200},
		{"Second failure", 2, 1 * time.Second, 60 * time.Second, 2000, 2400},
		{"Third failure", 3, 1 * time.Second, 60 * time.Second, 4000, 4800},
		{"Max cap hit", 10, 1 * time.Second, 60 * time.Second, 60000, 66000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewProviderBackoff(tt.baseDelay, tt.maxDelay)

			// Simulate failures
			for i := 0; i < tt.failures; i++ {
				b.RecordFailure("test-provider")
			}

			fc, nextAllowed := b.GetState("test-provider")
			if fc != tt.failures {
				t.Errorf("failureCount = %d, want %d", fc, tt.failures)
			}

			delay := time.Until(nextAllowed)
			delayMs := delay.Milliseconds()

			// Allow some tolerance for jitter and timing
			if delayMs < tt.wantMinMs || delayMs > tt.wantMaxMs {
				t.Errorf("delay = %dms, want between %dms and %dms", delayMs, tt.wantMinMs, tt.wantMaxMs)
			}
		})
	}
}

func TestProviderBackoff_Recovery(t *testing.T) {
	b := NewProviderBackoff(1*time.Second, 60*time.Second)

	b.RecordFailure("provider")
	b.RecordFailure("provider")
	b.RecordFailure("provider")

	fc, _ := b.GetState("provider")
	if fc != 3 {
		t.Errorf("after 3 failures, count = %d, want 3", fc)
	}
	if b.Remaining("provider") <= 0 {
		t.Error("expected provider to be backing off")
	}

	b.RecordSuccess("provider")
	fc, _ = b.GetState("provider")
	if fc != 0 {
		t.Errorf("after success, count = %d, want 0", fc)
	}
	if d := b.Remaining("provider"); d != 0 {
		t.Errorf("after success, remaining = %v, want 0", d)
	}
}

func TestProviderBackoff_Expires(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	b := NewProviderBackoff(1*time.Second, 60*time.Second)
	b.now = func() time.Time { return now }

	b.RecordFailure("data.vatsim.net")
	if b.Remaining("data.vatsim.net") < time.Second {
		t.Fatal("expected at least base delay")
	}

	now = now.Add(2 * time.Second)
	if d := b.Remaining("data.vatsim.net"); d != 0 {
		t.Errorf("remaining after expiry = %v, want 0", d)
	}
}

func TestProviderBackoff_IsolatedProviders(t *testing.T) {
	b := NewProviderBackoff(1*time.Second, 60*time.Second)

	b.RecordFailure("data.vatsim.net")
	b.RecordFailure("data.vatsim.net")

	fc1, _ := b.GetState("data.vatsim.net")
	fc2, _ := b.GetState("metar.vatsim.net")

	if fc1 != 2 {
		t.Errorf("data failures = %d, want 2", fc1)
	}
	if fc2 != 0 {
		t.Errorf("metar failures = %d, want 0 (isolated)", fc2)
	}
}
