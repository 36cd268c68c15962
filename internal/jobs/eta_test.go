package jobs

import (
	"testing"
	"time"
)

// TestETAWithheldUntilUnitsAdvance requires a real sample before estimating.
func TestETAWithheldUntilUnitsAdvance(t *testing.T) {
	est := newETAEstimator(5)
	if eta := est.Add(0, 0, 100); eta != nil {
		t.Fatalf("first sample eta = %v, want nil", *eta)
	}
	if eta := est.Add(time.Second, 0, 100); eta != nil {
		t.Fatalf("stalled eta = %v, want nil", *eta)
	}

	eta := est.Add(2*time.Second, 10, 100)
	if eta == nil {
		t.Fatal("expected an estimate once units advanced")
	}
	// 2s for 10 units, 90 remaining.
	if *eta != 18*time.Second {
		t.Fatalf("eta = %v, want 18s", *eta)
	}
}

// TestETAUsesSlidingWindow drops samples older than the window.
func TestETAUsesSlidingWindow(t *testing.T) {
	est := newETAEstimator(2)
	est.Add(0, 0, 100)
	est.Add(10*time.Second, 10, 100)
	est.Add(11*time.Second, 20, 100)
	eta := est.Add(12*time.Second, 30, 100)
	if eta == nil {
		t.Fatal("expected estimate")
	}
	// Window covers 10s..12s for 20 units.
	if *eta != 7*time.Second {
		t.Fatalf("eta = %v, want 7s", *eta)
	}
}

// TestETASeedIgnoresResumedWork measures speed from the resume point.
func TestETASeedIgnoresResumedWork(t *testing.T) {
	est := newETAEstimator(5)
	est.Seed(0, 30)
	if eta := est.Add(0, 30, 60); eta != nil {
		t.Fatalf("eta = %v, want nil right after resume", *eta)
	}
	eta := est.Add(5*time.Second, 40, 60)
	if eta == nil || *eta != 10*time.Second {
		t.Fatalf("eta = %v, want 10s", eta)
	}
}

// TestETAFirstSampleEstimates measures speed from the start of a fresh run.
func TestETAFirstSampleEstimates(t *testing.T) {
	est := newETAEstimator(5)
	eta := est.Add(2*time.Second, 1, 4)
	if eta == nil || *eta != 6*time.Second {
		t.Fatalf("eta = %v, want 6s", eta)
	}

	single := newETAEstimator(5)
	eta = single.Add(3*time.Second, 1, 1)
	if eta == nil || *eta != 0 {
		t.Fatalf("single-unit eta = %v, want 0", eta)
	}
}
