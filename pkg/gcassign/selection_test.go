package gcassign

import "testing"

func TestSelectWeighted_SingleCandidate(t *testing.T) {
	cands := []candidate{{ControllerID: "mc-1", LoadRatio: 0.5}}
	got := selectWeighted(cands)
	if got.ControllerID != "mc-1" {
		t.Fatalf("expected mc-1, got %s", got.ControllerID)
	}
}

func TestSelectWeighted_AllAtCapacityFallsBackToLeastLoaded(t *testing.T) {
	cands := []candidate{
		{ControllerID: "mc-1", LoadRatio: 1.0},
		{ControllerID: "mc-2", LoadRatio: 1.0},
	}
	got := selectWeighted(cands)
	if got.ControllerID != "mc-1" {
		t.Fatalf("expected deterministic fallback to first candidate, got %s", got.ControllerID)
	}
}

func TestSelectWeighted_NeverPicksFullyLoadedOverIdle(t *testing.T) {
	cands := []candidate{
		{ControllerID: "full", LoadRatio: 0.99},
		{ControllerID: "idle", LoadRatio: 0.0},
	}
	counts := map[string]int{}
	for i := 0; i < 200; i++ {
		got := selectWeighted(cands)
		counts[got.ControllerID]++
	}
	if counts["idle"] <= counts["full"] {
		t.Fatalf("expected idle candidate to be picked more often, got counts %v", counts)
	}
}

func TestLeastLoaded(t *testing.T) {
	cands := []candidate{
		{ControllerID: "mc-1", LoadRatio: 0.8},
		{ControllerID: "mc-2", LoadRatio: 0.3},
		{ControllerID: "mc-3", LoadRatio: 0.6},
	}
	got := leastLoaded(cands)
	if got.ControllerID != "mc-2" {
		t.Fatalf("expected mc-2 (lowest load), got %s", got.ControllerID)
	}
}
