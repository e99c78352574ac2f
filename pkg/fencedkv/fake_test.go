package fencedkv

import (
	"context"
	"testing"
	"time"
)

func TestBumpGeneration_Monotonic(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		gen, err := f.BumpGeneration(ctx, "m1")
		if err != nil {
			t.Fatalf("bump: %v", err)
		}
		if gen <= last {
			t.Fatalf("expected strictly increasing generation, got %d after %d", gen, last)
		}
		last = gen
	}
}

func TestWriteIfFresh_RejectsStaleGeneration(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	gen, _ := f.BumpGeneration(ctx, "m1")
	if err := f.WriteIfFresh(ctx, "m1", gen, "mh", "mh-a"); err != nil {
		t.Fatalf("expected fresh write to succeed: %v", err)
	}

	newGen, _ := f.BumpGeneration(ctx, "m1")
	if newGen <= gen {
		t.Fatalf("expected new generation > old")
	}

	if err := f.WriteIfFresh(ctx, "m1", gen, "mh", "mh-b"); err != ErrFencedOut {
		t.Fatalf("expected ErrFencedOut for stale generation, got %v", err)
	}
}

func TestConsumeNonce_RejectsReplay(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	if err := f.ConsumeNonce(ctx, "n1", time.Minute); err != nil {
		t.Fatalf("first consume should succeed: %v", err)
	}
	if err := f.ConsumeNonce(ctx, "n1", time.Minute); err != ErrReplayed {
		t.Fatalf("expected ErrReplayed on second consume, got %v", err)
	}
}
