package mcsession

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nbuckles13/dark-tower-sub010/pkg/fencedkv"
)

func testSecret() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func TestNewBinder_RejectsShortSecret(t *testing.T) {
	if _, err := NewBinder([]byte("too-short"), time.Minute, 10, fencedkv.NewFake()); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestMint_ProducesOpaqueTwoPartToken(t *testing.T) {
	b, err := NewBinder(testSecret(), time.Minute, 10, fencedkv.NewFake())
	if err != nil {
		t.Fatalf("NewBinder: %v", err)
	}
	tok, err := b.Mint("participant-1", "meeting-1")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if strings.Count(tok, ".") != 1 {
		t.Fatalf("token %q does not have exactly one separator", tok)
	}
}

func TestDecode_RejectsTamperedSignature(t *testing.T) {
	b, err := NewBinder(testSecret(), time.Minute, 10, fencedkv.NewFake())
	if err != nil {
		t.Fatalf("NewBinder: %v", err)
	}
	tok, err := b.Mint("participant-1", "meeting-1")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	tampered := tok[:len(tok)-1] + "x"
	if _, err := b.decode(tampered); err != ErrBadSignature && err != ErrMalformed {
		t.Fatalf("decode(tampered) = %v, want a signature/malformed error", err)
	}
}

func TestReconnect_RejectsReplayedNonce(t *testing.T) {
	fenced := fencedkv.NewFake()
	b, err := NewBinder(testSecret(), time.Minute, 10, fenced)
	if err != nil {
		t.Fatalf("NewBinder: %v", err)
	}
	tok, err := b.Mint("participant-1", "meeting-1")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	resolve := func(ctx context.Context, meetingID string) (string, int64, error) {
		return "mc-1", 1, nil
	}

	if _, err := b.Reconnect(context.Background(), tok, 0, "mc-1", 1, 3, resolve); err != nil {
		t.Fatalf("first Reconnect: %v", err)
	}
	if _, err := b.Reconnect(context.Background(), tok, 0, "mc-1", 1, 3, resolve); err != ErrReplayed {
		t.Fatalf("second Reconnect error = %v, want ErrReplayed", err)
	}
}

func TestReconnect_RedirectsOnReassignment(t *testing.T) {
	b, err := NewBinder(testSecret(), time.Minute, 10, fencedkv.NewFake())
	if err != nil {
		t.Fatalf("NewBinder: %v", err)
	}
	tok, err := b.Mint("participant-1", "meeting-1")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	resolve := func(ctx context.Context, meetingID string) (string, int64, error) {
		return "mc-2", 2, nil
	}

	result, err := b.Reconnect(context.Background(), tok, 0, "mc-1", 1, 3, resolve)
	if err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if result.Outcome != OutcomeRedirected || result.Redirect == nil || result.Redirect.NewMC != "mc-2" {
		t.Fatalf("result = %+v, want redirect to mc-2", result)
	}
}

func TestReconnect_FullRejoinBeyondRecoveryBuffer(t *testing.T) {
	b, err := NewBinder(testSecret(), time.Minute, 5, fencedkv.NewFake())
	if err != nil {
		t.Fatalf("NewBinder: %v", err)
	}
	tok, err := b.Mint("participant-1", "meeting-1")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	resolve := func(ctx context.Context, meetingID string) (string, int64, error) {
		return "mc-1", 1, nil
	}

	result, err := b.Reconnect(context.Background(), tok, 0, "mc-1", 1, 100, resolve)
	if err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if !result.FullRejoin {
		t.Error("expected FullRejoin=true when gap exceeds recovery buffer")
	}
}

func TestReconnect_RejectsExpiredToken(t *testing.T) {
	b, err := NewBinder(testSecret(), time.Millisecond, 10, fencedkv.NewFake())
	if err != nil {
		t.Fatalf("NewBinder: %v", err)
	}
	tok, err := b.Mint("participant-1", "meeting-1")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	resolve := func(ctx context.Context, meetingID string) (string, int64, error) {
		return "mc-1", 1, nil
	}
	if _, err := b.Reconnect(context.Background(), tok, 0, "mc-1", 1, 3, resolve); err != ErrExpired {
		t.Fatalf("Reconnect error = %v, want ErrExpired", err)
	}
}
