package tokenmanager

import (
	"context"
	"testing"
	"time"
)

func TestStart_MissingCredentials(t *testing.T) {
	_, err := Start(context.Background(), Config{}, discardLogger(), nil)
	if err != ErrMissingCredentials {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestStart_InsecureScheme(t *testing.T) {
	cfg := Config{
		ClientID:     "client",
		ClientSecret: testSecret("secret"),
		Endpoint:     "http://example.com/token",
		RequireHTTPS: true,
	}
	_, err := Start(context.Background(), cfg, discardLogger(), nil)
	if err != ErrInsecureScheme {
		t.Fatalf("expected ErrInsecureScheme, got %v", err)
	}
}

func TestFromChannel_ReaderSeesPublishedValue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan string, 1)
	reader := FromChannel(ctx, ch)

	if got := reader.Token(); got != "" {
		t.Fatalf("expected empty token before publish, got %q", got)
	}

	ch <- "tok-1"
	deadline := time.Now().Add(time.Second)
	for reader.Token() == "" && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := reader.Token(); got != "tok-1" {
		t.Fatalf("expected tok-1, got %q", got)
	}
}

func TestRefreshDelay_FloorApplies(t *testing.T) {
	tok := &fakeToken{expiry: time.Now().Add(90 * time.Second)}
	delay := refreshDelay(tok.toOAuth2(), 1.0/3.0, 60*time.Second)
	if delay > 30*time.Second {
		t.Fatalf("expected delay <= 30s (90s lifetime - 60s floor), got %v", delay)
	}
}
