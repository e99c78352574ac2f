// Package tokenmanager implements the service-to-service OAuth token
// manager (C1): a single background refresher per process holding a
// broadcast cell of the current bearer token, read by every internal RPC
// client without locking.
package tokenmanager

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/nbuckles13/dark-tower-sub010/internal/secret"
)

// Config describes how to obtain and refresh the service token.
type Config struct {
	ClientID     string
	ClientSecret secret.String
	Endpoint     string // token endpoint URL
	Scopes       []string

	// RequireHTTPS rejects a non-https Endpoint at Start.
	RequireHTTPS bool

	// RefreshThresholdFraction of the token lifetime to refresh before
	// expiry; default 1/3 if zero.
	RefreshThresholdFraction float64
	// RefreshThresholdFloor is the minimum refresh lead time; default 60s
	// if zero.
	RefreshThresholdFloor time.Duration

	// BackoffBase/BackoffCap bound the retry backoff on refresh failure.
	// Defaults: 1s / 60s.
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

func (c Config) validate() error {
	if c.ClientID == "" || c.ClientSecret.Expose() == "" || c.Endpoint == "" {
		return ErrMissingCredentials
	}
	if c.RequireHTTPS && !strings.HasPrefix(c.Endpoint, "https://") {
		return ErrInsecureScheme
	}
	return nil
}

// Errors returned by Start.
var (
	ErrMissingCredentials = errors.New("tokenmanager: missing client_id, client_secret, or endpoint")
	ErrInsecureScheme     = errors.New("tokenmanager: endpoint must use https")
)

// RefreshStatus is the enumerated outcome of one refresh attempt.
type RefreshStatus string

const (
	RefreshSuccess RefreshStatus = "success"
	RefreshError   RefreshStatus = "error"
)

// RefreshErrorKind is a bounded, cardinality-safe label describing why a
// refresh failed. Raw error strings never leave the manager.
type RefreshErrorKind string

const (
	ErrorKindNone       RefreshErrorKind = ""
	ErrorKindNetwork    RefreshErrorKind = "network"
	ErrorKindAuthDenied RefreshErrorKind = "auth_denied"
	ErrorKindOther      RefreshErrorKind = "other"
)

// RefreshEvent is fired exactly once per refresh attempt.
type RefreshEvent struct {
	Status    RefreshStatus
	Duration  time.Duration
	ErrorKind RefreshErrorKind
}

// OnRefresh is called after every refresh attempt, success or failure.
type OnRefresh func(RefreshEvent)

// cell is the broadcast cell's immutable payload. Readers load a *cell
// atomically; only the refresher goroutine ever stores a new one.
type cell struct {
	token     string
	expiresAt time.Time
}

// Manager owns the refresh goroutine and the broadcast cell.
type Manager struct {
	current atomic.Pointer[cell]
	cancel  context.CancelFunc
	done    chan struct{}
}

// Reader is a cheap, cloneable handle onto the manager's current token.
type Reader struct {
	current *atomic.Pointer[cell]
}

// Token returns the most recently published token. Non-blocking, never
// returns an empty value once Start has succeeded at least once.
func (r *Reader) Token() string {
	c := r.current.Load()
	if c == nil {
		return ""
	}
	return c.token
}

// Start launches the background refresher and returns a Reader. It blocks
// until the first token exchange succeeds or the context is cancelled,
// so callers never observe an empty Reader in steady-state operation.
func Start(ctx context.Context, cfg Config, logger *slog.Logger, onRefresh OnRefresh) (*Reader, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if onRefresh == nil {
		onRefresh = func(RefreshEvent) {}
	}

	threshold := cfg.RefreshThresholdFraction
	if threshold <= 0 {
		threshold = 1.0 / 3.0
	}
	floor := cfg.RefreshThresholdFloor
	if floor <= 0 {
		floor = 60 * time.Second
	}
	base := cfg.BackoffBase
	if base <= 0 {
		base = time.Second
	}
	cap_ := cfg.BackoffCap
	if cap_ <= 0 {
		cap_ = 60 * time.Second
	}

	oauthCfg := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret.Expose(),
		TokenURL:     cfg.Endpoint,
		Scopes:       cfg.Scopes,
	}

	mgrCtx, cancel := context.WithCancel(ctx)
	m := &Manager{cancel: cancel, done: make(chan struct{})}

	firstTokenCh := make(chan struct{})
	go m.run(mgrCtx, oauthCfg, threshold, floor, base, cap_, logger, onRefresh, firstTokenCh)

	select {
	case <-firstTokenCh:
	case <-mgrCtx.Done():
		return nil, mgrCtx.Err()
	}

	return &Reader{current: &m.current}, nil
}

// Stop cancels the refresher. Readers retain the last published value.
func (m *Manager) Stop() {
	m.cancel()
	<-m.done
}

func (m *Manager) run(ctx context.Context, oauthCfg *clientcredentials.Config, threshold float64, floor, base, cap_ time.Duration, logger *slog.Logger, onRefresh OnRefresh, firstTokenCh chan struct{}) {
	defer close(m.done)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.MaxInterval = cap_
	b.Multiplier = 2
	b.RandomizationFactor = 0.2 // ±20% jitter

	first := true
	for {
		start := time.Now()
		tok, err := oauthCfg.Token(ctx)
		dur := time.Since(start)

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			kind := classifyErr(err)
			logger.Warn("token refresh failed", "error_kind", kind, "error", err)
			onRefresh(RefreshEvent{Status: RefreshError, Duration: dur, ErrorKind: kind})

			wait := b.NextBackOff()
			if wait == backoff.Stop {
				wait = cap_
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
			continue
		}

		b.Reset()
		m.current.Store(&cell{token: tok.AccessToken, expiresAt: tok.Expiry})
		onRefresh(RefreshEvent{Status: RefreshSuccess, Duration: dur})

		if first {
			close(firstTokenCh)
			first = false
		}

		wait := refreshDelay(tok, threshold, floor)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

func refreshDelay(tok *oauth2.Token, threshold float64, floor time.Duration) time.Duration {
	if tok.Expiry.IsZero() {
		return floor
	}
	lifetime := time.Until(tok.Expiry)
	lead := time.Duration(float64(lifetime) * threshold)
	if lead < floor {
		lead = floor
	}
	delay := lifetime - lead
	if delay < 0 {
		delay = 0
	}
	return delay
}

func classifyErr(err error) RefreshErrorKind {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode == 401 {
			return ErrorKindAuthDenied
		}
		return ErrorKindOther
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return ErrorKindNetwork
	}
	return ErrorKindOther
}

// FromChannel builds a Reader backed by values pushed over ch, bypassing
// the OAuth exchange entirely. Used in tests.
func FromChannel(ctx context.Context, ch <-chan string) *Reader {
	var ptr atomic.Pointer[cell]
	go func() {
		for {
			select {
			case tok, ok := <-ch:
				if !ok {
					return
				}
				ptr.Store(&cell{token: tok, expiresAt: time.Now().Add(time.Hour)})
			case <-ctx.Done():
				return
			}
		}
	}()
	return &Reader{current: &ptr}
}
