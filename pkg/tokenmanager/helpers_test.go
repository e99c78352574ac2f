package tokenmanager

import (
	"io"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/nbuckles13/dark-tower-sub010/internal/secret"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSecret(v string) secret.String {
	return secret.New(v)
}

type fakeToken struct {
	expiry time.Time
}

func (f *fakeToken) toOAuth2() *oauth2.Token {
	return &oauth2.Token{AccessToken: "x", Expiry: f.expiry}
}
