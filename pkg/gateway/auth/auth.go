// Package auth covers both ends of the console/service link: the console
// obtains bearer tokens through oauth2, the service checks them.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var ErrUnauthorized = errors.New("unauthorized")

// ClientConfig selects how the console authenticates. With an issuer and
// client id it runs the client-credentials flow; with only a static token it
// sends that token; with neither it sends nothing.
type ClientConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	StaticToken  string
	Scopes       []string
}

// HTTPClient wraps base so every request carries a bearer token. base keeps
// its timeout; the token endpoint is called through it as well.
func HTTPClient(ctx context.Context, cfg ClientConfig, base *http.Client) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	var src oauth2.TokenSource
	switch {
	case cfg.Issuer != "" && cfg.ClientID != "":
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     strings.TrimRight(cfg.Issuer, "/") + "/token",
			Scopes:       cfg.Scopes,
		}
		src = cc.TokenSource(ctx)
	case cfg.StaticToken != "":
		src = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.StaticToken, TokenType: "Bearer"})
	default:
		return base
	}

	client := oauth2.NewClient(ctx, src)
	client.Timeout = base.Timeout
	return client
}

// Validator checks a bearer token presented to the service.
type Validator interface {
	Validate(ctx context.Context, token string) (subject string, err error)
}

// StaticToken accepts exactly one shared token.
type StaticToken struct {
	token []byte
}

func NewStaticToken(token string) (*StaticToken, error) {
	if len(token) < 16 {
		return nil, errors.New("service api token must be at least 16 characters")
	}
	return &StaticToken{token: []byte(token)}, nil
}

func (s *StaticToken) Validate(ctx context.Context, token string) (string, error) {
	if token == "" || subtle.ConstantTimeCompare([]byte(token), s.token) != 1 {
		return "", ErrUnauthorized
	}
	return "console", nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
