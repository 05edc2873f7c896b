package integrations

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"

	"github.com/fielddesk/fielddesk/internal/pkg/env"
)

// BaseURL returns the externally reachable application URL used for OAuth
// redirects and webhook addresses.
func BaseURL() string {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}
	return base
}

// GoogleOAuthConfig builds a per-request OAuth config for Google APIs. The
// config is constructed from explicit env credentials rather than a process
// singleton so tests can substitute fake providers.
func GoogleOAuthConfig(redirectPath string, scopes ...string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     env.GetEnv("GOOGLE_CLIENT_ID", ""),
		ClientSecret: env.GetEnv("GOOGLE_CLIENT_SECRET", ""),
		Endpoint:     google.Endpoint,
		RedirectURL:  BaseURL() + redirectPath,
		Scopes:       scopes,
	}
}

// MicrosoftOAuthConfig builds a per-request OAuth config for Microsoft Graph.
func MicrosoftOAuthConfig(redirectPath string, scopes ...string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     env.GetEnv("MICROSOFT_CLIENT_ID", ""),
		ClientSecret: env.GetEnv("MICROSOFT_CLIENT_SECRET", ""),
		Endpoint:     microsoft.AzureADEndpoint("common"),
		RedirectURL:  BaseURL() + redirectPath,
		Scopes:       scopes,
	}
}

// refreshTokens runs the provider's refresh grant through the oauth2 config.
// Revoked or expired refresh tokens surface as ErrReauthRequired so callers
// can prompt for reconnection instead of retrying.
func refreshTokens(ctx context.Context, conf *oauth2.Config, refreshToken string) (*Tokens, error) {
	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			// invalid_grant is the OAuth2 "refresh token no longer valid" code
			if retrieveErr.ErrorCode == "invalid_grant" ||
				retrieveErr.Response != nil && retrieveErr.Response.StatusCode == 401 {
				return nil, ErrReauthRequired
			}
			status := 0
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}
			return nil, &ProviderError{Op: "token refresh", StatusCode: status, Body: retrieveErr.ErrorCode}
		}
		return nil, err
	}

	out := &Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	// Providers that do not rotate refresh tokens return an empty one
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	return out, nil
}

// exchangeCode exchanges an authorization code for tokens.
func exchangeCode(ctx context.Context, conf *oauth2.Config, code string) (*Tokens, error) {
	tok, err := conf.Exchange(ctx, code, oauth2.AccessTypeOffline)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			status := 0
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}
			return nil, &ProviderError{Op: "code exchange", StatusCode: status, Body: retrieveErr.ErrorCode}
		}
		return nil, err
	}
	return &Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}, nil
}
