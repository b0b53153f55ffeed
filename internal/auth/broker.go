// Package auth implements the token broker: it owns the OAuth client
// credentials and the refresh token, exchanges authorization codes, and
// serves short-lived access tokens on demand with lazy refresh.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/fieldlogger/evidencedrive/internal/config"
)

// DriveScope is the only scope the pipeline needs: full access to the
// hierarchical store so it can create folders, upload files, and grant
// permissions.
const DriveScope = "https://www.googleapis.com/auth/drive"

// ErrNotConfigured is returned when the OAuth client id or secret is absent.
// This is an operator problem, not a transient one.
var ErrNotConfigured = errors.New("auth: oauth client id and secret are not configured")

// ErrNoRefreshToken is returned when an access token is requested but no
// refresh token has ever been stored.
var ErrNoRefreshToken = errors.New("auth: no refresh token stored (run login first)")

// AuthError wraps a rejection from the token endpoint. Use errors.As to
// recover it, or errors.Is against its wrapped cause.
type AuthError struct {
	Op  string // "exchange" or "refresh"
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %s failed: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Broker owns the OAuth credential state. It is safe for concurrent use; a
// single mutex serializes refresh exchanges so concurrent units of work do
// not race to refresh the same token.
type Broker struct {
	conf     *oauth2.Config
	credPath string
	logger   *slog.Logger

	mu   sync.Mutex
	cred *Credential

	// now is stubbed in tests.
	now func() time.Time
}

// New builds a Broker from configuration. Fails with ErrNotConfigured when
// the client id or secret is missing. An existing credential file is loaded;
// otherwise a refresh token from configuration seeds the broker.
func New(cfg *config.Config, logger *slog.Logger) (*Broker, error) {
	if !cfg.HasOAuthClient() {
		return nil, ErrNotConfigured
	}

	conf := &oauth2.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{DriveScope},
		// Out-of-band style copy/paste flow: the operator pastes the code
		// shown by the consent page into the login command.
		RedirectURL: "urn:ietf:wg:oauth:2.0:oob",
	}

	return newBroker(conf, cfg.OAuth.CredentialFile, cfg.OAuth.RefreshToken, logger)
}

// newBroker wires a broker around a pre-built oauth2.Config so tests can
// inject a mock token endpoint.
func newBroker(conf *oauth2.Config, credPath, seedRefreshToken string, logger *slog.Logger) (*Broker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cred, err := loadCredential(credPath)
	if err != nil {
		return nil, err
	}

	if cred == nil && seedRefreshToken != "" {
		cred = &Credential{RefreshToken: seedRefreshToken}
		logger.Info("seeded refresh token from configuration")
	}

	return &Broker{
		conf:     conf,
		credPath: credPath,
		logger:   logger,
		cred:     cred,
		now:      time.Now,
	}, nil
}

// AuthorizationURL returns the consent page URL for the configured client.
// offline access and forced consent guarantee the grant yields a refresh
// token even when the user authorized this client before.
func (b *Broker) AuthorizationURL() string {
	return b.conf.AuthCodeURL("", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode exchanges an authorization code for a credential and persists
// it. A response without a refresh token is a hard failure: without one the
// broker cannot operate unattended, so accepting it would only defer the
// breakage to the first refresh.
func (b *Broker) ExchangeCode(ctx context.Context, code string) (*Credential, error) {
	tok, err := b.conf.Exchange(ctx, code)
	if err != nil {
		return nil, &AuthError{Op: "exchange", Err: err}
	}

	if tok.RefreshToken == "" {
		return nil, &AuthError{Op: "exchange", Err: errors.New("token response contained no refresh token")}
	}

	cred := &Credential{
		RefreshToken: tok.RefreshToken,
		AccessToken:  tok.AccessToken,
		Expiry:       tok.Expiry,
	}

	b.mu.Lock()
	b.cred = cred
	b.mu.Unlock()

	if err := saveCredential(b.credPath, cred); err != nil {
		return nil, err
	}

	b.logger.Info("authorization code exchanged",
		slog.Time("expiry", cred.Expiry),
	)

	return cred, nil
}

// AccessToken returns a valid access token, refreshing lazily. When the
// refresh response omits a refresh token (the usual case for refresh
// exchanges), the previously stored one is re-attached before caching — a
// refresh must never cause the refresh token to be forgotten.
func (b *Broker) AccessToken(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cred.Valid(b.now()) {
		return b.cred.AccessToken, nil
	}

	if b.cred == nil || b.cred.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}

	b.logger.Debug("access token expired or absent, refreshing")

	src := b.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: b.cred.RefreshToken})

	tok, err := src.Token()
	if err != nil {
		return "", &AuthError{Op: "refresh", Err: err}
	}

	refreshed := &Credential{
		RefreshToken: tok.RefreshToken,
		AccessToken:  tok.AccessToken,
		Expiry:       tok.Expiry,
	}

	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = b.cred.RefreshToken
	}

	b.cred = refreshed

	if saveErr := saveCredential(b.credPath, refreshed); saveErr != nil {
		// The refreshed token is usable for this unit of work even if
		// persistence failed; the next process pays one extra refresh.
		b.logger.Warn("failed to persist refreshed credential",
			slog.String("error", saveErr.Error()),
		)
	}

	b.logger.Info("access token refreshed",
		slog.Time("expiry", refreshed.Expiry),
	)

	return refreshed.AccessToken, nil
}

// RefreshToken returns the currently stored refresh token, or "".
func (b *Broker) RefreshToken() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cred == nil {
		return ""
	}

	return b.cred.RefreshToken
}

// TokenSource adapts the broker to oauth2.TokenSource for API clients that
// consume one (e.g. the drive service constructor).
func (b *Broker) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &brokerSource{ctx: ctx, broker: b}
}

type brokerSource struct {
	ctx    context.Context
	broker *Broker
}

func (s *brokerSource) Token() (*oauth2.Token, error) {
	access, err := s.broker.AccessToken(s.ctx)
	if err != nil {
		return nil, err
	}

	s.broker.mu.Lock()
	expiry := s.broker.cred.Expiry
	s.broker.mu.Unlock()

	return &oauth2.Token{AccessToken: access, Expiry: expiry}, nil
}

// NewTokenSource returns the token source the remote store client should
// authenticate with: a service account (with optional impersonation) when
// configured, otherwise the interactive OAuth broker.
func NewTokenSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (oauth2.TokenSource, error) {
	if cfg.HasServiceAccount() {
		data, err := os.ReadFile(cfg.OAuth.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("auth: reading service account file: %w", err)
		}

		jwtConf, err := google.JWTConfigFromJSON(data, DriveScope)
		if err != nil {
			return nil, fmt.Errorf("auth: parsing service account file: %w", err)
		}

		jwtConf.Subject = cfg.OAuth.Subject

		logger.Info("using service account credentials",
			slog.String("subject", cfg.OAuth.Subject),
		)

		return jwtConf.TokenSource(ctx), nil
	}

	broker, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}

	return broker.TokenSource(ctx), nil
}
