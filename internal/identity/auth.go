package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNotAuthenticated = errors.New("identity: not authenticated")
	ErrInvalidToken     = errors.New("identity: invalid token")
	ErrSessionExpired   = errors.New("identity: session expired")
	ErrTokenExpired     = errors.New("identity: token expired")
)

// Claims are the access-token claims the gateway relies on.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks access tokens locally with the project's JWT secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Verify(token string) (*User, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return &User{ID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

// Credentials are the tokens a request carried.
type Credentials struct {
	BearerToken  string
	AccessToken  string
	RefreshToken string
}

// Result is a resolved user. Refreshed is set when the cookie session was
// renewed and the new tokens must be sent back to the client.
type Result struct {
	User      *User
	Refreshed *Session
}

// Authenticator resolves request credentials to a user, refreshing a cookie
// session at most once.
type Authenticator struct {
	client   *Client
	verifier *Verifier
	log      *slog.Logger
}

// NewAuthenticator builds an Authenticator. verifier may be nil, in which case
// every token is checked against the identity service.
func NewAuthenticator(client *Client, verifier *Verifier, log *slog.Logger) *Authenticator {
	if log == nil {
		log = slog.Default()
	}
	return &Authenticator{client: client, verifier: verifier, log: log}
}

func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials) (*Result, error) {
	if creds.BearerToken != "" {
		user, err := a.resolve(ctx, creds.BearerToken)
		if err != nil {
			return nil, ErrInvalidToken
		}
		return &Result{User: user}, nil
	}

	if creds.AccessToken == "" && creds.RefreshToken == "" {
		return nil, ErrNotAuthenticated
	}

	if creds.AccessToken != "" {
		user, err := a.resolve(ctx, creds.AccessToken)
		if err == nil {
			return &Result{User: user}, nil
		}
		if creds.RefreshToken == "" {
			return nil, ErrInvalidToken
		}
		a.log.Debug("access token rejected, refreshing session", "err", err)
	}

	session, err := a.client.Refresh(ctx, creds.RefreshToken)
	if err != nil || session.User == nil {
		a.log.Info("session refresh failed", "err", err)
		return nil, ErrSessionExpired
	}
	return &Result{User: session.User, Refreshed: session}, nil
}

func (a *Authenticator) resolve(ctx context.Context, token string) (*User, error) {
	if a.verifier != nil {
		return a.verifier.Verify(token)
	}
	return a.client.GetUser(ctx, token)
}

