// Package auth verifies Firebase ID tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

var (
	ErrNoToken      = errors.New("Unauthorized: No token provided.")
	ErrInvalidToken = errors.New("Unauthorized: Invalid token.")
)

// IDTokenVerifier is the part of the Firebase Admin auth client this package uses.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// User is the verified caller.
type User struct {
	UID   string
	Email string
}

type Verifier struct {
	tokens IDTokenVerifier
}

func NewVerifier(tokens IDTokenVerifier) *Verifier {
	return &Verifier{tokens: tokens}
}

// NewFirebaseVerifier builds a Verifier on the Firebase Admin SDK. Checking ID
// tokens only needs Google's public certificates, so callers without service
// account credentials can pass option.WithoutAuthentication().
func NewFirebaseVerifier(ctx context.Context, projectID string, opts ...option.ClientOption) (*Verifier, error) {
	if projectID == "" {
		return nil, errors.New("firebase project id is required")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return NewVerifier(client), nil
}

// Verify checks signature, audience, issuer, expiry and subject. Every failure wraps
// ErrInvalidToken.
func (v *Verifier) Verify(ctx context.Context, raw string) (*User, error) {
	if raw == "" {
		return nil, ErrNoToken
	}

	tok, err := v.tokens.VerifyIDToken(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if tok.UID == "" {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	email, _ := tok.Claims["email"].(string)
	return &User{UID: tok.UID, Email: email}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

type ctxKey struct{}

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*User)
	return u, ok && u != nil
}
