package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProject = "lustra-ai"

// newEmulatorVerifier runs the real Firebase client in emulator mode, where the SDK
// checks every claim but skips the signature.
func newEmulatorVerifier(t *testing.T) *Verifier {
	t.Helper()
	t.Setenv("FIREBASE_AUTH_EMULATOR_HOST", "127.0.0.1:9099")

	v, err := NewFirebaseVerifier(context.Background(), testProject)
	require.NoError(t, err)
	return v
}

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":   "https://securetoken.google.com/" + testProject,
		"aud":   testProject,
		"sub":   "uid-123",
		"iat":   now.Add(-time.Minute).Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"email": "owner@shop.test",
	}
}

func unsignedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return raw
}

func TestVerify_ValidToken(t *testing.T) {
	v := newEmulatorVerifier(t)

	u, err := v.Verify(context.Background(), unsignedToken(t, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "uid-123", u.UID)
	assert.Equal(t, "owner@shop.test", u.Email)
}

func TestVerify_Rejections(t *testing.T) {
	v := newEmulatorVerifier(t)

	with := func(key string, val any) jwt.MapClaims {
		c := validClaims()
		if val == nil {
			delete(c, key)
		} else {
			c[key] = val
		}
		return c
	}

	tests := []struct {
		name  string
		token string
	}{
		{"wrong audience", unsignedToken(t, with("aud", "someone-else"))},
		{"wrong issuer", unsignedToken(t, with("iss", "https://accounts.google.com"))},
		{"expired", unsignedToken(t, with("exp", time.Now().Add(-time.Hour).Unix()))},
		{"issued in the future", unsignedToken(t, with("iat", time.Now().Add(time.Hour).Unix()))},
		{"missing subject", unsignedToken(t, with("sub", nil))},
		{"long subject", unsignedToken(t, with("sub", strings.Repeat("u", 129)))},
		{"garbage", "not.a.jwt"},
		{"two segments", "abc.def"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerify_EmptyToken(t *testing.T) {
	v := NewVerifier(stubTokens{})
	_, err := v.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoToken)
}

type stubTokens struct {
	tok *fbauth.Token
	err error
}

func (s stubTokens) VerifyIDToken(context.Context, string) (*fbauth.Token, error) {
	return s.tok, s.err
}

func TestVerify_WrapsClientErrors(t *testing.T) {
	v := NewVerifier(stubTokens{err: errors.New("failed to verify token signature")})

	_, err := v.Verify(context.Background(), "x.y.z")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Contains(t, err.Error(), "failed to verify token signature")
}

func TestVerify_EmptyUID(t *testing.T) {
	v := NewVerifier(stubTokens{tok: &fbauth.Token{}})

	_, err := v.Verify(context.Background(), "x.y.z")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewFirebaseVerifier_RequiresProject(t *testing.T) {
	_, err := NewFirebaseVerifier(context.Background(), "")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken(""))
}

func TestUserContext(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithUser(context.Background(), &User{UID: "u1"})
	u, ok := UserFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", u.UID)
}
