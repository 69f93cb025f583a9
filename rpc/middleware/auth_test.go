package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func bearerRequest(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod, secret []byte) *http.Request {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	return req
}

func TestAuthenticatorVerify(t *testing.T) {
	secret := []byte("s3cret")
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: string(secret), Issuer: "ops", Audience: "stakingd"}, nil)
	exp := time.Now().Add(time.Hour).Unix()

	valid := bearerRequest(t, jwt.MapClaims{"iss": "ops", "aud": "stakingd", "exp": exp}, jwt.SigningMethodHS256, secret)
	require.NoError(t, auth.Verify(valid))

	wrongAud := bearerRequest(t, jwt.MapClaims{"iss": "ops", "aud": "other", "exp": exp}, jwt.SigningMethodHS256, secret)
	require.ErrorIs(t, auth.Verify(wrongAud), ErrInvalidToken)

	noExp := bearerRequest(t, jwt.MapClaims{"iss": "ops", "aud": "stakingd"}, jwt.SigningMethodHS256, secret)
	require.ErrorIs(t, auth.Verify(noExp), ErrInvalidToken)

	wrongAlg := bearerRequest(t, jwt.MapClaims{"iss": "ops", "aud": "stakingd", "exp": exp}, jwt.SigningMethodHS512, secret)
	require.ErrorIs(t, auth.Verify(wrongAlg), ErrInvalidToken)

	missing := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	require.ErrorIs(t, auth.Verify(missing), ErrMissingToken)

	basic := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	basic.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	require.True(t, errors.Is(auth.Verify(basic), ErrMissingToken))
}

func TestAuthenticatorDisabledOrUnconfigured(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	require.NoError(t, NewAuthenticator(AuthConfig{}, nil).Verify(req))
	require.ErrorIs(t, NewAuthenticator(AuthConfig{Enabled: true}, nil).Verify(req), ErrAuthNotConfigured)
}

func TestCORSAllowsConfiguredOrigins(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example"}})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/rpc", nil)
	req.Header.Set("Origin", "https://app.example")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)
	require.Equal(t, "https://app.example", res.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodPost, "/rpc", nil)
	req.Header.Set("Origin", "https://evil.example")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.Empty(t, res.Header().Get("Access-Control-Allow-Origin"))
}
