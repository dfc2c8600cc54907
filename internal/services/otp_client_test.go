package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTPAPIClient_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tokens", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		var req domain.IssueTokenRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, testPhone, req.Phone)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(domain.IssuedToken{Token: "t-1", ExpiresIn: 300})
	}))
	defer srv.Close()

	c := NewOTPAPIClient(srv.URL+"/api/", "secret")
	tok, err := c.Send(context.Background(), testPhone)
	require.NoError(t, err)
	assert.Equal(t, "t-1", tok.Token)
}

func TestOTPAPIClient_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusOK, nil},
		{http.StatusNotFound, domain.ErrTokenExpired},
		{http.StatusUnauthorized, domain.ErrTokenExpired},
		{http.StatusUnprocessableEntity, domain.ErrVerificationFailed},
		{http.StatusTooManyRequests, domain.ErrResendCooldown},
		{http.StatusInternalServerError, domain.ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var path string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				path = r.URL.Path
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewOTPAPIClient(srv.URL, "")
			err := c.Verify(context.Background(), "t-1", "1234")
			assert.Equal(t, "/tokens/t-1/verify", path)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}

			err = c.Resend(context.Background(), "t-1")
			assert.Equal(t, "/tokens/t-1/resend", path)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestOTPAPIClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewOTPAPIClient(srv.URL, "")
	_, err := c.Send(context.Background(), testPhone)
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestOTPAPIClient_EmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewOTPAPIClient(srv.URL, "").Send(context.Background(), testPhone)
	assert.ErrorIs(t, err, domain.ErrNetwork)
}
