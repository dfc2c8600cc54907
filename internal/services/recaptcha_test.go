package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSiteverify(t *testing.T, status int, body string) (*httptest.Server, *[]string) {
	t.Helper()
	var secrets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		secrets = append(secrets, r.PostForm.Get("secret"))
		assert.Equal(t, "tok", r.PostForm.Get("response"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &secrets
}

func TestRecaptchaClient_VerifyV3(t *testing.T) {
	srv, secrets := newSiteverify(t, http.StatusOK, `{"success":true,"score":0.7,"action":"dob","hostname":"kpr.example.com","challenge_ts":"2026-01-01T00:00:00Z"}`)
	c := NewRecaptchaClient("s3", "s2", srv.URL, zap.NewNop())

	res, err := c.VerifyV3(context.Background(), "tok", "dob", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 0.7, res.Score)
	assert.Equal(t, []string{"s3"}, *secrets)
}

func TestRecaptchaClient_VerifyV3_ActionMismatch(t *testing.T) {
	srv, _ := newSiteverify(t, http.StatusOK, `{"success":true,"score":0.9,"action":"login"}`)
	c := NewRecaptchaClient("s3", "s2", srv.URL, nil)

	res, err := c.VerifyV3(context.Background(), "tok", "phone", "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Score)
}

func TestRecaptchaClient_VerifyV2(t *testing.T) {
	srv, secrets := newSiteverify(t, http.StatusOK, `{"success":false,"error-codes":["timeout-or-duplicate"]}`)
	c := NewRecaptchaClient("s3", "s2", srv.URL, nil)

	res, err := c.VerifyV2(context.Background(), "tok", "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, []string{"timeout-or-duplicate"}, res.ErrorCodes)
	assert.Equal(t, []string{"s2"}, *secrets)
}

func TestRecaptchaClient_NetworkErrors(t *testing.T) {
	srv, _ := newSiteverify(t, http.StatusBadGateway, "bad gateway")
	c := NewRecaptchaClient("s3", "s2", srv.URL, nil)
	_, err := c.VerifyV3(context.Background(), "tok", "dob", "")
	assert.ErrorIs(t, err, domain.ErrNetwork)

	srv, _ = newSiteverify(t, http.StatusOK, "not json")
	c = NewRecaptchaClient("s3", "s2", srv.URL, nil)
	_, err = c.VerifyV2(context.Background(), "tok", "")
	assert.ErrorIs(t, err, domain.ErrNetwork)

	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	c = NewRecaptchaClient("s3", "s2", dead.URL, nil)
	_, err = c.VerifyV3(context.Background(), "tok", "dob", "")
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestRecaptchaClient_EmptyToken(t *testing.T) {
	c := NewRecaptchaClient("s3", "s2", "http://127.0.0.1:0", nil)
	res, err := c.VerifyV3(context.Background(), "  ", "dob", "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, []string{"missing-input-response"}, res.ErrorCodes)
}
