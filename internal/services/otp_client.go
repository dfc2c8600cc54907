package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
)

const defaultOTPClientTimeout = 15 * time.Second

// OTPAPIClient talks to the remote OTP API that issues and checks codes
type OTPAPIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewOTPAPIClient(baseURL, apiKey string) *OTPAPIClient {
	return &OTPAPIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultOTPClientTimeout},
	}
}

// Send asks the API to issue a new token and deliver its code to phone
func (c *OTPAPIClient) Send(ctx context.Context, phone string) (*domain.IssuedToken, error) {
	var out domain.IssuedToken
	if err := c.do(ctx, "/tokens", domain.IssueTokenRequest{Phone: phone}, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, fmt.Errorf("%w: otp api returned empty token", domain.ErrNetwork)
	}
	return &out, nil
}

// Resend delivers a fresh code for an existing token
func (c *OTPAPIClient) Resend(ctx context.Context, token string) error {
	return c.do(ctx, "/tokens/"+url.PathEscape(token)+"/resend", nil, nil)
}

// Verify checks code against token
func (c *OTPAPIClient) Verify(ctx context.Context, token, code string) error {
	return c.do(ctx, "/tokens/"+url.PathEscape(token)+"/verify", domain.CheckCodeRequest{Code: code}, nil)
}

func (c *OTPAPIClient) do(ctx context.Context, path string, body, out interface{}) error {
	var rdr io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("otp api request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: otp api: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusNotFound, http.StatusUnauthorized:
		return domain.ErrTokenExpired
	case http.StatusUnprocessableEntity:
		return domain.ErrVerificationFailed
	case http.StatusTooManyRequests:
		return domain.ErrResendCooldown
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: otp api status=%d body=%s", domain.ErrNetwork, resp.StatusCode, string(b))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: otp api decode: %v", domain.ErrNetwork, err)
	}
	return nil
}
