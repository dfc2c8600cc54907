package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultRecaptchaURL     = "https://www.google.com/recaptcha/api/siteverify"
	defaultRecaptchaTimeout = 10 * time.Second
)

// RecaptchaClient verifies v3 and v2 tokens against Google siteverify.
type RecaptchaClient struct {
	secretV3   string
	secretV2   string
	verifyURL  string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewRecaptchaClient(secretV3, secretV2, verifyURL string, logger *zap.Logger) *RecaptchaClient {
	if verifyURL == "" {
		verifyURL = defaultRecaptchaURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecaptchaClient{
		secretV3:   secretV3,
		secretV2:   secretV2,
		verifyURL:  verifyURL,
		httpClient: &http.Client{Timeout: defaultRecaptchaTimeout},
		logger:     logger,
	}
}

// VerifyV3 returns the score result. An action mismatch zeroes the score.
func (c *RecaptchaClient) VerifyV3(ctx context.Context, token, action, remoteIP string) (*domain.RecaptchaResult, error) {
	res, err := c.verify(ctx, c.secretV3, token, remoteIP)
	if err != nil {
		return nil, err
	}
	if res.Success && action != "" && res.Action != action {
		c.logger.Warn("recaptcha action mismatch",
			zap.String("expected", action),
			zap.String("got", res.Action))
		res.Score = 0
	}
	if !res.Success {
		res.Score = 0
	}
	return res, nil
}

// VerifyV2 checks an interactive challenge token
func (c *RecaptchaClient) VerifyV2(ctx context.Context, token, remoteIP string) (*domain.RecaptchaResult, error) {
	return c.verify(ctx, c.secretV2, token, remoteIP)
}

func (c *RecaptchaClient) verify(ctx context.Context, secret, token, remoteIP string) (*domain.RecaptchaResult, error) {
	if strings.TrimSpace(token) == "" {
		return &domain.RecaptchaResult{Success: false, ErrorCodes: []string{"missing-input-response"}}, nil
	}

	form := url.Values{}
	form.Set("secret", secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("recaptcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: recaptcha: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: recaptcha status=%d body=%s", domain.ErrNetwork, resp.StatusCode, string(b))
	}

	var res domain.RecaptchaResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("%w: recaptcha decode: %v", domain.ErrNetwork, err)
	}
	if !res.Success {
		c.logger.Info("recaptcha rejected token", zap.Strings("error_codes", res.ErrorCodes))
	}
	return &res, nil
}
