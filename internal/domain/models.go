package domain

import "time"

// Screen identifies a form checkpoint that is guarded by reCAPTCHA
type Screen string

const (
	ScreenDOB   Screen = "dob"
	ScreenPhone Screen = "phone"
)

// Valid reports whether s is one of the known checkpoints
func (s Screen) Valid() bool {
	return s == ScreenDOB || s == ScreenPhone
}

// VerificationSession holds bot-mitigation and phone verification state for one form fill
type VerificationSession struct {
	ID                 string    `json:"id"`
	PartnerSlug        string    `json:"partner"`
	DOBScore           float64   `json:"dob_score"`
	HasDOBScore        bool      `json:"has_dob_score"`
	PhoneScore         float64   `json:"phone_score"`
	HasPhoneScore      bool      `json:"has_phone_score"`
	DOBPassed          bool      `json:"dob_passed"`
	PhonePassed        bool      `json:"phone_passed"`
	ChallengeSucceeded bool      `json:"challenge_succeeded"`
	Phone              string    `json:"phone,omitempty"`
	PhoneVerified      bool      `json:"phone_verified"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Passed reports whether the given screen already passed
func (s *VerificationSession) Passed(screen Screen) bool {
	switch screen {
	case ScreenDOB:
		return s.DOBPassed
	case ScreenPhone:
		return s.PhonePassed
	}
	return false
}

// MarkPassed marks the screen as passed. A passed screen never un-passes.
func (s *VerificationSession) MarkPassed(screen Screen) {
	switch screen {
	case ScreenDOB:
		s.DOBPassed = true
	case ScreenPhone:
		s.PhonePassed = true
	}
}

// RecordScore stores the latest v3 score for the screen
func (s *VerificationSession) RecordScore(screen Screen, score float64) {
	switch screen {
	case ScreenDOB:
		s.DOBScore = score
		s.HasDOBScore = true
	case ScreenPhone:
		s.PhoneScore = score
		s.HasPhoneScore = true
	}
}

// RecaptchaResult is the decoded siteverify answer
type RecaptchaResult struct {
	Success     bool     `json:"success"`
	Score       float64  `json:"score"`
	Action      string   `json:"action"`
	Hostname    string   `json:"hostname"`
	ChallengeTS string   `json:"challenge_ts"`
	ErrorCodes  []string `json:"error-codes"`
}

// ScoreDecision tells the form whether to show the interactive challenge on a screen
type ScoreDecision struct {
	SessionID         string  `json:"session_id"`
	Screen            Screen  `json:"screen"`
	Score             float64 `json:"score"`
	Threshold         float64 `json:"threshold"`
	Passed            bool    `json:"passed"`
	ChallengeRequired bool    `json:"challenge_required"`
	Fallback          bool    `json:"fallback"`
	Message           string  `json:"message,omitempty"`
}

// RecaptchaRequest is the body for both score and challenge submissions
type RecaptchaRequest struct {
	Screen Screen `json:"screen"`
	Token  string `json:"token"`
}

// CreateSessionRequest starts a verification session for a partner
type CreateSessionRequest struct {
	Partner string `json:"partner"`
}

// OTPRequest represents request to send or resend an OTP
type OTPRequest struct {
	Phone string `json:"phone"`
}

// OTPStatus is what the form sees after send/resend. The token never leaves the server.
type OTPStatus struct {
	Status      string `json:"status"`
	Phone       string `json:"phone"`
	Reused      bool   `json:"reused"`
	ResendAfter int    `json:"resend_after"` // seconds until resend is allowed
}

// OTPVerifyRequest accepts either a code string or the four entered digits
type OTPVerifyRequest struct {
	Phone  string   `json:"phone"`
	Code   string   `json:"code,omitempty"`
	Digits []string `json:"digits,omitempty"`
}

// OTPVerifyResponse represents response after verifying an OTP
type OTPVerifyResponse struct {
	Status  string `json:"status"`
	Phone   string `json:"phone"`
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// IssuedToken is returned by the OTP backend when a code is sent
type IssuedToken struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// IssueTokenRequest asks the OTP backend to issue a token for a phone
type IssueTokenRequest struct {
	Phone string `json:"phone"`
}

// CheckCodeRequest carries the code for remote verification
type CheckCodeRequest struct {
	Code string `json:"code"`
}

// Partner is the white-label context a form is rendered for
type Partner struct {
	Slug               string   `json:"slug" yaml:"slug"`
	Name               string   `json:"name" yaml:"name"`
	LogoURL            string   `json:"logo_url" yaml:"logo_url"`
	PrimaryColor       string   `json:"primary_color" yaml:"primary_color"`
	SecondaryColor     string   `json:"secondary_color" yaml:"secondary_color"`
	SupportPhone       string   `json:"support_phone" yaml:"support_phone"`
	ScoreThreshold     *float64 `json:"score_threshold,omitempty" yaml:"score_threshold"`
	RecaptchaV3SiteKey string   `json:"recaptcha_v3_site_key" yaml:"recaptcha_v3_site_key"`
	RecaptchaV2SiteKey string   `json:"recaptcha_v2_site_key" yaml:"recaptcha_v2_site_key"`
}

// LoanApplicationRequest is the final form submission
type LoanApplicationRequest struct {
	SessionID   string `json:"session_id"`
	FullName    string `json:"full_name"`
	DateOfBirth string `json:"date_of_birth"` // YYYY-MM-DD
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	LoanAmount  int64  `json:"loan_amount"`
	TenorMonths int    `json:"tenor_months"`
	Purpose     string `json:"purpose"`
}

// LoanApplication is a stored application
type LoanApplication struct {
	ID                  string    `json:"id"`
	SessionID           string    `json:"session_id"`
	PartnerSlug         string    `json:"partner"`
	FullName            string    `json:"full_name"`
	DateOfBirth         time.Time `json:"date_of_birth"`
	Phone               string    `json:"phone"`
	Email               string    `json:"email"`
	LoanAmount          int64     `json:"loan_amount"`
	TenorMonths         int       `json:"tenor_months"`
	Purpose             string    `json:"purpose"`
	RecaptchaDOBScore   float64   `json:"recaptcha_dob_score"`
	RecaptchaPhoneScore float64   `json:"recaptcha_phone_score"`
	ChallengeUsed       bool      `json:"challenge_used"`
	CreatedAt           time.Time `json:"created_at"`
}

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
