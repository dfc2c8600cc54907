package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/logging"
	"go.uber.org/zap"
)

// LogNotifier writes codes to the log. Development only.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, phone, code string, expiresIn int) error {
	n.logger.Info("dev otp issued",
		zap.String("phone", logging.MaskPhone(phone)),
		zap.String("code", code),
		zap.Int("expires_in", expiresIn))
	return nil
}

// WhatsAppNotifier sends codes as WhatsApp messages
type WhatsAppNotifier struct {
	whatsapp domain.WhatsAppService
}

func NewWhatsAppNotifier(whatsapp domain.WhatsAppService) *WhatsAppNotifier {
	return &WhatsAppNotifier{whatsapp: whatsapp}
}

func (n *WhatsAppNotifier) Notify(ctx context.Context, phone, code string, expiresIn int) error {
	if !n.whatsapp.IsConnected() {
		return errors.New("whatsapp client is not connected")
	}
	return n.whatsapp.SendMessage(ctx, phone, otpMessage(code, expiresIn))
}

// SMSNotifier sends codes through SMS Local
type SMSNotifier struct {
	client *SMSLocalClient
}

func NewSMSNotifier(client *SMSLocalClient) *SMSNotifier {
	return &SMSNotifier{client: client}
}

func (n *SMSNotifier) Notify(ctx context.Context, phone, code string, expiresIn int) error {
	return n.client.SendOTP(ctx, phone, code)
}

func otpMessage(code string, expiresIn int) string {
	return fmt.Sprintf("🔐 Kode OTP pengajuan KPR Anda: *%s*\n\n⏰ Berlaku selama %d detik\n\n⚠️ Jangan bagikan kode ini kepada siapapun!",
		code, expiresIn)
}
