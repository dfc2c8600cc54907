package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/logging"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waTypes "go.mau.fi/whatsmeow/types"
	waEvents "go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver for whatsmeow store
)

const (
	maxSendRetries = 3
	// OTP messages are unsent once the code can no longer be used
	defaultRevokeAfter = 5 * time.Minute
)

type WhatsAppService struct {
	client      *whatsmeow.Client
	logger      *zap.Logger
	revokeAfter time.Duration

	// ctx bounds pending revokes; cancelling it stops them
	ctx     context.Context
	pending sync.WaitGroup
}

// NewWhatsAppService opens the device store and connects. Without a stored
// session it blocks until the QR code printed to stdout is scanned. Pending
// message revokes are dropped once ctx is done.
func NewWhatsAppService(ctx context.Context, storePath string, revokeAfter time.Duration, logger *zap.Logger) (*WhatsAppService, error) {
	logger.Info("initializing whatsapp service", zap.String("store_path", storePath))

	container, err := sqlstore.New(ctx, "sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout=5000&_pragma=foreign_keys=on", storePath), waLog.Stdout("SQLStore", "WARN", true))
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlstore: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		logger.Info("no existing device found, creating new device", zap.Error(err))
		deviceStore = container.NewDevice()
	}

	if revokeAfter <= 0 {
		revokeAfter = defaultRevokeAfter
	}
	client := whatsmeow.NewClient(deviceStore, waLog.Stdout("Client", "WARN", true))
	service := &WhatsAppService{client: client, logger: logger, revokeAfter: revokeAfter, ctx: ctx}

	client.AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *waEvents.Connected:
			logger.Info("whatsapp client connected")
		case *waEvents.Disconnected:
			logger.Warn("whatsapp client disconnected", zap.Any("event", v))
		case *waEvents.LoggedOut:
			logger.Warn("whatsapp client logged out")
		}
	})

	if client.Store.ID == nil {
		logger.Info("no session found, starting QR code pairing")
		qr, _ := client.GetQRChannel(ctx)
		if err = client.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect: %w", err)
		}
		for evt := range qr {
			if evt.Event == "code" {
				fmt.Println("Scan QR di WhatsApp untuk pairing:")
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
			} else {
				logger.Info("qr event", zap.String("event", evt.Event))
			}
		}
	} else {
		logger.Info("existing session found", zap.String("device_id", client.Store.ID.String()))
		if err = client.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect with existing session: %w", err)
		}
	}

	return service, nil
}

func (w *WhatsAppService) SendMessage(ctx context.Context, phone, message string) error {
	if !w.client.IsConnected() {
		return fmt.Errorf("WhatsApp client is not connected")
	}

	to := waTypes.NewJID(normalizePhone(phone), waTypes.DefaultUserServer)
	msg := &waProto.Message{Conversation: &message}

	var resp whatsmeow.SendResponse
	var err error
	for i := 0; i < maxSendRetries; i++ {
		resp, err = w.client.SendMessage(ctx, to, msg)
		if err == nil || !isEncryptionError(err) {
			break
		}
		w.logger.Warn("whatsapp encryption error",
			zap.Int("attempt", i+1),
			zap.String("phone", logging.MaskPhone(phone)),
			zap.Error(err))
		if i < maxSendRetries-1 {
			select {
			case <-time.After(time.Duration(i+1) * 2 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if err != nil {
		return fmt.Errorf("failed to send message after %d attempts: %w", maxSendRetries, err)
	}

	w.logger.Info("whatsapp message sent",
		zap.String("message_id", resp.ID),
		zap.String("phone", logging.MaskPhone(phone)))

	w.pending.Add(1)
	go w.revokeLater(resp.ID, to)
	return nil
}

// revokeLater unsends the message after revokeAfter. It runs on the service
// context because the request context is gone by then.
func (w *WhatsAppService) revokeLater(messageID string, jid waTypes.JID) {
	defer w.pending.Done()

	timer := time.NewTimer(w.revokeAfter)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-w.ctx.Done():
		w.logger.Debug("auto-revoke canceled", zap.String("message_id", messageID))
		return
	}

	if w.client.Store.ID == nil || !w.client.IsConnected() {
		return
	}
	revoke := w.client.BuildRevoke(jid, w.client.Store.ID.ToNonAD(), messageID)
	ctx, cancel := context.WithTimeout(w.ctx, 30*time.Second)
	defer cancel()
	if _, err := w.client.SendMessage(ctx, jid, revoke); err != nil {
		w.logger.Warn("failed to revoke message", zap.String("message_id", messageID), zap.Error(err))
		return
	}
	w.logger.Debug("message revoked", zap.String("message_id", messageID))
}

func (w *WhatsAppService) IsConnected() bool {
	return w.client.IsConnected()
}

// Disconnect waits for pending revokes to stop, then closes the connection.
// Cancel the service context first or this waits up to revokeAfter.
func (w *WhatsAppService) Disconnect() {
	w.pending.Wait()
	w.client.Disconnect()
}

func isEncryptionError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "can't encrypt message") ||
		strings.Contains(msg, "no signal session established")
}
