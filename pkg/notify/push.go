package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/covershift/dispatch/pkg/clients/pushclient"
)

// TokenSource resolves a user's registered device tokens.
type TokenSource interface {
	DeviceTokens(ctx context.Context, userID string) ([]string, error)
}

// PushSender implements the dispatcher's Notifier contract over FCM:
// resolve the recipient's device tokens and attempt delivery to each.
// Per-token failures are logged; the last one is returned so callers
// can count the send as failed without special-casing multi-device
// recipients.
type PushSender struct {
	client *pushclient.Client
	tokens TokenSource
	logger *zap.Logger
}

func NewPushSender(client *pushclient.Client, tokens TokenSource, logger *zap.Logger) *PushSender {
	return &PushSender{client: client, tokens: tokens, logger: logger}
}

func (p *PushSender) Send(ctx context.Context, recipientID, title, body string, data map[string]string) error {
	tokens, err := p.tokens.DeviceTokens(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("failed to resolve device tokens: %w", err)
	}
	if len(tokens) == 0 {
		p.logger.Debug("Recipient has no registered devices", zap.String("recipient_id", recipientID))
		return nil
	}

	var lastErr error
	for _, token := range tokens {
		if err := p.client.Send(ctx, token, title, body, data); err != nil {
			p.logger.Warn("Push delivery failed",
				zap.String("recipient_id", recipientID),
				zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

// LogSender is a Notifier for environments without push credentials:
// every send is logged and reported successful.
type LogSender struct {
	Logger *zap.Logger
}

func (l *LogSender) Send(ctx context.Context, recipientID, title, body string, data map[string]string) error {
	l.Logger.Info("Notification (log only)",
		zap.String("recipient_id", recipientID),
		zap.String("title", title),
		zap.String("body", body))
	return nil
}
