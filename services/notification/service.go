package notification

import (
	"context"
	"fmt"
	"time"

	providerRepo "leadmarket/database/repository/provider"
	"leadmarket/models"
	"leadmarket/utils"

	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultNotificationService records notifications on the recipient document
// and sends a best-effort FCM push. Pushes are throttled process-wide so a
// large matching fan-out cannot flood FCM.
type DefaultNotificationService struct {
	Providers providerRepo.ProviderRepository
	Limiter   *rate.Limiter
	Logger    *zap.Logger
}

func NewDefaultNotificationService(providers providerRepo.ProviderRepository, logger *zap.Logger) (*DefaultNotificationService, error) {
	if providers == nil || logger == nil {
		return nil, fmt.Errorf("notification service initialization error: provider repository or logger is nil")
	}
	return &DefaultNotificationService{
		Providers: providers,
		// 10 pushes per second with a small burst.
		Limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 20),
		Logger:  logger,
	}, nil
}

func (s *DefaultNotificationService) Notify(ctx context.Context, title, message, recipientID string, meta map[string]interface{}) error {
	notif := models.Notification{
		ID:        uuid.New().String(),
		Title:     title,
		Message:   message,
		Data:      meta,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Providers.AppendNotification(ctx, recipientID, notif); err != nil {
		return fmt.Errorf("failed to record notification for %s: %w", recipientID, err)
	}

	provider, err := s.Providers.GetByID(ctx, recipientID)
	if err != nil || provider == nil || provider.FCMToken == "" {
		return err
	}
	if utils.FCMClient == nil {
		return nil
	}
	if !s.Limiter.Allow() {
		s.Logger.Warn("push budget exhausted, notification recorded without push",
			zap.String("recipient", recipientID))
		return nil
	}

	msg := &messaging.Message{
		Token: provider.FCMToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  message,
		},
	}
	if _, err := utils.FCMClient.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to push notification to %s: %w", recipientID, err)
	}
	return nil
}
