package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/bookswap/bookswap-service/internal/errs"
	"github.com/bookswap/bookswap-service/internal/model"
	"github.com/bookswap/bookswap-service/internal/repository"
)

// NotificationService reads the notification ledger. Writing happens inside
// the offer and book mutations so that every ledger row commits with the
// state transition it records.
type NotificationService struct {
	log   *zap.Logger
	repo  repository.NotificationRepository
	users repository.UserRepository
}

func NewNotificationService(repo repository.NotificationRepository, users repository.UserRepository, log *zap.Logger) *NotificationService {
	return &NotificationService{
		log:   log.Named("notification"),
		repo:  repo,
		users: users,
	}
}

func (s *NotificationService) ListNotifications(ctx context.Context, username string, page, size int) (model.ListNotifications, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return model.ListNotifications{}, err
	}
	return s.repo.ListNotifications(ctx, user.ID, page, size)
}

func (s *NotificationService) UnreadCount(ctx context.Context, username string) (model.UnreadCount, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return model.UnreadCount{}, err
	}
	count, err := s.repo.UnreadCount(ctx, user.ID)
	if err != nil {
		return model.UnreadCount{}, err
	}
	return model.UnreadCount{Count: count}, nil
}

// GetNotification opens the detail view for the recipient and marks it read.
// This is the only place the engine touches is_read.
func (s *NotificationService) GetNotification(ctx context.Context, username, notificationUid string) (model.Notification, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return model.Notification{}, err
	}
	notif, err := s.repo.GetNotificationByUid(ctx, notificationUid)
	if err != nil {
		return model.Notification{}, err
	}
	if notif.RecipientID != user.ID {
		return model.Notification{}, errs.ErrNotAuthorized
	}
	if !notif.IsRead {
		if err := s.repo.MarkRead(ctx, notif.ID); err != nil {
			return model.Notification{}, err
		}
		notif.IsRead = true
	}
	return notif, nil
}
