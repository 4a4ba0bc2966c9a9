package notifications

import (
	"context"

	"github.com/blogify/notifier/internal/logger"
	"github.com/blogify/notifier/internal/models"
	"go.uber.org/zap"
)

// Transitions is the follow-request state machine as seen by the query
// surface.
type Transitions interface {
	Accept(ctx context.Context, notificationID, actorID string) (*models.Notification, error)
	Reject(ctx context.Context, notificationID, actorID string) (*models.Notification, error)
	MarkRead(ctx context.Context, notificationID, actorID string) (*models.Notification, error)
}

// CountNotifier receives a user's new unread count; best effort.
type CountNotifier interface {
	SendUnreadCount(userID string, count int64)
}

// Service is what the HTTP layer talks to for a recipient's notifications.
type Service struct {
	repo        *Repository
	transitions Transitions
	counts      CountNotifier
}

func NewService(repo *Repository, transitions Transitions) *Service {
	return &Service{repo: repo, transitions: transitions}
}

// SetCountNotifier wires the live channel.
func (s *Service) SetCountNotifier(c CountNotifier) {
	s.counts = c
}

func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error) {
	return s.repo.ListForRecipient(ctx, userID, limit, offset)
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *Service) PendingRequests(ctx context.Context, userID string) ([]models.Notification, error) {
	return s.repo.PendingFor(ctx, userID)
}

func (s *Service) Accept(ctx context.Context, notificationID, userID string) (*models.Notification, error) {
	n, err := s.transitions.Accept(ctx, notificationID, userID)
	if err == nil {
		s.publishCount(ctx, userID)
	}
	return n, err
}

func (s *Service) Reject(ctx context.Context, notificationID, userID string) (*models.Notification, error) {
	n, err := s.transitions.Reject(ctx, notificationID, userID)
	if err == nil {
		s.publishCount(ctx, userID)
	}
	return n, err
}

func (s *Service) MarkRead(ctx context.Context, notificationID, userID string) (*models.Notification, error) {
	n, err := s.transitions.MarkRead(ctx, notificationID, userID)
	if err == nil {
		s.publishCount(ctx, userID)
	}
	return n, err
}

func (s *Service) publishCount(ctx context.Context, userID string) {
	if s.counts == nil {
		return
	}
	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		logger.Log.Warn("Failed to refresh unread count", logger.WithUserID(userID), zap.Error(err))
		return
	}
	s.counts.SendUnreadCount(userID, count)
}
