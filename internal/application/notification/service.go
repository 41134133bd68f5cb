package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/school-notify-api/internal/domain"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type Service interface {
	List(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error)
}

type ledger interface {
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error)
}

type service struct {
	repo ledger
}

func NewService(repo ledger) Service {
	return &service{repo: repo}
}

// List returns the recipient's sent notifications, newest first. limit is
// clamped to [1, MaxLimit]; zero or negative means DefaultLimit.
func (s *service) List(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return nil, fmt.Errorf("user id is required: %w", domain.ErrBadRequest)
	}
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	list, err := s.repo.ListByRecipient(ctx, recipientID, limit)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("no notifications found for this user: %w", domain.ErrNotFound)
	}
	return list, nil
}
