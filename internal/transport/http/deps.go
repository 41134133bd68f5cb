package http

import (
	"context"

	"github.com/school-notify-api/internal/domain"
	jwtinfra "github.com/school-notify-api/internal/infrastructure/jwt"
	"github.com/school-notify-api/internal/infrastructure/push"
)

// IdentityRepository is the minimal interface the router requires from an identity store.
type IdentityRepository interface {
	Create(ctx context.Context, i *domain.Identity) error
	Get(ctx context.Context, identityID string) (*domain.Identity, error)
	UpdateCredential(ctx context.Context, identityID, hash string) error
	ListIDsByKind(ctx context.Context, kind domain.IdentityKind) ([]string, error)
}

// RegistrationRepository is the minimal interface the router requires from a
// registration store. BindAddress must reject an address held by another recipient.
type RegistrationRepository interface {
	Get(ctx context.Context, recipientID string) (*domain.Registration, error)
	BatchGet(ctx context.Context, ids []string) (map[string]domain.Registration, error)
	BindAddress(ctx context.Context, recipientID, address string) error
	SetChildren(ctx context.Context, recipientID string, children []domain.Child) error
	ListByChild(ctx context.Context, childID string) ([]domain.Registration, error)
}

// NotificationRepository is the minimal interface the router requires from the ledger.
type NotificationRepository interface {
	PutBatch(ctx context.Context, notifications []domain.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error)
}

// RosterGateway is the minimal interface the router requires from the school roster.
type RosterGateway interface {
	IDs(ctx context.Context) ([]string, error)
	Contains(ctx context.Context, id string) (bool, error)
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	IdentityRepo     IdentityRepository
	RegistrationRepo RegistrationRepository
	NotificationRepo NotificationRepository
	Roster           RosterGateway
	Push             push.Provider
	JWTProvider      *jwtinfra.Provider
	// ReadinessChecks are run by GET /v1/health-check/ready.
	ReadinessChecks map[string]func(context.Context) error
}
