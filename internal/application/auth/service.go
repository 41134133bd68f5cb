package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/school-notify-api/internal/domain"
	"github.com/school-notify-api/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

var (
	compareCredential = bcrypt.CompareHashAndPassword

	dummyHash = sync.OnceValue(func() []byte {
		h, _ := bcrypt.GenerateFromPassword([]byte("unregistered identity"), bcrypt.DefaultCost)
		return h
	})
)

type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.Identity, error)
	RegisterParent(ctx context.Context, req domain.RegisterParentRequest) (*domain.Identity, error)
	Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error)
	ChangeCredential(ctx context.Context, identityID string, req domain.ChangeCredentialRequest) error
}

type identityStore interface {
	Create(ctx context.Context, i *domain.Identity) error
	Get(ctx context.Context, identityID string) (*domain.Identity, error)
	UpdateCredential(ctx context.Context, identityID, hash string) error
}

type rosterChecker interface {
	Contains(ctx context.Context, id string) (bool, error)
}

type tokenSigner interface {
	Sign(identityID string, kind domain.IdentityKind) (string, error)
}

type service struct {
	identities identityStore
	roster     rosterChecker
	signer     tokenSigner
}

type ServiceDeps struct {
	IdentityRepo identityStore
	Roster       rosterChecker
	JWTProvider  tokenSigner
}

func NewService(deps ServiceDeps) Service {
	return &service{
		identities: deps.IdentityRepo,
		roster:     deps.Roster,
		signer:     deps.JWTProvider,
	}
}

// Register creates a student identity. Only ids present on the school roster
// may register; an unreachable roster counts as "not present".
func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Identity, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	id := strings.TrimSpace(req.ID)

	ok, err := s.roster.Contains(ctx, id)
	if err != nil {
		slog.Warn("roster check failed, treating id as unknown", "id", id, "err", err)
		ok = false
	}
	if !ok {
		return nil, fmt.Errorf("user is not enrolled in the school: %w", domain.ErrForbidden)
	}
	return s.create(ctx, id, req.Credential, domain.KindStudent, "", "")
}

func (s *service) RegisterParent(ctx context.Context, req domain.RegisterParentRequest) (*domain.Identity, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	return s.create(ctx, strings.TrimSpace(req.ID), req.Credential, domain.KindParent,
		strings.TrimSpace(req.Name), strings.TrimSpace(req.Phone))
}

func (s *service) create(ctx context.Context, id, credential string, kind domain.IdentityKind, name, phone string) (*domain.Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	identity := &domain.Identity{
		ID:             id,
		CredentialHash: string(hash),
		Kind:           kind,
		Name:           name,
		Phone:          phone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("user already registered: %w", domain.ErrConflict)
		}
		return nil, err
	}
	return identity, nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	identity, err := s.identities.Get(ctx, strings.TrimSpace(req.ID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Unknown ids pay for a hash comparison too, so timing does not reveal registration.
			_ = compareCredential(dummyHash(), []byte(req.Credential))
			return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if err := compareCredential([]byte(identity.CredentialHash), []byte(req.Credential)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	token, err := s.signer.Sign(identity.ID, identity.Kind)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &domain.LoginResult{Token: token, Identity: identity}, nil
}

func (s *service) ChangeCredential(ctx context.Context, identityID string, req domain.ChangeCredentialRequest) error {
	if err := validate.Struct(&req); err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	identity, err := s.identities.Get(ctx, identityID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.CredentialHash), []byte(req.CurrentCredential)); err != nil {
		return fmt.Errorf("current credential is incorrect: %w", domain.ErrUnauthorized)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewCredential), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.identities.UpdateCredential(ctx, identityID, string(hash))
}
