// Package registration manages delivery addresses and parent-student links.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/school-notify-api/internal/domain"
	"github.com/school-notify-api/internal/pkg/validate"
)

type Service interface {
	SavePushToken(ctx context.Context, req domain.SavePushTokenRequest) error
	AddStudent(ctx context.Context, parentID string, req domain.AddStudentRequest) ([]domain.Child, error)
	RemoveStudent(ctx context.Context, parentID, studentID string) ([]domain.Child, error)
	ListStudents(ctx context.Context, parentID string) ([]domain.Child, error)
}

type identityStore interface {
	Get(ctx context.Context, identityID string) (*domain.Identity, error)
}

type registrationStore interface {
	Get(ctx context.Context, recipientID string) (*domain.Registration, error)
	BindAddress(ctx context.Context, recipientID, address string) error
	SetChildren(ctx context.Context, recipientID string, children []domain.Child) error
}

type rosterChecker interface {
	Contains(ctx context.Context, id string) (bool, error)
}

type service struct {
	identities    identityStore
	registrations registrationStore
	roster        rosterChecker
}

type ServiceDeps struct {
	IdentityRepo     identityStore
	RegistrationRepo registrationStore
	Roster           rosterChecker
}

func NewService(deps ServiceDeps) Service {
	return &service{
		identities:    deps.IdentityRepo,
		registrations: deps.RegistrationRepo,
		roster:        deps.Roster,
	}
}

// SavePushToken binds address to a registered identity. An address already
// bound to someone else is rejected and the existing binding is kept.
func (s *service) SavePushToken(ctx context.Context, req domain.SavePushTokenRequest) error {
	if err := validate.Struct(&req); err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	id := strings.TrimSpace(req.ID)
	address := strings.TrimSpace(req.Address)

	if _, err := s.identities.Get(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("user is not registered: %w", domain.ErrBadRequest)
		}
		return err
	}
	if err := s.registrations.BindAddress(ctx, id, address); err != nil {
		return err
	}
	slog.Info("push token saved", "recipient_id", id)
	return nil
}

func (s *service) AddStudent(ctx context.Context, parentID string, req domain.AddStudentRequest) ([]domain.Child, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	if err := s.requireParent(ctx, parentID); err != nil {
		return nil, err
	}
	studentID := strings.TrimSpace(req.StudentID)
	name := strings.TrimSpace(req.StudentName)

	ok, err := s.roster.Contains(ctx, studentID)
	if err != nil {
		slog.Warn("roster check failed, treating student as unknown", "student_id", studentID, "err", err)
		ok = false
	}
	if !ok {
		return nil, fmt.Errorf("student is not enrolled in the school: %w", domain.ErrForbidden)
	}

	children, err := s.children(ctx, parentID)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range children {
		if children[i].ChildID == studentID {
			found = true
			if name != "" {
				children[i].ChildName = name
			}
		}
	}
	if !found {
		children = append(children, domain.Child{ChildID: studentID, ChildName: name})
	}
	if err := s.registrations.SetChildren(ctx, parentID, children); err != nil {
		return nil, err
	}
	return children, nil
}

func (s *service) RemoveStudent(ctx context.Context, parentID, studentID string) ([]domain.Child, error) {
	if err := s.requireParent(ctx, parentID); err != nil {
		return nil, err
	}
	studentID = strings.TrimSpace(studentID)
	children, err := s.children(ctx, parentID)
	if err != nil {
		return nil, err
	}
	kept := make([]domain.Child, 0, len(children))
	for _, c := range children {
		if c.ChildID != studentID {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(children) {
		return nil, fmt.Errorf("student is not linked to this parent: %w", domain.ErrNotFound)
	}
	if err := s.registrations.SetChildren(ctx, parentID, kept); err != nil {
		return nil, err
	}
	return kept, nil
}

func (s *service) ListStudents(ctx context.Context, parentID string) ([]domain.Child, error) {
	if err := s.requireParent(ctx, parentID); err != nil {
		return nil, err
	}
	children, err := s.children(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if children == nil {
		children = []domain.Child{}
	}
	return children, nil
}

func (s *service) requireParent(ctx context.Context, parentID string) error {
	identity, err := s.identities.Get(ctx, parentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("parent is not registered: %w", domain.ErrForbidden)
		}
		return err
	}
	if identity.Kind != domain.KindParent {
		return fmt.Errorf("only parents can manage students: %w", domain.ErrForbidden)
	}
	return nil
}

// children returns the current links, or none when the parent has no
// registration yet.
func (s *service) children(ctx context.Context, parentID string) ([]domain.Child, error) {
	reg, err := s.registrations.Get(ctx, parentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return reg.Children, nil
}
