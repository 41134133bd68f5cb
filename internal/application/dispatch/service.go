// Package dispatch resolves notification audiences and fans deliveries out to
// the push provider.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/school-notify-api/internal/domain"
	"github.com/school-notify-api/internal/pkg/validate"
)

// Dispatch paths, used as metric and log labels.
const (
	PathExplicit  = "explicit"
	PathBroadcast = "broadcast"
	PathGuardian  = "guardian"
)

type Service interface {
	SendToRecipients(ctx context.Context, req domain.SendRequest) (*Report, error)
	NotifyAllSchoolUsers(ctx context.Context, req domain.BroadcastRequest) (*BroadcastReport, error)
	NotifyGuardians(ctx context.Context, req domain.GuardianRequest) (*Report, error)
}

// BroadcastReport adds the sizes of both audience sources to a Report.
type BroadcastReport struct {
	*Report
	TotalSchoolUsers     int
	TotalRegisteredUsers int
}

type service struct {
	resolver *Resolver
	engine   *Engine
}

type ServiceDeps struct {
	RegistrationRepo registrationReader
	IdentityRepo     identityLister
	NotificationRepo ledger
	Roster           rosterLister
	Provider         sender
	Concurrency      int
}

func NewService(deps ServiceDeps) Service {
	return &service{
		resolver: NewResolver(deps.RegistrationRepo, deps.IdentityRepo, deps.Roster),
		engine:   NewEngine(deps.RegistrationRepo, deps.NotificationRepo, deps.Provider, deps.Concurrency),
	}
}

func (s *service) SendToRecipients(ctx context.Context, req domain.SendRequest) (*Report, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	targets, err := s.resolver.Explicit(ctx, req.IDs)
	if err != nil {
		return nil, err
	}
	return s.engine.Dispatch(ctx, PathExplicit, targets, Message{Title: req.Title, Body: req.Body, Data: req.Data})
}

func (s *service) NotifyAllSchoolUsers(ctx context.Context, req domain.BroadcastRequest) (*BroadcastReport, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	set, err := s.resolver.Broadcast(ctx)
	if err != nil {
		return nil, err
	}
	report, err := s.engine.Dispatch(ctx, PathBroadcast, set.Targets, Message{Title: req.Title, Body: req.Body, Data: req.Data})
	if err != nil {
		return nil, err
	}
	return &BroadcastReport{
		Report:               report,
		TotalSchoolUsers:     set.TotalSchoolUsers,
		TotalRegisteredUsers: set.TotalRegisteredUsers,
	}, nil
}

// NotifyGuardians sends to every parent linked to the student. The body is
// prefixed with the student's name, taken from the request or else from the
// stored link, and the student is added to the data payload.
func (s *service) NotifyGuardians(ctx context.Context, req domain.GuardianRequest) (*Report, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	targets, storedName, err := s.resolver.Guardians(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.StudentName)
	if name == "" {
		name = storedName
	}
	body := req.Body
	if name != "" {
		body = name + ": " + req.Body
	}
	data := req.Data.Merge(domain.Payload{
		"studentId":   strings.TrimSpace(req.StudentID),
		"studentName": name,
	})
	return s.engine.Dispatch(ctx, PathGuardian, targets, Message{Title: req.Title, Body: body, Data: data})
}
