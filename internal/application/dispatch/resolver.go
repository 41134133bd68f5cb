package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/school-notify-api/internal/domain"
)

// Target is one recipient of a dispatch. Resolved targets already carry their
// delivery address (possibly empty); the engine looks the rest up.
type Target struct {
	RecipientID string
	Address     string
	Resolved    bool
}

type registrationReader interface {
	Get(ctx context.Context, recipientID string) (*domain.Registration, error)
	BatchGet(ctx context.Context, ids []string) (map[string]domain.Registration, error)
	ListByChild(ctx context.Context, childID string) ([]domain.Registration, error)
}

type identityLister interface {
	ListIDsByKind(ctx context.Context, kind domain.IdentityKind) ([]string, error)
}

type rosterLister interface {
	IDs(ctx context.Context) ([]string, error)
}

// Resolver turns a dispatch request into its recipient set.
type Resolver struct {
	registrations registrationReader
	identities    identityLister
	roster        rosterLister
}

func NewResolver(registrations registrationReader, identities identityLister, roster rosterLister) *Resolver {
	return &Resolver{registrations: registrations, identities: identities, roster: roster}
}

// Explicit resolves a caller-supplied id list. Every id must have a
// registration with a delivery address; otherwise nothing is resolved and an
// *domain.InvalidRecipientsError lists the offenders in request order.
func (r *Resolver) Explicit(ctx context.Context, ids []string) ([]Target, error) {
	unique := dedupe(ids)
	if len(unique) == 0 {
		return nil, fmt.Errorf("ids must contain at least one user id: %w", domain.ErrBadRequest)
	}

	regs, err := r.registrations.BatchGet(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("load registrations: %w", err)
	}

	targets := make([]Target, 0, len(unique))
	var invalid []string
	for _, id := range unique {
		reg, ok := regs[id]
		if !ok || reg.DeliveryAddress == "" {
			invalid = append(invalid, id)
			continue
		}
		targets = append(targets, Target{RecipientID: id, Address: reg.DeliveryAddress, Resolved: true})
	}
	if len(invalid) > 0 {
		return nil, &domain.InvalidRecipientsError{IDs: invalid}
	}
	return targets, nil
}

// BroadcastSet is the resolved "all school users" audience.
type BroadcastSet struct {
	Targets              []Target
	TotalSchoolUsers     int
	TotalRegisteredUsers int
}

// Broadcast intersects the roster with registered students. A roster failure
// is logged and treated as an empty roster.
func (r *Resolver) Broadcast(ctx context.Context) (*BroadcastSet, error) {
	rosterIDs, err := r.roster.IDs(ctx)
	if err != nil {
		slog.Error("roster unavailable for broadcast", "err", err)
		rosterIDs = nil
	}
	if len(rosterIDs) == 0 {
		return nil, fmt.Errorf("no users found in school roster: %w", domain.ErrNotFound)
	}

	registered, err := r.identities.ListIDsByKind(ctx, domain.KindStudent)
	if err != nil {
		return nil, fmt.Errorf("list registered students: %w", err)
	}
	if len(registered) == 0 {
		return nil, fmt.Errorf("no registered users found: %w", domain.ErrNotFound)
	}

	onRoster := make(map[string]struct{}, len(rosterIDs))
	for _, id := range rosterIDs {
		onRoster[id] = struct{}{}
	}
	set := &BroadcastSet{TotalSchoolUsers: len(rosterIDs), TotalRegisteredUsers: len(registered)}
	for _, id := range dedupe(registered) {
		if _, ok := onRoster[id]; ok {
			set.Targets = append(set.Targets, Target{RecipientID: id})
		}
	}
	if len(set.Targets) == 0 {
		return nil, fmt.Errorf("no valid users found: %w", domain.ErrNotFound)
	}
	return set, nil
}

// Guardians resolves every registration linked to the student. It also
// returns the first stored name for the student, if any parent recorded one.
func (r *Resolver) Guardians(ctx context.Context, studentID string) ([]Target, string, error) {
	studentID = strings.TrimSpace(studentID)
	regs, err := r.registrations.ListByChild(ctx, studentID)
	if err != nil {
		return nil, "", fmt.Errorf("find guardians: %w", err)
	}
	if len(regs) == 0 {
		return nil, "", fmt.Errorf("no guardian registered for student: %w", domain.ErrNotFound)
	}

	storedName := ""
	targets := make([]Target, 0, len(regs))
	for i := range regs {
		targets = append(targets, Target{
			RecipientID: regs[i].RecipientID,
			Address:     regs[i].DeliveryAddress,
			Resolved:    true,
		})
		if c, ok := regs[i].Child(studentID); ok && storedName == "" {
			storedName = c.ChildName
		}
	}
	return targets, storedName, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
