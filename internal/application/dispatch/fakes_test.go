package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/school-notify-api/internal/domain"
)

type fakeRegistrations struct {
	regs   map[string]domain.Registration
	getErr map[string]error
}

func newFakeRegistrations(regs ...domain.Registration) *fakeRegistrations {
	f := &fakeRegistrations{regs: map[string]domain.Registration{}, getErr: map[string]error{}}
	for _, r := range regs {
		f.regs[r.RecipientID] = r
	}
	return f
}

func (f *fakeRegistrations) Get(_ context.Context, id string) (*domain.Registration, error) {
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	r, ok := f.regs[id]
	if !ok {
		return nil, fmt.Errorf("registration not found: %w", domain.ErrNotFound)
	}
	return &r, nil
}

func (f *fakeRegistrations) BatchGet(_ context.Context, ids []string) (map[string]domain.Registration, error) {
	out := map[string]domain.Registration{}
	for _, id := range ids {
		if r, ok := f.regs[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

func (f *fakeRegistrations) ListByChild(_ context.Context, childID string) ([]domain.Registration, error) {
	var out []domain.Registration
	for _, r := range f.regs {
		if _, ok := r.Child(childID); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeIdentities struct {
	students []string
	err      error
}

func (f *fakeIdentities) ListIDsByKind(_ context.Context, kind domain.IdentityKind) ([]string, error) {
	if kind != domain.KindStudent {
		return nil, nil
	}
	return f.students, f.err
}

type fakeRoster struct {
	ids []string
	err error
}

func (f *fakeRoster) IDs(context.Context) ([]string, error) { return f.ids, f.err }

type fakeLedger struct {
	mu      sync.Mutex
	records []domain.Notification
	calls   int
	err     error
}

func (f *fakeLedger) PutBatch(_ context.Context, n []domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, n...)
	return nil
}

func (f *fakeLedger) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r.RecipientID)
	}
	return out
}

var errProviderDown = errors.New("provider down")

type fakeSender struct {
	mu   sync.Mutex
	sent []domain.PushMessage
	fail map[string]error
}

func (f *fakeSender) Send(_ context.Context, msg domain.PushMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	if err := f.fail[msg.Address]; err != nil {
		return err
	}
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func reg(id, address string, children ...domain.Child) domain.Registration {
	return domain.Registration{RecipientID: id, DeliveryAddress: address, Children: children}
}
