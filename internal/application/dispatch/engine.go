package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/school-notify-api/internal/domain"
	"github.com/school-notify-api/internal/metrics"
	"github.com/school-notify-api/internal/pkg/id"
	"golang.org/x/sync/errgroup"
)

// Message is the content shared by every delivery in a batch.
type Message struct {
	Title string
	Body  string
	Data  domain.Payload
}

// Report is the awaited result of a dispatch batch.
type Report struct {
	Resolved  int
	Outcomes  []domain.DeliveryOutcome
	Recorded  int
	Delivered int
	Skipped   int
	Failed    int
}

type sender interface {
	Send(ctx context.Context, msg domain.PushMessage) error
}

type addressLookup interface {
	Get(ctx context.Context, recipientID string) (*domain.Registration, error)
}

type ledger interface {
	PutBatch(ctx context.Context, notifications []domain.Notification) error
}

// Engine delivers a message to a set of targets with bounded concurrency and
// records one ledger entry per target that had a delivery address.
type Engine struct {
	registrations addressLookup
	ledger        ledger
	sender        sender
	concurrency   int
}

func NewEngine(registrations addressLookup, ledger ledger, sender sender, concurrency int) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{registrations: registrations, ledger: ledger, sender: sender, concurrency: concurrency}
}

// Dispatch sends msg to every target and waits for all of them. Per-target
// failures land in the report; only a ledger write failure is returned. The
// batch is detached from ctx cancellation so an accepted request completes.
func (e *Engine) Dispatch(ctx context.Context, path string, targets []Target, msg Message) (*Report, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	defer func() {
		metrics.DispatchDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}()

	outcomes := make([]domain.DeliveryOutcome, len(targets))
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i := range targets {
		g.Go(func() error {
			outcomes[i] = e.deliver(ctx, targets[i], msg)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{Resolved: len(targets), Outcomes: outcomes}
	now := time.Now().UTC()
	records := make([]domain.Notification, 0, len(outcomes))
	for _, o := range outcomes {
		metrics.DispatchOutcomes.WithLabelValues(path, string(o.Status)).Inc()
		switch o.Status {
		case domain.OutcomeSent:
			report.Delivered++
		case domain.OutcomeSkipped:
			report.Skipped++
		case domain.OutcomeFailed:
			report.Failed++
		}
		if o.Address == "" {
			continue
		}
		records = append(records, domain.Notification{
			NotificationID: id.NewAt(now),
			RecipientID:    o.RecipientID,
			Title:          msg.Title,
			Body:           msg.Body,
			Data:           msg.Data,
			Sent:           true,
			CreatedAt:      now,
		})
	}

	if len(records) > 0 {
		if err := e.ledger.PutBatch(ctx, records); err != nil {
			slog.Error("failed to record notifications", "path", path, "records", len(records), "err", err)
			return nil, fmt.Errorf("record notifications: %w", err)
		}
		metrics.LedgerRecords.Add(float64(len(records)))
	}
	report.Recorded = len(records)

	slog.Info("dispatch complete", "path", path, "resolved", report.Resolved,
		"delivered", report.Delivered, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

func (e *Engine) deliver(ctx context.Context, t Target, msg Message) domain.DeliveryOutcome {
	out := domain.DeliveryOutcome{RecipientID: t.RecipientID}

	address := t.Address
	if !t.Resolved {
		reg, err := e.registrations.Get(ctx, t.RecipientID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			slog.Error("delivery address lookup failed", "recipient_id", t.RecipientID, "err", err)
			out.Status = domain.OutcomeFailed
			out.Error = "address lookup failed"
			return out
		default:
			address = reg.DeliveryAddress
		}
	}
	if address == "" {
		slog.Warn("no push token registered, skipping", "recipient_id", t.RecipientID)
		out.Status = domain.OutcomeSkipped
		out.Error = "no push token registered"
		return out
	}

	out.Address = address
	err := e.sender.Send(ctx, domain.PushMessage{
		Address: address,
		Title:   msg.Title,
		Body:    msg.Body,
		Data:    msg.Data,
	})
	if err != nil {
		slog.Warn("push delivery failed", "recipient_id", t.RecipientID, "err", err)
		out.Status = domain.OutcomeFailed
		out.Error = err.Error()
		return out
	}
	out.Status = domain.OutcomeSent
	return out
}
