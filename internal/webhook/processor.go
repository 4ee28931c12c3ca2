package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"walletnotify/internal/audit"
	"walletnotify/internal/cache"
	"walletnotify/internal/logger"
	"walletnotify/internal/metrics"
	"walletnotify/internal/model"
)

// Notifier fans a payload out to the destinations of a set of wallets.
type Notifier interface {
	Dispatch(ctx context.Context, walletIDs []string, payload model.NotificationPayload) (*model.DispatchReport, error)
}

// Outcome values describe how far an event got through the pipeline.
const (
	OutcomeDispatched     = "dispatched"
	OutcomeIgnored        = "ignored"
	OutcomeNoParticipants = "no_participants"
	OutcomeNotNotifiable  = "not_notifiable"
	OutcomeDuplicate      = "duplicate"
	OutcomeFailed         = "failed"
)

// Outcome is the result of processing one event.
type Outcome struct {
	Category     model.EventCategory
	Result       string
	Participants []string
	Report       *model.DispatchReport
}

// ProcessorConfig wires the optional parts of the pipeline.
type ProcessorConfig struct {
	// Notifiable filters transactions by status. Nil allows all.
	Notifiable StatusPolicy
	// IncludeWebhookData embeds the full event under "webhookData" in
	// transaction notifications.
	IncludeWebhookData bool
	// Audit receives a copy of every event. Nil disables auditing.
	Audit audit.Sink
	// Deduper drops redelivered event ids. Nil disables de-duplication.
	Deduper cache.EventDeduper
}

// Processor turns a verified webhook event into notifications.
type Processor struct {
	notifier   Notifier
	notifiable StatusPolicy
	includeRaw bool
	audit      audit.Sink
	deduper    cache.EventDeduper
}

func NewProcessor(notifier Notifier, cfg ProcessorConfig) *Processor {
	notifiable := cfg.Notifiable
	if notifiable == nil {
		notifiable = AllowAllStatuses
	}
	sink := cfg.Audit
	if sink == nil {
		sink = audit.Nop{}
	}
	return &Processor{
		notifier:   notifier,
		notifiable: notifiable,
		includeRaw: cfg.IncludeWebhookData,
		audit:      sink,
		deduper:    cfg.Deduper,
	}
}

// Process runs audit, de-duplication, classification, participant resolution
// and dispatch for one event. Unrecognized events are not errors.
func (p *Processor) Process(ctx context.Context, event *model.WebhookEvent) (out *Outcome, err error) {
	log := logger.From(ctx).With(
		"component", "pipeline",
		"event_id", event.ID,
		"event_type", event.EventType,
		"resource_id", event.ResourceID,
	)

	category := Classify(event.EventType)
	defer func() {
		result := OutcomeFailed
		if out != nil && err == nil {
			result = out.Result
		}
		metrics.EventsProcessed.WithLabelValues(category.String(), result).Inc()
	}()

	if err := p.audit.Save(ctx, event); err != nil {
		log.Warn("Audit save FAILED", "error", err)
	}

	if p.deduper != nil && event.ID != "" {
		first, derr := p.deduper.MarkSeen(ctx, event.ID)
		switch {
		case derr != nil:
			log.Warn("Dedupe check FAILED, processing anyway", "error", derr)
		case !first:
			log.Info("Duplicate event dropped")
			return &Outcome{Category: category, Result: OutcomeDuplicate}, nil
		default:
			// A failed or panicking run must stay eligible for redelivery.
			defer func() {
				r := recover()
				if r != nil || err != nil {
					p.release(ctx, log, event.ID)
				}
				if r != nil {
					panic(r)
				}
			}()
		}
	}

	switch category {
	case model.CategoryTransaction:
		out, err = p.processTransaction(ctx, log, event)
	case model.CategoryWallet:
		out, err = p.processWallet(ctx, log, event)
	default:
		log.Warn("Unrecognized event type, dropping", "error", model.ErrUnrecognizedEvent)
		return &Outcome{Category: category, Result: OutcomeIgnored}, nil
	}
	return out, err
}

// release forgets the id even when ctx is already cancelled.
func (p *Processor) release(ctx context.Context, log *slog.Logger, eventID string) {
	if err := p.deduper.Forget(context.WithoutCancel(ctx), eventID); err != nil {
		log.Warn("Dedupe release FAILED", "error", err)
	}
}

func (p *Processor) processTransaction(ctx context.Context, log *slog.Logger, event *model.WebhookEvent) (*Outcome, error) {
	var tx model.Transaction
	if err := json.Unmarshal(event.Data, &tx); err != nil {
		return nil, fmt.Errorf("decode transaction data: %w", err)
	}
	out := &Outcome{Category: model.CategoryTransaction}

	out.Participants = TransactionParticipants(&tx)
	if len(out.Participants) == 0 {
		log.Info("No participants for transaction", "tx_id", tx.ID)
		out.Result = OutcomeNoParticipants
		return out, nil
	}

	if !p.notifiable(tx.Status) {
		log.Info("Transaction status not notifiable", "tx_id", tx.ID, "status", tx.Status)
		out.Result = OutcomeNotNotifiable
		return out, nil
	}

	return p.dispatch(ctx, log, out, TransactionPayload(event, &tx, p.includeRaw))
}

func (p *Processor) processWallet(ctx context.Context, log *slog.Logger, event *model.WebhookEvent) (*Outcome, error) {
	var balance model.WalletBalance
	if err := json.Unmarshal(event.Data, &balance); err != nil {
		return nil, fmt.Errorf("decode wallet data: %w", err)
	}
	out := &Outcome{Category: model.CategoryWallet}

	out.Participants = WalletParticipants(&balance)
	if len(out.Participants) == 0 {
		log.Info("Wallet event without walletId")
		out.Result = OutcomeNoParticipants
		return out, nil
	}

	return p.dispatch(ctx, log, out, WalletPayload(event, balance.WalletID))
}

func (p *Processor) dispatch(ctx context.Context, log *slog.Logger, out *Outcome, payload model.NotificationPayload) (*Outcome, error) {
	report, err := p.notifier.Dispatch(ctx, out.Participants, payload)
	if err != nil {
		return nil, fmt.Errorf("dispatch %s notification: %w", out.Category, err)
	}

	out.Report = report
	out.Result = OutcomeDispatched
	log.Info("Event processed",
		"participants", out.Participants,
		"sent", report.Sent(),
		"failed", report.Failed())
	return out, nil
}

// TransactionPayload builds the notification for a transaction event.
func TransactionPayload(event *model.WebhookEvent, tx *model.Transaction, includeRaw bool) model.NotificationPayload {
	shortID := tx.ID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	var raw any
	if includeRaw {
		raw = event
	}

	return model.NotificationPayload{
		Title: "Transaction Update",
		Body:  fmt.Sprintf("Transaction %s... is now in %s status", shortID, tx.Status),
		Data: map[string]any{
			"type":        event.EventType,
			"txId":        tx.ID,
			"txHash":      tx.TxHash,
			"status":      tx.Status,
			"webhookData": raw,
		},
	}
}

// WalletPayload builds the notification for an embedded wallet event.
// The whole envelope travels as data so clients can refresh balances directly.
func WalletPayload(event *model.WebhookEvent, walletID string) model.NotificationPayload {
	return model.NotificationPayload{
		Title: "Wallet Update",
		Body:  fmt.Sprintf("Wallet %s received %s event", walletID, event.EventType),
		Data: map[string]any{
			"id":          event.ID,
			"eventType":   event.EventType,
			"resourceId":  event.ResourceID,
			"workspaceId": event.WorkspaceID,
			"createdAt":   event.CreatedAt,
			"data":        event.Data,
		},
	}
}
