package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"walletnotify/internal/logger"
	"walletnotify/internal/metrics"
	"walletnotify/internal/model"
	"walletnotify/internal/repository"
)

// TokenSender delivers a data-only message to one FCM registration token.
type TokenSender interface {
	SendData(ctx context.Context, token string, platform model.Platform, data map[string]string) error
}

// SubscriptionSender delivers an encrypted payload to one browser subscription.
type SubscriptionSender interface {
	Send(ctx context.Context, sub model.WebPushSubscription, body []byte) error
}

// DispatcherConfig tunes the fan-out.
type DispatcherConfig struct {
	// MaxConcurrency caps in-flight sends. 0 means one goroutine per destination.
	MaxConcurrency int
}

// Dispatcher fans a notification out to every destination registered for a
// set of wallets. A nil sender disables its channel.
type Dispatcher struct {
	tokens         repository.DeviceTokenRepository
	subs           repository.WebPushSubscriptionRepository
	fcm            TokenSender
	webPush        SubscriptionSender
	maxConcurrency int
}

func NewDispatcher(
	tokens repository.DeviceTokenRepository,
	subs repository.WebPushSubscriptionRepository,
	fcm TokenSender,
	webPush SubscriptionSender,
	cfg DispatcherConfig,
) *Dispatcher {
	return &Dispatcher{
		tokens:         tokens,
		subs:           subs,
		fcm:            fcm,
		webPush:        webPush,
		maxConcurrency: cfg.MaxConcurrency,
	}
}

// delivery is one pending send, whatever the channel.
type delivery interface {
	describe() model.DeliveryResult
	send(ctx context.Context) error
}

type tokenDelivery struct {
	token  model.DeviceToken
	data   map[string]string
	sender TokenSender
}

func (d tokenDelivery) describe() model.DeliveryResult {
	return model.DeliveryResult{
		Channel:       model.ChannelFCM,
		DestinationID: d.token.ID,
		WalletID:      d.token.WalletID,
		Target:        maskToken(d.token.Token),
	}
}

func (d tokenDelivery) send(ctx context.Context) error {
	return d.sender.SendData(ctx, d.token.Token, d.token.Platform, d.data)
}

type subscriptionDelivery struct {
	sub    model.WebPushSubscription
	body   []byte
	sender SubscriptionSender
}

func (d subscriptionDelivery) describe() model.DeliveryResult {
	return model.DeliveryResult{
		Channel:       model.ChannelWebPush,
		DestinationID: d.sub.ID,
		WalletID:      d.sub.WalletID,
		Target:        maskEndpoint(d.sub.Endpoint),
	}
}

func (d subscriptionDelivery) send(ctx context.Context) error {
	return d.sender.Send(ctx, d.sub, d.body)
}

// Dispatch looks up all destinations of walletIDs in one query per channel and
// sends to each of them concurrently. Individual failures are recorded in the
// report and never abort the others. Only a destination lookup failure is
// returned as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, walletIDs []string, payload model.NotificationPayload) (*model.DispatchReport, error) {
	start := time.Now()
	log := logger.From(ctx).With("component", "dispatcher")

	identities := uniqueNonEmpty(walletIDs)
	report := &model.DispatchReport{
		Identities: identities,
		Results:    []model.DeliveryResult{},
	}
	if len(identities) == 0 {
		log.Info("Dispatch skipped: no identities")
		return report, nil
	}

	var deliveries []delivery

	if d.fcm == nil {
		report.SkippedChannels = append(report.SkippedChannels, model.ChannelFCM)
		log.Info("Channel not configured, skipping", "channel", model.ChannelFCM, "available", 0)
	} else {
		tokens, err := d.tokens.GetByWalletIDs(ctx, identities, model.FCMPlatforms...)
		if err != nil {
			return nil, fmt.Errorf("lookup device tokens: %w", err)
		}
		data := StringifyData(payload.Data)
		for _, t := range tokens {
			if !t.Platform.UsesFCM() {
				continue
			}
			deliveries = append(deliveries, tokenDelivery{token: t, data: data, sender: d.fcm})
		}
	}

	if d.webPush == nil {
		report.SkippedChannels = append(report.SkippedChannels, model.ChannelWebPush)
		log.Info("Channel not configured, skipping", "channel", model.ChannelWebPush, "available", 0)
	} else {
		subs, err := d.subs.GetByWalletIDs(ctx, identities)
		if err != nil {
			return nil, fmt.Errorf("lookup web push subscriptions: %w", err)
		}
		if len(subs) > 0 {
			body, err := WebPushBody(payload)
			if err != nil {
				return nil, err
			}
			for _, s := range subs {
				deliveries = append(deliveries, subscriptionDelivery{sub: s, body: body, sender: d.webPush})
			}
		}
	}

	if len(deliveries) == 0 {
		log.Info("Dispatch skipped: no destinations", "identities", identities)
		return report, nil
	}

	results := make([]model.DeliveryResult, len(deliveries))
	var g errgroup.Group
	if d.maxConcurrency > 0 {
		g.SetLimit(d.maxConcurrency)
	}
	for i, dl := range deliveries {
		g.Go(func() error {
			results[i] = deliver(ctx, dl)
			return nil
		})
	}
	_ = g.Wait()

	report.Results = results
	for _, res := range results {
		metrics.Deliveries.WithLabelValues(string(res.Channel), string(res.Status)).Inc()
		if res.Status == model.DeliveryFailed {
			log.Error("Delivery FAILED",
				"channel", res.Channel,
				"destination_id", res.DestinationID,
				"wallet_id", res.WalletID,
				"target", res.Target,
				"error", res.Error)
		}
	}
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())

	log.Info("Dispatch OK",
		"identities", len(identities),
		"destinations", len(deliveries),
		"sent", report.Sent(),
		"failed", report.Failed(),
		"duration", time.Since(start))

	return report, nil
}

// deliver runs one send and converts any outcome, including a panic, into a result.
func deliver(ctx context.Context, dl delivery) (res model.DeliveryResult) {
	res = dl.describe()

	defer func() {
		if r := recover(); r != nil {
			res.Status = model.DeliveryFailed
			res.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	if err := dl.send(ctx); err != nil {
		res.Status = model.DeliveryFailed
		res.Error = err.Error()
		return res
	}
	res.Status = model.DeliverySent
	return res
}

func uniqueNonEmpty(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
