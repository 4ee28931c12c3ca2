package model

// NotificationPayload is the channel-neutral content of a push.
type NotificationPayload struct {
	Title string
	Body  string
	Data  map[string]any
}

// Channel names a delivery mechanism.
type Channel string

const (
	ChannelFCM     Channel = "fcm"
	ChannelWebPush Channel = "web_push"
)

// DeliveryStatus is the outcome of a single send.
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// DeliveryResult records what happened to one destination.
type DeliveryResult struct {
	Channel       Channel        `json:"channel"`
	DestinationID string         `json:"destinationId"`
	WalletID      string         `json:"walletId"`
	Target        string         `json:"target"`
	Status        DeliveryStatus `json:"status"`
	Error         string         `json:"error,omitempty"`
}

// DispatchReport aggregates the per-destination outcomes of one fan-out.
// Results are in destination order: FCM tokens first, then web push subscriptions.
type DispatchReport struct {
	Identities      []string         `json:"identities"`
	Results         []DeliveryResult `json:"results"`
	SkippedChannels []Channel        `json:"skippedChannels,omitempty"`
}

// Sent returns the number of successful deliveries.
func (r *DispatchReport) Sent() int {
	return r.count(DeliverySent)
}

// Failed returns the number of failed deliveries.
func (r *DispatchReport) Failed() int {
	return r.count(DeliveryFailed)
}

func (r *DispatchReport) count(status DeliveryStatus) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// VAPIDKeyResponse is returned by GET /notifications/vapid-public-key.
type VAPIDKeyResponse struct {
	PublicKey string `json:"publicKey"`
}
