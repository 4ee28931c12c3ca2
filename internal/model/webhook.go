package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Event type prefixes sent by the transaction platform.
const (
	EventPrefixTransaction    = "transaction"
	EventPrefixEmbeddedWallet = "embedded_wallet"
)

// PeerTypeEndUserWallet marks a transfer peer that belongs to an end user.
const PeerTypeEndUserWallet = "END_USER_WALLET"

// WebhookEvent is the envelope every webhook delivery carries.
// Data stays raw until the event has been classified.
type WebhookEvent struct {
	ID          string          `json:"id"`
	EventType   string          `json:"eventType"`
	ResourceID  string          `json:"resourceId,omitempty"`
	WorkspaceID string          `json:"workspaceId,omitempty"`
	CreatedAt   int64           `json:"createdAt,omitempty"`
	Data        json.RawMessage `json:"data"`

	// Raw is the verified request body, kept for auditing. Envelope fields
	// the struct does not model survive only here.
	Raw json.RawMessage `json:"-"`
}

// Valid reports whether the envelope is syntactically acceptable:
// a non-empty event type and a non-null data object.
func (e *WebhookEvent) Valid() bool {
	if e == nil || strings.TrimSpace(e.EventType) == "" {
		return false
	}
	data := bytes.TrimSpace(e.Data)
	return len(data) > 0 && !bytes.Equal(data, []byte("null"))
}

// EventCategory is the discriminant derived from the event type.
type EventCategory int

const (
	CategoryUnrecognized EventCategory = iota
	CategoryTransaction
	CategoryWallet
)

func (c EventCategory) String() string {
	switch c {
	case CategoryTransaction:
		return "transaction"
	case CategoryWallet:
		return "wallet"
	default:
		return "unrecognized"
	}
}

// TransferPeer is one side of a transaction.
type TransferPeer struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	WalletID string `json:"walletId,omitempty"`
	Name     string `json:"name,omitempty"`
}

// IsEndUserWallet reports whether the peer is an end-user wallet.
// Older payloads use the lowercase spelling.
func (p *TransferPeer) IsEndUserWallet() bool {
	return p != nil && strings.EqualFold(p.Type, PeerTypeEndUserWallet)
}

// TransactionDestination is one entry of a multi-destination transaction.
type TransactionDestination struct {
	Destination *TransferPeer `json:"destination"`
}

// Transaction is the data body of transaction.* events.
type Transaction struct {
	ID           string                   `json:"id"`
	Status       string                   `json:"status"`
	SubStatus    string                   `json:"subStatus,omitempty"`
	TxHash       string                   `json:"txHash,omitempty"`
	AssetID      string                   `json:"assetId,omitempty"`
	Source       *TransferPeer            `json:"source,omitempty"`
	Destination  *TransferPeer            `json:"destination,omitempty"`
	Destinations []TransactionDestination `json:"destinations,omitempty"`
}

// WalletBalance is the data body of embedded_wallet.* events.
type WalletBalance struct {
	WalletID  string `json:"walletId"`
	AccountID string `json:"accountId,omitempty"`
	AssetID   string `json:"assetId,omitempty"`
}

// WebhookAccepted is returned to the platform once an event has been queued.
type WebhookAccepted struct {
	EventID string `json:"eventId"`
}
