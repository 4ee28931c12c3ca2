package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletnotify/internal/model"
)

func TestStringifyData(t *testing.T) {
	got := StringifyData(map[string]any{
		"str":    "plain",
		"num":    42,
		"float":  1.5,
		"bool":   true,
		"nil":    nil,
		"nested": map[string]any{"a": "b"},
		"list":   []string{"x", "y"},
	})

	assert.Equal(t, map[string]string{
		"str":    "plain",
		"num":    "42",
		"float":  "1.5",
		"bool":   "true",
		"nil":    "null",
		"nested": `{"a":"b"}`,
		"list":   `["x","y"]`,
	}, got)
}

func TestWebPushBody_FlattensData(t *testing.T) {
	body, err := WebPushBody(model.NotificationPayload{
		Title: "Wallet Update",
		Body:  "Wallet w1 received embedded_wallet.balance.updated event",
		Data: map[string]any{
			"eventType": "embedded_wallet.balance.updated",
			"data":      map[string]any{"walletId": "w1"},
		},
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "Wallet Update", decoded["title"])
	assert.Equal(t, "embedded_wallet.balance.updated", decoded["eventType"])
	assert.Equal(t, map[string]any{"walletId": "w1"}, decoded["data"])
}

func TestWebPushBody_DataOverridesTitle(t *testing.T) {
	body, err := WebPushBody(model.NotificationPayload{
		Title: "original",
		Data:  map[string]any{"title": "override"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"override","body":""}`, string(body))
}

func TestMasking(t *testing.T) {
	assert.Equal(t, "abcdefgh...", maskToken("abcdefghijklmnop"))
	assert.Equal(t, "short", maskToken("short"))
	assert.Equal(t, "fcm.googleapis.com", maskEndpoint("https://fcm.googleapis.com/fcm/send/abc"))
}
