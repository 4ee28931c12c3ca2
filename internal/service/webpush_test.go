package service

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletnotify/internal/model"
)

// browserSubscription generates keys the way a browser would.
func browserSubscription(t *testing.T, endpoint string) model.WebPushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)

	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	return model.WebPushSubscription{
		ID:       "sub-1",
		WalletID: "w1",
		Endpoint: endpoint,
		Auth:     base64.RawURLEncoding.EncodeToString(auth),
		P256dh:   base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
	}
}

func newTestWebPushClient(t *testing.T) *WebPushClient {
	t.Helper()
	priv, pub, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)

	client, err := NewWebPushClient(WebPushConfig{
		Subject:    "mailto:ops@example.com",
		PublicKey:  pub,
		PrivateKey: priv,
		TTL:        60,
	})
	require.NoError(t, err)
	return client
}

func TestWebPushClient_Send(t *testing.T) {
	var gotAuth, gotTTL, gotEncoding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTTL = r.Header.Get("TTL")
		gotEncoding = r.Header.Get("Content-Encoding")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := newTestWebPushClient(t)
	err := client.Send(context.Background(), browserSubscription(t, srv.URL+"/push/abc"), []byte(`{"title":"hi"}`))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(gotAuth, "vapid "), "VAPID authorization expected, got %q", gotAuth)
	assert.Equal(t, "60", gotTTL)
	assert.Equal(t, "aes128gcm", gotEncoding)
}

func TestWebPushClient_GoneSubscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
		_, _ = w.Write([]byte("subscription expired"))
	}))
	defer srv.Close()

	client := newTestWebPushClient(t)
	err := client.Send(context.Background(), browserSubscription(t, srv.URL), []byte(`{}`))

	var pushErr *PushServiceError
	require.True(t, errors.As(err, &pushErr), "expected PushServiceError, got %v", err)
	assert.Equal(t, http.StatusGone, pushErr.StatusCode)
	assert.True(t, pushErr.Expired())
	assert.Contains(t, pushErr.Body, "expired")
}

func TestNewWebPushClient_Unconfigured(t *testing.T) {
	_, err := NewWebPushClient(WebPushConfig{Subject: "mailto:x@example.com", PublicKey: "pub"})
	assert.ErrorIs(t, err, model.ErrChannelUnavailable)
}
