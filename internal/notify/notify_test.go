package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramNotifier_SendDeposit(t *testing.T) {
	received := make(chan sendMessageRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sendMessage", r.URL.Path)
		var req sendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		received <- req
	}))
	defer srv.Close()

	// constructed exactly as the daemon does: url and chat id only
	n := NewTelegramNotifier(TelegramConfig{ApiURL: srv.URL, ChatID: "-1001"})
	n.SendDeposit(context.Background(), decimal.RequireFromString("150.36"), "xbet", "acc-9")

	select {
	case req := <-received:
		assert.Equal(t, "-1001", req.ChatID)
		assert.Contains(t, req.Text, "150.36")
		assert.Contains(t, req.Text, "xbet")
		assert.Contains(t, req.Text, "acc-9")
	case <-time.After(2 * time.Second):
		t.Fatal("no sendMessage request arrived")
	}
}

func TestTelegramNotifier_SendFailureIsSwallowed(t *testing.T) {
	n := NewTelegramNotifier(TelegramConfig{
		ApiURL:  "http://127.0.0.1:1",
		ChatID:  "-1001",
		Timeout: 100 * time.Millisecond,
	})

	// must not panic or block settlement
	n.SendDeposit(context.Background(), decimal.RequireFromString("10.01"), "melbet", "acc-2")
}
