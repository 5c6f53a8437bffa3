package rfq

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

const (
	testQuoteID = "3f1c2a9e-8b7d-4c6e-9a1b-2d3e4f5a6b7c"
	testOrderID = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
)

// writeJSON encodes v as JSON into w.
func writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic("test helper writeJSON: " + err.Error())
	}
}

// validQuoteBody returns a quote payload as the venue sends it.
func validQuoteBody() map[string]any {
	requested := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return map[string]any{
		"quoteId":         testQuoteID,
		"pair":            "BTC-USD",
		"side":            "BUY",
		"deliverQuantity": "103.06",
		"receiveQuantity": "0.00112",
		"requestedAt":     requested.Format(time.RFC3339Nano),
		"expiresAt":       requested.Add(10 * time.Second).Format(time.RFC3339Nano),
		"quoteStatus":     "AWAITING_RESPONSE",
	}
}

// newTestClient returns a Client pointed at srv for both API and token endpoints.
func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(zap.NewNop(), nil, ClientConfig{
		BaseURL:      srv.URL + "/",
		TokenURL:     srv.URL + "/oauth/token",
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
	}, 5*time.Second)
}

// respond returns a handler that always writes status and body.
func respond(status int, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if s, ok := body.(string); ok {
			_, _ = w.Write([]byte(s))
			return
		}
		writeJSON(w, body)
	}
}
