package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mhkaycey/wallet-service/config"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.PaystackConfig{
		BaseURL:   baseURL,
		SecretKey: "sk_test_secret",
		Timeout:   2 * time.Second,
	}, zerolog.Nop())
}

func TestClient_InitializeTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_secret", r.Header.Get("Authorization"))

		var req initializeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice@example.com", req.Email)
		assert.Equal(t, int64(50000), req.Amount, "500.00 should become 50000 minor units")
		assert.Equal(t, "ref_abc", req.Reference)

		json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Authorization URL created",
			"data": map[string]any{
				"authorization_url": "https://checkout.paystack.com/xyz",
				"access_code":       "xyz",
				"reference":         "ref_abc",
			},
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	session, err := client.InitializeTransaction(context.Background(), "alice@example.com", decimal.NewFromInt(500), "ref_abc")
	require.NoError(t, err)
	assert.Equal(t, "ref_abc", session.Reference)
	assert.Equal(t, "https://checkout.paystack.com/xyz", session.AuthorizationURL)
}

func TestClient_InitializeTransaction_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":  false,
			"message": "Invalid key",
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.InitializeTransaction(context.Background(), "a@b.com", decimal.NewFromInt(10), "ref_x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid key")
}

func TestClient_VerifyTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/transaction/verify/ref_abc", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Verification successful",
			"data": map[string]any{
				"status":    "success",
				"reference": "ref_abc",
				"amount":    50000,
			},
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	result, err := client.VerifyTransaction(context.Background(), "ref_abc")
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, int64(50000), result.AmountMinor)
}

func TestClient_VerifyTransaction_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.VerifyTransaction(context.Background(), "ref_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestClient_VerifySignature(t *testing.T) {
	client := newTestClient("http://unused")
	body := []byte(`{"event":"charge.success","data":{"reference":"ref_abc"}}`)

	mac := hmac.New(sha512.New, []byte("sk_test_secret"))
	mac.Write(body)
	valid := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, client.VerifySignature(body, valid))
	assert.False(t, client.VerifySignature(body, "deadbeef"))
	assert.False(t, client.VerifySignature(body, ""))

	// Any change to the raw bytes invalidates the signature.
	tampered := append([]byte{}, body...)
	tampered[0] = ' '
	assert.False(t, client.VerifySignature(tampered, valid))
}
