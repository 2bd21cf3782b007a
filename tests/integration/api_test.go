package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mhkaycey/wallet-service/config"
	httpHandler "github.com/mhkaycey/wallet-service/internal/adapter/http/handler"
	"github.com/mhkaycey/wallet-service/internal/adapter/queue/rabbitmq"
	redisStorage "github.com/mhkaycey/wallet-service/internal/adapter/storage/redis"
	"github.com/mhkaycey/wallet-service/internal/service"
	"github.com/mhkaycey/wallet-service/internal/worker"
	"github.com/mhkaycey/wallet-service/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp builds the full application stack on in-memory storage: miniredis
// behind the real Redis stores, mutex-serialized in-memory repos behind the
// real services, and a stub payment gateway that signs webhooks the way the
// provider does. The HTTP layer, middleware, and services are all real.

const testWebhookSecret = "sk_test_webhook_secret"

type testApp struct {
	server  *httptest.Server
	redis   *miniredis.Miniredis
	gateway *stubGateway
	txRepo  *inMemoryTransactionRepo
	sweeper *worker.Sweeper
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	// Redis stores
	settledCache := redisStorage.NewSettledCache(rdb)

	// Core services with real implementations
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", 24*time.Hour, "test-issuer")

	// In-memory repos
	userRepo := newInMemoryUserRepo()
	walletRepo := newInMemoryWalletRepo()
	txRepo := newInMemoryTransactionRepo()
	apiKeyRepo := newInMemoryAPIKeyRepo()
	transactor := newInMemoryTransactor()

	gateway := newStubGateway(testWebhookSecret)
	log := logger.New("error", false)
	publisher := rabbitmq.NewNoopPublisher(log)

	// Business services
	authSvc := service.NewAuthService(userRepo, walletRepo, hashSvc, tokenSvc, transactor, log)
	walletSvc := service.NewWalletService(walletRepo, txRepo, userRepo, gateway, publisher, transactor, log)
	webhookSvc := service.NewWebhookService(txRepo, walletRepo, gateway, settledCache, publisher, transactor, log)
	apiKeySvc := service.NewAPIKeyService(apiKeyRepo, log)

	sweeperCfg := sweeperConfig()
	sweeper := worker.NewSweeper(txRepo, gateway, webhookSvc, sweeperCfg, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:    authSvc,
		WalletSvc:  walletSvc,
		WebhookSvc: webhookSvc,
		APIKeySvc:  apiKeySvc,
		TokenSvc:   tokenSvc,
		Logger:     log,
	})

	server := httptest.NewServer(router)

	return &testApp{
		server:  server,
		redis:   mr,
		gateway: gateway,
		txRepo:  txRepo,
		sweeper: sweeper,
	}
}

func (a *testApp) close() {
	a.server.Close()
	a.redis.Close()
}

// --- Integration Tests ---

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestIntegration_RegisterAndLogin(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	// Register
	regBody, _ := json.Marshal(map[string]string{
		"email":    "alice@example.com",
		"password": "StrongPass123!",
	})
	resp, err := http.Post(app.server.URL+"/api/v1/auth/register", "application/json", bytes.NewReader(regBody))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var regResp map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&regResp))
	data := regResp["data"].(map[string]interface{})
	assert.NotEmpty(t, data["user_id"])
	assert.Len(t, data["wallet_number"], 10)

	// Login
	loginBody, _ := json.Marshal(map[string]string{
		"email":    "alice@example.com",
		"password": "StrongPass123!",
	})
	resp2, err := http.Post(app.server.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(loginBody))
	require.NoError(t, err)
	defer resp2.Body.Close()

	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	var loginResp map[string]interface{}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&loginResp))
	loginData := loginResp["data"].(map[string]interface{})
	assert.NotEmpty(t, loginData["token"])
}

func TestIntegration_LoginWrongCredentials(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	loginBody, _ := json.Marshal(map[string]string{
		"email":    "nobody@example.com",
		"password": "wrong",
	})
	resp, err := http.Post(app.server.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(loginBody))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_DuplicateEmail(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	regBody, _ := json.Marshal(map[string]string{
		"email":    "taken@example.com",
		"password": "StrongPass123!",
	})

	resp, err := http.Post(app.server.URL+"/api/v1/auth/register", "application/json", bytes.NewReader(regBody))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp2, err := http.Post(app.server.URL+"/api/v1/auth/register", "application/json", bytes.NewReader(regBody))
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusConflict, resp2.StatusCode)
}

func TestIntegration_BalanceStartsAtZero(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token, _ := registerAndLogin(t, app, "zero@example.com")

	data := getJSON(t, app, token, "/api/v1/wallet/balance")
	assert.Equal(t, "0.00", data["balance"])
}

func TestIntegration_Unauthorized(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	req, _ := http.NewRequest(http.MethodGet, app.server.URL+"/api/v1/wallet/balance", nil)
	// No Authorization header
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_DepositLifecycle(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token, _ := registerAndLogin(t, app, "depositor@example.com")

	// Initiate a deposit of 150.00
	depData := postJSON(t, app, token, "/api/v1/wallet/deposit", map[string]string{"amount": "150.00"}, http.StatusCreated)
	reference := depData["reference"].(string)
	assert.NotEmpty(t, reference)
	assert.Contains(t, depData["authorization_url"], reference)

	// Balance unchanged while pending
	balData := getJSON(t, app, token, "/api/v1/wallet/balance")
	assert.Equal(t, "0.00", balData["balance"])

	// Deposit status is PENDING
	statusData := getJSON(t, app, token, "/api/v1/wallet/deposits/"+reference)
	assert.Equal(t, "PENDING", statusData["status"])

	// Provider confirms the charge and delivers a signed webhook
	deliverWebhook(t, app, reference, "charge.success", 15000)

	// Balance credited
	balData = getJSON(t, app, token, "/api/v1/wallet/balance")
	assert.Equal(t, "150.00", balData["balance"])

	statusData = getJSON(t, app, token, "/api/v1/wallet/deposits/"+reference)
	assert.Equal(t, "SUCCESS", statusData["status"])
}

func TestIntegration_WebhookIdempotent(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token, _ := registerAndLogin(t, app, "replay@example.com")

	depData := postJSON(t, app, token, "/api/v1/wallet/deposit", map[string]string{"amount": "100.00"}, http.StatusCreated)
	reference := depData["reference"].(string)

	// Deliver the same webhook five times
	for i := 0; i < 5; i++ {
		deliverWebhook(t, app, reference, "charge.success", 10000)
	}

	// Credited exactly once
	balData := getJSON(t, app, token, "/api/v1/wallet/balance")
	assert.Equal(t, "100.00", balData["balance"])
}

func TestIntegration_WebhookBadSignature(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token, _ := registerAndLogin(t, app, "forged@example.com")

	depData := postJSON(t, app, token, "/api/v1/wallet/deposit", map[string]string{"amount": "100.00"}, http.StatusCreated)
	reference := depData["reference"].(string)

	payload, _ := json.Marshal(map[string]interface{}{
		"event": "charge.success",
		"data":  map[string]interface{}{"reference": reference, "amount": 10000, "status": "success"},
	})

	req, _ := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/webhooks/paystack", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-paystack-signature", "deadbeef")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// No credit happened
	balData := getJSON(t, app, token, "/api/v1/wallet/balance")
	assert.Equal(t, "0.00", balData["balance"])
}

func TestIntegration_NegativeAmountWebhookDoesNotDebit(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token, _ := registerAndLogin(t, app, "negative@example.com")

	depData := postJSON(t, app, token, "/api/v1/wallet/deposit", map[string]string{"amount": "100.00"}, http.StatusCreated)
	reference := depData["reference"].(string)

	// A correctly signed success event carrying a negative amount must be
	// rejected, not applied as a debit.
	payload, _ := json.Marshal(map[string]interface{}{
		"event": "charge.success",
		"data": map[string]interface{}{
			"reference": reference,
			"amount":    -5000,
			"status":    "success",
		},
	})
	req, _ := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/webhooks/paystack", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-paystack-signature", app.gateway.sign(payload))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	balData := getJSON(t, app, token, "/api/v1/wallet/balance")
	assert.Equal(t, "0.00", balData["balance"])

	// Still PENDING, so a later legitimate settlement can go through.
	statusData := getJSON(t, app, token, "/api/v1/wallet/deposits/"+reference)
	assert.Equal(t, "PENDING", statusData["status"])
}

func TestIntegration_FailedChargeDoesNotCredit(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token, _ := registerAndLogin(t, app, "declined@example.com")

	depData := postJSON(t, app, token, "/api/v1/wallet/deposit", map[string]string{"amount": "80.00"}, http.StatusCreated)
	reference := depData["reference"].(string)

	deliverWebhook(t, app, reference, "charge.failed", 8000)

	balData := getJSON(t, app, token, "/api/v1/wallet/balance")
	assert.Equal(t, "0.00", balData["balance"])

	statusData := getJSON(t, app, token, "/api/v1/wallet/deposits/"+reference)
	assert.Equal(t, "FAILED", statusData["status"])
}

func TestIntegration_TransferEndToEnd(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	senderToken, _ := registerAndLogin(t, app, "sender@example.com")
	receiverToken, receiverWallet := registerAndLogin(t, app, "receiver@example.com")

	// Fund the sender via deposit + webhook
	depData := postJSON(t, app, senderToken, "/api/v1/wallet/deposit", map[string]string{"amount": "200.00"}, http.StatusCreated)
	deliverWebhook(t, app, depData["reference"].(string), "charge.success", 20000)

	// Transfer 75.50 to the receiver's wallet number
	txnData := postJSON(t, app, senderToken, "/api/v1/wallet/transfer", map[string]string{
		"wallet_number": receiverWallet,
		"amount":        "75.50",
	}, http.StatusCreated)
	assert.Equal(t, "TRANSFER", txnData["type"])
	assert.Equal(t, "SUCCESS", txnData["status"])
	assert.Equal(t, "75.50", txnData["amount"])

	// Both balances moved
	assert.Equal(t, "124.50", getJSON(t, app, senderToken, "/api/v1/wallet/balance")["balance"])
	assert.Equal(t, "75.50", getJSON(t, app, receiverToken, "/api/v1/wallet/balance")["balance"])

	// Both sides see the transfer in history
	senderHistory := getJSON(t, app, senderToken, "/api/v1/wallet/transactions")
	assert.Equal(t, float64(2), senderHistory["count"]) // deposit + transfer
	receiverHistory := getJSON(t, app, receiverToken, "/api/v1/wallet/transactions")
	assert.Equal(t, float64(1), receiverHistory["count"])
}

func TestIntegration_TransferInsufficientFunds(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	senderToken, _ := registerAndLogin(t, app, "broke@example.com")
	_, receiverWallet := registerAndLogin(t, app, "rich@example.com")

	body, _ := json.Marshal(map[string]string{
		"wallet_number": receiverWallet,
		"amount":        "10.00",
	})
	req, _ := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/wallet/transfer", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+senderToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errResp map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "WAL_002", errResp["error_code"])
}

func TestIntegration_SelfTransferRejected(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token, walletNumber := registerAndLogin(t, app, "narcissus@example.com")

	depData := postJSON(t, app, token, "/api/v1/wallet/deposit", map[string]string{"amount": "50.00"}, http.StatusCreated)
	deliverWebhook(t, app, depData["reference"].(string), "charge.success", 5000)

	body, _ := json.Marshal(map[string]string{
		"wallet_number": walletNumber,
		"amount":        "10.00",
	})
	req, _ := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/wallet/transfer", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errResp map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "WAL_003", errResp["error_code"])
}

func TestIntegration_SweeperSettlesMissedWebhook(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token, _ := registerAndLogin(t, app, "missed@example.com")

	depData := postJSON(t, app, token, "/api/v1/wallet/deposit", map[string]string{"amount": "60.00"}, http.StatusCreated)
	reference := depData["reference"].(string)

	// The provider settled the charge but the webhook never arrived.
	app.gateway.settleCharge(reference, "success", 6000)

	// Age the deposit past the cutoff so the sweeper picks it up.
	ageDeposit(t, app, reference, -time.Hour)

	app.sweeper.Sweep(context.Background())

	balData := getJSON(t, app, token, "/api/v1/wallet/balance")
	assert.Equal(t, "60.00", balData["balance"])

	statusData := getJSON(t, app, token, "/api/v1/wallet/deposits/"+reference)
	assert.Equal(t, "SUCCESS", statusData["status"])
}

func TestIntegration_APIKeyLifecycle(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token, _ := registerAndLogin(t, app, "keys@example.com")

	// Create a READ-only key
	keyData := postJSON(t, app, token, "/api/v1/keys", map[string]interface{}{
		"name":        "reporting",
		"permissions": []string{"READ"},
		"expiry":      "1D",
	}, http.StatusCreated)
	plainKey := keyData["key"].(string)
	assert.NotEmpty(t, plainKey)

	// The key can read the balance
	req, _ := http.NewRequest(http.MethodGet, app.server.URL+"/api/v1/wallet/balance", nil)
	req.Header.Set("X-API-Key", plainKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// But it cannot transfer
	body, _ := json.Marshal(map[string]string{"wallet_number": "1234567890", "amount": "1.00"})
	req2, _ := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/wallet/transfer", bytes.NewReader(body))
	req2.Header.Set("Content-Type", "application/json")
	req2.Header.Set("X-API-Key", plainKey)
	resp2, err := http.DefaultClient.Do(req2)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp2.StatusCode)

	// List shows one key without the secret
	req3, _ := http.NewRequest(http.MethodGet, app.server.URL+"/api/v1/keys", nil)
	req3.Header.Set("Authorization", "Bearer "+token)
	resp3, err := http.DefaultClient.Do(req3)
	require.NoError(t, err)
	defer resp3.Body.Close()
	var listResp map[string]interface{}
	require.NoError(t, json.NewDecoder(resp3.Body).Decode(&listResp))
	items := listResp["data"].([]interface{})
	require.Len(t, items, 1)
	keyID := items[0].(map[string]interface{})["id"].(string)

	// Revoke it
	req4, _ := http.NewRequest(http.MethodDelete, app.server.URL+"/api/v1/keys/"+keyID, nil)
	req4.Header.Set("Authorization", "Bearer "+token)
	resp4, err := http.DefaultClient.Do(req4)
	require.NoError(t, err)
	resp4.Body.Close()
	assert.Equal(t, http.StatusOK, resp4.StatusCode)

	// Revoked key no longer works
	req5, _ := http.NewRequest(http.MethodGet, app.server.URL+"/api/v1/wallet/balance", nil)
	req5.Header.Set("X-API-Key", plainKey)
	resp5, err := http.DefaultClient.Do(req5)
	require.NoError(t, err)
	resp5.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp5.StatusCode)
}

// --- Helpers ---

// registerAndLogin creates an account and returns its token and wallet number.
func registerAndLogin(t *testing.T, app *testApp, email string) (token, walletNumber string) {
	t.Helper()
	regBody, _ := json.Marshal(map[string]string{
		"email":    email,
		"password": "StrongPass123!",
	})
	resp, err := http.Post(app.server.URL+"/api/v1/auth/register", "application/json", bytes.NewReader(regBody))
	require.NoError(t, err)
	bodyBytes, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode, "register response: %s", string(bodyBytes))

	var regResp map[string]interface{}
	require.NoError(t, json.Unmarshal(bodyBytes, &regResp))
	walletNumber = regResp["data"].(map[string]interface{})["wallet_number"].(string)

	loginBody, _ := json.Marshal(map[string]string{
		"email":    email,
		"password": "StrongPass123!",
	})
	resp2, err := http.Post(app.server.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(loginBody))
	require.NoError(t, err)
	defer resp2.Body.Close()

	var loginResp map[string]interface{}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&loginResp))
	token = loginResp["data"].(map[string]interface{})["token"].(string)
	return token, walletNumber
}

// postJSON posts an authenticated JSON body and returns the data object.
func postJSON(t *testing.T, app *testApp, token, path string, payload interface{}, wantStatus int) map[string]interface{} {
	t.Helper()
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, app.server.URL+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	require.Equal(t, wantStatus, resp.StatusCode, "POST %s response: %s", path, string(bodyBytes))

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(bodyBytes, &parsed))
	data, _ := parsed["data"].(map[string]interface{})
	return data
}

// getJSON performs an authenticated GET and returns the data object.
func getJSON(t *testing.T, app *testApp, token, path string) map[string]interface{} {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, app.server.URL+path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode, "GET %s response: %s", path, string(bodyBytes))

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(bodyBytes, &parsed))
	return parsed["data"].(map[string]interface{})
}

// deliverWebhook signs and posts a provider event for a reference.
func deliverWebhook(t *testing.T, app *testApp, reference, event string, amountMinor int64) {
	t.Helper()
	payload, _ := json.Marshal(map[string]interface{}{
		"event": event,
		"data": map[string]interface{}{
			"reference": reference,
			"amount":    amountMinor,
			"status":    statusForEvent(event),
		},
	})

	req, _ := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/webhooks/paystack", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-paystack-signature", app.gateway.sign(payload))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	bodyBytes, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "webhook response: %s", string(bodyBytes))
}

func statusForEvent(event string) string {
	if event == "charge.failed" {
		return "failed"
	}
	return "success"
}

// ageDeposit rewrites a deposit's creation time, simulating time passing.
func ageDeposit(t *testing.T, app *testApp, reference string, offset time.Duration) {
	t.Helper()
	app.txRepo.mu.Lock()
	defer app.txRepo.mu.Unlock()
	for _, txn := range app.txRepo.transactions {
		if txn.Reference == reference {
			txn.CreatedAt = txn.CreatedAt.Add(offset)
			return
		}
	}
	t.Fatalf("deposit %s not found", reference)
}

func sweeperConfig() config.SweeperConfig {
	return config.SweeperConfig{
		Schedule:  "*/10 * * * *",
		Cutoff:    30 * time.Minute,
		BatchSize: 100,
	}
}
