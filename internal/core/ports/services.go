package ports

import (
	"context"
	"time"

	"github.com/mhkaycey/wallet-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, email string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Email  string
}

// PaymentGateway is the narrow adapter over the external payment provider.
type PaymentGateway interface {
	// InitializeTransaction opens an external charge and returns the checkout
	// handle for the caller to redirect to.
	InitializeTransaction(ctx context.Context, email string, amount decimal.Decimal, reference string) (*CheckoutSession, error)
	// VerifyTransaction queries the provider for the authoritative state of a charge.
	VerifyTransaction(ctx context.Context, reference string) (*ChargeVerification, error)
	// VerifySignature checks the webhook signature over the exact raw request bytes.
	VerifySignature(rawBody []byte, signatureHeader string) bool
}

// CheckoutSession is the provider-issued checkout handle, returned untouched.
type CheckoutSession struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
}

// ChargeVerification is the provider's answer to an explicit charge lookup.
// AmountMinor is in the provider's minor-unit representation.
type ChargeVerification struct {
	Reference   string
	Status      string
	AmountMinor int64
}

// SettledCache is the Redis fast path for webhook idempotency. The
// transaction row's status is authoritative; this only short-circuits
// repeat deliveries without a database round trip.
type SettledCache interface {
	IsSettled(ctx context.Context, reference string) (bool, error)
	MarkSettled(ctx context.Context, reference string, ttl time.Duration) error
}

// EventPublisher emits settlement events for downstream consumers.
// Publishing is best-effort and never part of the ledger's atomic unit.
type EventPublisher interface {
	PublishTransactionSettled(ctx context.Context, event TransactionSettledEvent) error
}

// TransactionSettledEvent is the payload published when a transaction
// reaches a terminal state.
type TransactionSettledEvent struct {
	Reference        string          `json:"reference"`
	Type             string          `json:"type"`
	Status           string          `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	SenderWalletID   *uuid.UUID      `json:"sender_wallet_id,omitempty"`
	ReceiverWalletID *uuid.UUID      `json:"receiver_wallet_id,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
}

// --- Service Ports (Business Logic) ---

// WalletService defines the ledger's user-facing operations.
type WalletService interface {
	InitiateDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*DepositIntent, error)
	Transfer(ctx context.Context, userID uuid.UUID, walletNumber string, amount decimal.Decimal) (*domain.Transaction, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	GetTransactions(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error)
	GetDepositStatus(ctx context.Context, reference string) (*domain.Transaction, error)
}

// DepositIntent is the result of initiating a deposit.
type DepositIntent struct {
	Reference        string
	AuthorizationURL string
}

// WebhookService reconciles gateway notifications with the ledger.
type WebhookService interface {
	// HandleNotification verifies and applies a raw gateway event with
	// exactly-once financial effect.
	HandleNotification(ctx context.Context, rawBody []byte, signature string) (*WebhookAck, error)
	// SettleDeposit applies a verified charge outcome to a pending deposit.
	// Idempotent; shared by the webhook path and the sweeper.
	SettleDeposit(ctx context.Context, reference string, success bool, amountMinor int64) (*WebhookAck, error)
}

// WebhookAck is the acknowledgement returned to the webhook sender. A
// duplicate delivery is indistinguishable from a fresh success except for
// the AlreadyProcessed flag, which is internal.
type WebhookAck struct {
	AlreadyProcessed bool
}

// AuthService defines account registration and login.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*RegisterResult, error)
	Login(ctx context.Context, email, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterResult holds the registration outcome.
type RegisterResult struct {
	UserID       uuid.UUID
	WalletNumber string
}

// APIKeyService owns the API key lifecycle and resolves credentials into
// an actor identity and permission set. The ledger consumes only the
// resolved result and performs no permission logic itself.
type APIKeyService interface {
	Create(ctx context.Context, userID uuid.UUID, name string, permissions []domain.Permission, expiry string) (*APIKeyResult, error)
	Rollover(ctx context.Context, userID uuid.UUID, expiredKeyID uuid.UUID, expiry string) (*APIKeyResult, error)
	Revoke(ctx context.Context, userID uuid.UUID, keyID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error)
	Resolve(ctx context.Context, key string, required domain.Permission) (*ResolvedActor, error)
}

// APIKeyResult holds the plaintext key, shown only at creation.
type APIKeyResult struct {
	Key       string
	ExpiresAt time.Time
}

// ResolvedActor is the authenticated identity handed to ledger calls.
type ResolvedActor struct {
	UserID      uuid.UUID
	Permissions []domain.Permission
}
