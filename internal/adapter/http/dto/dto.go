package dto

// RegisterRequest is the request body for account registration.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	UserID       string `json:"user_id"`
	WalletNumber string `json:"wallet_number"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// DepositRequest is the request body for initiating a deposit.
// Amount is a decimal string in major units, e.g. "150.00".
type DepositRequest struct {
	Amount string `json:"amount" binding:"required,money"`
}

// DepositResponse is the response body for a deposit initiation.
type DepositResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
}

// TransferRequest is the request body for a wallet-to-wallet transfer.
type TransferRequest struct {
	WalletNumber string `json:"wallet_number" binding:"required,wallet_number"`
	Amount       string `json:"amount" binding:"required,money"`
}

// TransactionResponse is the response body for transaction results.
type TransactionResponse struct {
	ID               string  `json:"id"`
	Reference        string  `json:"reference"`
	Type             string  `json:"type"`
	Amount           string  `json:"amount"`
	Status           string  `json:"status"`
	SenderWalletID   *string `json:"sender_wallet_id,omitempty"`
	ReceiverWalletID *string `json:"receiver_wallet_id,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	Balance string `json:"balance"`
}

// TransactionListResponse wraps a transaction history listing.
type TransactionListResponse struct {
	Items []TransactionResponse `json:"items"`
	Count int                   `json:"count"`
}

// CreateAPIKeyRequest is the request body for API key creation.
type CreateAPIKeyRequest struct {
	Name        string   `json:"name" binding:"required,min=1,max=100"`
	Permissions []string `json:"permissions" binding:"required,min=1"`
	Expiry      string   `json:"expiry" binding:"required"`
}

// RolloverAPIKeyRequest is the request body for rolling an expired key.
type RolloverAPIKeyRequest struct {
	Expiry string `json:"expiry" binding:"required"`
}

// APIKeyCreatedResponse carries the plaintext key. It is returned exactly
// once, at creation or rollover.
type APIKeyCreatedResponse struct {
	Key       string `json:"key"`
	ExpiresAt string `json:"expires_at"`
}

// APIKeyResponse describes a key without its secret.
type APIKeyResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	ExpiresAt   string   `json:"expires_at"`
	Revoked     bool     `json:"revoked"`
	CreatedAt   string   `json:"created_at"`
}
