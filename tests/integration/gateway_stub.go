package integration

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"sync"

	"github.com/mhkaycey/wallet-service/internal/core/ports"

	"github.com/shopspring/decimal"
)

// stubGateway is an in-process payment gateway. It accepts every
// initialization, remembers charge outcomes set by the test, and verifies
// webhook signatures with the same HMAC-SHA512 scheme the real provider
// uses, so tests can sign payloads like the provider would.
type stubGateway struct {
	mu      sync.RWMutex
	secret  string
	charges map[string]*ports.ChargeVerification
}

func newStubGateway(secret string) *stubGateway {
	return &stubGateway{
		secret:  secret,
		charges: make(map[string]*ports.ChargeVerification),
	}
}

func (g *stubGateway) InitializeTransaction(ctx context.Context, email string, amount decimal.Decimal, reference string) (*ports.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges[reference] = &ports.ChargeVerification{
		Reference:   reference,
		Status:      "pending",
		AmountMinor: amount.Shift(2).IntPart(),
	}
	return &ports.CheckoutSession{
		Reference:        reference,
		AuthorizationURL: "https://checkout.test/" + reference,
	}, nil
}

func (g *stubGateway) VerifyTransaction(ctx context.Context, reference string) (*ports.ChargeVerification, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if charge, ok := g.charges[reference]; ok {
		cp := *charge
		return &cp, nil
	}
	return &ports.ChargeVerification{Reference: reference, Status: "abandoned"}, nil
}

func (g *stubGateway) VerifySignature(rawBody []byte, signatureHeader string) bool {
	if signatureHeader == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(g.secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}

// settleCharge marks a charge's outcome at the provider side.
func (g *stubGateway) settleCharge(reference, status string, amountMinor int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges[reference] = &ports.ChargeVerification{
		Reference:   reference,
		Status:      status,
		AmountMinor: amountMinor,
	}
}

// sign produces the webhook signature header for a payload.
func (g *stubGateway) sign(rawBody []byte) string {
	mac := hmac.New(sha512.New, []byte(g.secret))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}
