package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mhkaycey/wallet-service/internal/core/domain"
	"github.com/mhkaycey/wallet-service/internal/core/ports"
	"github.com/mhkaycey/wallet-service/pkg/apperror"

	"github.com/rs/zerolog"
)

const settledCacheTTL = 24 * time.Hour

// Gateway event types this service reacts to. Everything else is
// acknowledged and ignored.
const (
	EventChargeSuccess = "charge.success"
	EventChargeFailed  = "charge.failed"
)

// gatewayNotification is the envelope the gateway posts to the webhook endpoint.
type gatewayNotification struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"` // minor units
		Status    string `json:"status"`
	} `json:"data"`
}

// WebhookServiceImpl implements ports.WebhookService.
type WebhookServiceImpl struct {
	txRepo       ports.TransactionRepository
	walletRepo   ports.WalletRepository
	gateway      ports.PaymentGateway
	settledCache ports.SettledCache
	publisher    ports.EventPublisher
	transactor   ports.DBTransactor
	log          zerolog.Logger
}

// NewWebhookService creates a new WebhookServiceImpl.
func NewWebhookService(
	txRepo ports.TransactionRepository,
	walletRepo ports.WalletRepository,
	gateway ports.PaymentGateway,
	settledCache ports.SettledCache,
	publisher ports.EventPublisher,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *WebhookServiceImpl {
	return &WebhookServiceImpl{
		txRepo:       txRepo,
		walletRepo:   walletRepo,
		gateway:      gateway,
		settledCache: settledCache,
		publisher:    publisher,
		transactor:   transactor,
		log:          log,
	}
}

// HandleNotification verifies and applies a raw gateway event. The
// signature is checked over the exact raw bytes before any parsing.
func (s *WebhookServiceImpl) HandleNotification(ctx context.Context, rawBody []byte, signature string) (*ports.WebhookAck, error) {
	if !s.gateway.VerifySignature(rawBody, signature) {
		return nil, apperror.ErrInvalidSignature()
	}

	var event gatewayNotification
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, apperror.Validation("malformed webhook payload")
	}

	switch event.Event {
	case EventChargeSuccess:
		return s.SettleDeposit(ctx, event.Data.Reference, true, event.Data.Amount)
	case EventChargeFailed:
		return s.SettleDeposit(ctx, event.Data.Reference, false, event.Data.Amount)
	default:
		s.log.Debug().Str("event", event.Event).Msg("unhandled webhook event type")
		return &ports.WebhookAck{}, nil
	}
}

// SettleDeposit applies a verified charge outcome to a pending deposit.
// Idempotent: repeat deliveries for a settled reference have no financial
// effect. Shared by the webhook path and the pending-deposit sweeper.
func (s *WebhookServiceImpl) SettleDeposit(ctx context.Context, reference string, success bool, amountMinor int64) (*ports.WebhookAck, error) {
	// Fast path: recently settled references short-circuit in Redis.
	settled, err := s.settledCache.IsSettled(ctx, reference)
	if err != nil {
		s.log.Warn().Err(err).Str("reference", reference).Msg("settled cache check failed, falling through to DB")
	}
	if settled {
		return &ports.WebhookAck{AlreadyProcessed: true}, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Row lock on the transaction serializes concurrent deliveries of the
	// same reference.
	txn, err := s.txRepo.GetByReferenceForUpdate(ctx, dbTx, reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction")
	}

	if txn.IsTerminal() {
		// Whoever settled it first already moved the money.
		s.markSettled(ctx, reference)
		return &ports.WebhookAck{AlreadyProcessed: true}, nil
	}

	if !success {
		if err := s.txRepo.UpdateStatus(ctx, dbTx, txn.ID, domain.TransactionStatusFailed); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("mark failed: %w", err))
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}
		txn.Status = domain.TransactionStatusFailed
		s.markSettled(ctx, reference)
		s.publishSettled(ctx, txn)
		s.log.Info().Str("reference", reference).Msg("deposit marked failed")
		return &ports.WebhookAck{}, nil
	}

	// A success event must carry a positive amount. Anything else would
	// debit the wallet, so the row stays PENDING for the sweeper to
	// re-verify directly against the gateway.
	if amountMinor <= 0 {
		s.log.Error().
			Str("reference", reference).
			Int64("amount_minor", amountMinor).
			Msg("success event with non-positive amount rejected")
		return nil, apperror.ErrInvalidAmount()
	}

	// The gateway's verified amount is authoritative for the credit.
	amount := domain.FromMinorUnits(amountMinor)
	if !amount.Equal(txn.Amount) {
		s.log.Warn().
			Str("reference", reference).
			Str("recorded", txn.Amount.String()).
			Str("verified", amount.String()).
			Msg("gateway amount differs from recorded deposit, crediting verified amount")
	}

	if txn.ReceiverWalletID == nil {
		return nil, apperror.InternalError(fmt.Errorf("deposit %s has no receiver wallet", reference))
	}

	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, *txn.ReceiverWalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, wallet.Balance.Add(amount)); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit wallet: %w", err))
	}
	if err := s.txRepo.UpdateStatus(ctx, dbTx, txn.ID, domain.TransactionStatusSuccess); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark success: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	txn.Status = domain.TransactionStatusSuccess
	txn.Amount = amount
	s.markSettled(ctx, reference)
	s.publishSettled(ctx, txn)

	s.log.Info().
		Str("reference", reference).
		Str("wallet_id", wallet.ID.String()).
		Str("amount", amount.String()).
		Msg("deposit settled")

	return &ports.WebhookAck{}, nil
}

// markSettled is best-effort; a cache failure only costs a DB round trip
// on the next duplicate delivery.
func (s *WebhookServiceImpl) markSettled(ctx context.Context, reference string) {
	if err := s.settledCache.MarkSettled(ctx, reference, settledCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("reference", reference).Msg("settled cache write failed")
	}
}

func (s *WebhookServiceImpl) publishSettled(ctx context.Context, txn *domain.Transaction) {
	event := ports.TransactionSettledEvent{
		Reference:        txn.Reference,
		Type:             string(txn.Type),
		Status:           string(txn.Status),
		Amount:           txn.Amount,
		SenderWalletID:   txn.SenderWalletID,
		ReceiverWalletID: txn.ReceiverWalletID,
		OccurredAt:       time.Now().UTC(),
	}
	if err := s.publisher.PublishTransactionSettled(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("reference", txn.Reference).Msg("settled event publish failed")
	}
}
