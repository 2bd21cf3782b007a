package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/mhkaycey/wallet-service/internal/core/domain"
	"github.com/mhkaycey/wallet-service/internal/core/ports"
	"github.com/mhkaycey/wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const uniqueViolationCode = "23505"

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	userRepo   ports.UserRepository
	gateway    ports.PaymentGateway
	publisher  ports.EventPublisher
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	userRepo ports.UserRepository,
	gateway ports.PaymentGateway,
	publisher ports.EventPublisher,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		userRepo:   userRepo,
		gateway:    gateway,
		publisher:  publisher,
		transactor: transactor,
		log:        log,
	}
}

// InitiateDeposit records a PENDING deposit and opens a checkout session with
// the gateway. The row is committed before the gateway call so a failed call
// leaves an orphaned pending record for the sweeper rather than losing the
// deposit intent. No balance changes until the gateway confirms the charge.
func (s *WalletServiceImpl) InitiateDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*ports.DepositIntent, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("user")
	}

	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	reference := newReference()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn := &domain.Transaction{
		ID:               uuid.New(),
		Reference:        reference,
		Type:             domain.TransactionTypeDeposit,
		Amount:           amount,
		Status:           domain.TransactionStatusPending,
		ReceiverWalletID: &wallet.ID,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.ErrDuplicateReference()
		}
		return nil, apperror.InternalError(fmt.Errorf("create deposit: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	session, err := s.gateway.InitializeTransaction(ctx, user.Email, amount, reference)
	if err != nil {
		s.log.Warn().Err(err).Str("reference", reference).Msg("gateway init failed, pending deposit kept for sweeper")
		return nil, apperror.ErrGateway(err)
	}

	s.log.Info().
		Str("reference", reference).
		Str("wallet_id", wallet.ID.String()).
		Str("amount", amount.String()).
		Msg("deposit initiated")

	return &ports.DepositIntent{
		Reference:        session.Reference,
		AuthorizationURL: session.AuthorizationURL,
	}, nil
}

// Transfer moves funds between two internal wallets atomically. Both wallet
// rows are locked in deterministic ID order and the sender's balance is
// re-validated under the lock.
func (s *WalletServiceImpl) Transfer(ctx context.Context, userID uuid.UUID, walletNumber string, amount decimal.Decimal) (*domain.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	sender, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get sender wallet: %w", err))
	}
	if sender == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	receiver, err := s.walletRepo.GetByWalletNumber(ctx, walletNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get receiver wallet: %w", err))
	}
	if receiver == nil {
		return nil, apperror.ErrNotFound("recipient wallet")
	}

	if sender.ID == receiver.ID {
		return nil, apperror.ErrSelfTransfer()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock both rows in ID order to avoid deadlocks between concurrent
	// opposing transfers.
	lockedSender, lockedReceiver, err := s.lockPair(ctx, dbTx, sender.ID, receiver.ID)
	if err != nil {
		return nil, err
	}

	// Re-validate under the lock: the pre-lock read may be stale.
	if !lockedSender.CanDebit(amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	newSenderBalance := lockedSender.Balance.Sub(amount)
	newReceiverBalance := lockedReceiver.Balance.Add(amount)

	if err := s.walletRepo.UpdateBalance(ctx, dbTx, lockedSender.ID, newSenderBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("debit sender: %w", err))
	}
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, lockedReceiver.ID, newReceiverBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit receiver: %w", err))
	}

	txn := &domain.Transaction{
		ID:               uuid.New(),
		Reference:        newReference(),
		Type:             domain.TransactionTypeTransfer,
		Amount:           amount,
		Status:           domain.TransactionStatusSuccess,
		SenderWalletID:   &lockedSender.ID,
		ReceiverWalletID: &lockedReceiver.ID,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.ErrDuplicateReference()
		}
		return nil, apperror.InternalError(fmt.Errorf("create transfer: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("reference", txn.Reference).
		Str("sender_wallet_id", lockedSender.ID.String()).
		Str("receiver_wallet_id", lockedReceiver.ID.String()).
		Str("amount", amount.String()).
		Msg("transfer completed")

	s.publishSettled(ctx, txn)

	return txn, nil
}

// GetBalance returns the caller's wallet balance.
func (s *WalletServiceImpl) GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return decimal.Zero, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return decimal.Zero, apperror.ErrNotFound("wallet")
	}
	return wallet.Balance, nil
}

// GetTransactions returns the caller's transaction history, newest first.
func (s *WalletServiceImpl) GetTransactions(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	txns, err := s.txRepo.ListByWallet(ctx, wallet.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, nil
}

// GetDepositStatus looks up a deposit by its reference.
func (s *WalletServiceImpl) GetDepositStatus(ctx context.Context, reference string) (*domain.Transaction, error) {
	txn, err := s.txRepo.GetByReference(ctx, reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	return txn, nil
}

// lockPair acquires FOR UPDATE locks on both wallets in ascending UUID
// order and returns them keyed back to their roles.
func (s *WalletServiceImpl) lockPair(ctx context.Context, dbTx pgx.Tx, senderID, receiverID uuid.UUID) (*domain.Wallet, *domain.Wallet, error) {
	first, second := senderID, receiverID
	if receiverID.String() < senderID.String() {
		first, second = receiverID, senderID
	}

	lockedFirst, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, first)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if lockedFirst == nil {
		return nil, nil, apperror.ErrNotFound("wallet")
	}

	lockedSecond, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, second)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if lockedSecond == nil {
		return nil, nil, apperror.ErrNotFound("wallet")
	}

	if lockedFirst.ID == senderID {
		return lockedFirst, lockedSecond, nil
	}
	return lockedSecond, lockedFirst, nil
}

func (s *WalletServiceImpl) publishSettled(ctx context.Context, txn *domain.Transaction) {
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

// validateAmount enforces a positive amount with at most two decimal places.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.ErrInvalidAmount()
	}
	if !amount.Equal(amount.Round(2)) {
		return apperror.ErrInvalidAmount()
	}
	return nil
}

// newReference generates a globally unique transaction reference. The
// database's unique constraint is the final arbiter.
func newReference() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure is unrecoverable
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	return fmt.Sprintf("ref_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// violatedConstraint names the unique index behind a 23505, or "".
func violatedConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return pgErr.ConstraintName
	}
	return ""
}
