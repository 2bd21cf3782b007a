package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/mhkaycey/wallet-service/internal/core/domain"
	"github.com/mhkaycey/wallet-service/internal/core/ports"
	"github.com/mhkaycey/wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	walletNumberDigits   = 10
	walletNumberAttempts = 5

	emailUniqueConstraint = "users_email_key"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	userRepo   ports.UserRepository
	walletRepo ports.WalletRepository
	hashSvc    ports.HashService
	tokenSvc   ports.TokenService
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo:   userRepo,
		walletRepo: walletRepo,
		hashSvc:    hashSvc,
		tokenSvc:   tokenSvc,
		transactor: transactor,
		log:        log,
	}
}

// Register creates a user and its wallet in one atomic unit. A user without
// a wallet must never exist.
func (s *AuthServiceImpl) Register(ctx context.Context, email, password string) (*ports.RegisterResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check email: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrEmailExists()
	}

	passwordHash, err := s.hashSvc.Hash(password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Wallet numbers are random; retry on the rare collision.
	var result *ports.RegisterResult
	for attempt := 0; attempt < walletNumberAttempts; attempt++ {
		walletNumber, err := generateWalletNumber()
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("generate wallet number: %w", err))
		}

		result, err = s.createUserWithWallet(ctx, user, walletNumber)
		if err == nil {
			break
		}
		if isUniqueViolation(err) {
			// A racing registration of the same email also lands here;
			// retrying a wallet number will not fix that.
			if violatedConstraint(err) == emailUniqueConstraint {
				return nil, apperror.ErrEmailExists()
			}
			s.log.Debug().Str("wallet_number", walletNumber).Msg("wallet number collision, retrying")
			continue
		}
		return nil, apperror.InternalError(fmt.Errorf("create account: %w", err))
	}
	if result == nil {
		return nil, apperror.InternalError(fmt.Errorf("exhausted wallet number attempts"))
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("wallet_number", result.WalletNumber).
		Msg("user registered")

	return result, nil
}

func (s *AuthServiceImpl) createUserWithWallet(ctx context.Context, user *domain.User, walletNumber string) (*ports.RegisterResult, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.userRepo.Create(ctx, dbTx, user); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	wallet := &domain.Wallet{
		ID:           uuid.New(),
		UserID:       user.ID,
		WalletNumber: walletNumber,
		Balance:      decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.walletRepo.Create(ctx, dbTx, wallet); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &ports.RegisterResult{
		UserID:       user.ID,
		WalletNumber: walletNumber,
	}, nil
}

// Login authenticates a user and issues a JWT.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("get user: %w", err))
	}
	if user == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	match, err := s.hashSvc.Verify(password, user.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !match {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiresAt, err := s.tokenSvc.Generate(user.ID, user.Email)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return token, expiresAt, nil
}

// generateWalletNumber returns a random 10-digit account number.
func generateWalletNumber() (string, error) {
	var sb strings.Builder
	for i := 0; i < walletNumberDigits; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		// Leading digit must be non-zero to keep the number 10 digits long.
		if i == 0 && n.Int64() == 0 {
			n = big.NewInt(1)
		}
		fmt.Fprintf(&sb, "%d", n.Int64())
	}
	return sb.String(), nil
}
