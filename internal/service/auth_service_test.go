package service

import (
	"context"
	"testing"
	"time"

	"github.com/mhkaycey/wallet-service/internal/core/domain"
	"github.com/mhkaycey/wallet-service/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type authTestDeps struct {
	svc        *AuthServiceImpl
	userRepo   *mocks.MockUserRepository
	walletRepo *mocks.MockWalletRepository
	hashSvc    *mocks.MockHashService
	tokenSvc   *mocks.MockTokenService
	transactor *mocks.MockDBTransactor
	ctrl       *gomock.Controller
}

func setupAuthService(t *testing.T) *authTestDeps {
	ctrl := gomock.NewController(t)
	d := &authTestDeps{
		userRepo:   mocks.NewMockUserRepository(ctrl),
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		hashSvc:    mocks.NewMockHashService(ctrl),
		tokenSvc:   mocks.NewMockTokenService(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewAuthService(
		d.userRepo, d.walletRepo, d.hashSvc, d.tokenSvc,
		d.transactor, zerolog.Nop(),
	)
	return d
}

func TestAuthService_Register_Success(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.userRepo.EXPECT().GetByEmail(ctx, "alice@example.com").Return(nil, nil)
	d.hashSvc.EXPECT().Hash("s3cret-pass").Return("$argon2id$hash", nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.userRepo.EXPECT().Create(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, user *domain.User) error {
			assert.Equal(t, "alice@example.com", user.Email)
			assert.Equal(t, "$argon2id$hash", user.PasswordHash)
			return nil
		})
	d.walletRepo.EXPECT().Create(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, wallet *domain.Wallet) error {
			assert.True(t, wallet.Balance.IsZero(), "new wallet must start at zero")
			assert.Len(t, wallet.WalletNumber, 10)
			return nil
		})

	result, err := d.svc.Register(ctx, "alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, result.UserID)
	assert.Len(t, result.WalletNumber, 10)
}

func TestAuthService_Register_NormalizesEmail(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.userRepo.EXPECT().GetByEmail(ctx, "bob@example.com").Return(nil, nil)
	d.hashSvc.EXPECT().Hash(gomock.Any()).Return("h", nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.userRepo.EXPECT().Create(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, user *domain.User) error {
			assert.Equal(t, "bob@example.com", user.Email)
			return nil
		})
	d.walletRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	_, err := d.svc.Register(ctx, "  Bob@Example.COM ", "pass")
	require.NoError(t, err)
}

func TestAuthService_Register_EmailExists(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.userRepo.EXPECT().GetByEmail(ctx, "taken@example.com").Return(&domain.User{ID: uuid.New()}, nil)

	_, err := d.svc.Register(ctx, "taken@example.com", "pass")
	assertAppError(t, err, "SEC_006")
}

func TestAuthService_Register_ConcurrentEmailRace(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	// The pre-check misses a registration committing between the read and
	// the insert. The email unique index fires instead; that must surface
	// as SEC_006, not burn wallet-number retries.
	d.userRepo.EXPECT().GetByEmail(ctx, "raced@example.com").Return(nil, nil)
	d.hashSvc.EXPECT().Hash("pass").Return("$argon2id$hash", nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.userRepo.EXPECT().Create(ctx, tx, gomock.Any()).
		Return(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := d.svc.Register(ctx, "raced@example.com", "pass")
	assertAppError(t, err, "SEC_006")
}

func TestAuthService_Register_WalletNumberCollisionRetries(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.userRepo.EXPECT().GetByEmail(ctx, "lucky@example.com").Return(nil, nil)
	d.hashSvc.EXPECT().Hash("pass").Return("$argon2id$hash", nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil).Times(2)
	d.userRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil).Times(2)
	first := d.walletRepo.EXPECT().Create(ctx, tx, gomock.Any()).
		Return(&pgconn.PgError{Code: "23505", ConstraintName: "wallets_wallet_number_key"})
	d.walletRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil).After(first)

	result, err := d.svc.Register(ctx, "lucky@example.com", "pass")
	require.NoError(t, err)
	assert.Len(t, result.WalletNumber, 10)
}

func TestAuthService_Login_Success(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	expiresAt := time.Now().Add(24 * time.Hour)

	d.userRepo.EXPECT().GetByEmail(ctx, "alice@example.com").Return(&domain.User{
		ID:           userID,
		Email:        "alice@example.com",
		PasswordHash: "$argon2id$hash",
	}, nil)
	d.hashSvc.EXPECT().Verify("s3cret-pass", "$argon2id$hash").Return(true, nil)
	d.tokenSvc.EXPECT().Generate(userID, "alice@example.com").Return("jwt-token", expiresAt, nil)

	token, exp, err := d.svc.Login(ctx, "alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)
	assert.Equal(t, expiresAt, exp)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.userRepo.EXPECT().GetByEmail(ctx, "ghost@example.com").Return(nil, nil)

	_, _, err := d.svc.Login(ctx, "ghost@example.com", "whatever")
	assertAppError(t, err, "SEC_002")
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.userRepo.EXPECT().GetByEmail(ctx, "alice@example.com").Return(&domain.User{
		ID:           uuid.New(),
		PasswordHash: "$argon2id$hash",
	}, nil)
	d.hashSvc.EXPECT().Verify("wrong", "$argon2id$hash").Return(false, nil)

	_, _, err := d.svc.Login(ctx, "alice@example.com", "wrong")
	assertAppError(t, err, "SEC_002")
}

func TestGenerateWalletNumber(t *testing.T) {
	for i := 0; i < 50; i++ {
		n, err := generateWalletNumber()
		require.NoError(t, err)
		assert.Regexp(t, `^[1-9][0-9]{9}$`, n)
	}
}
