package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/mhkaycey/wallet-service/internal/core/domain"
	"github.com/mhkaycey/wallet-service/internal/core/ports"
	"github.com/mhkaycey/wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	apiKeyPrefix    = "sk_live_"
	maxActiveKeys   = 5
	apiKeyRandBytes = 16
)

// expiryDurations maps the accepted expiry codes to durations.
var expiryDurations = map[string]time.Duration{
	"1H": time.Hour,
	"1D": 24 * time.Hour,
	"1M": 30 * 24 * time.Hour,
	"1Y": 365 * 24 * time.Hour,
}

// APIKeyServiceImpl implements ports.APIKeyService.
type APIKeyServiceImpl struct {
	keyRepo ports.APIKeyRepository
	log     zerolog.Logger
}

// NewAPIKeyService creates a new APIKeyServiceImpl.
func NewAPIKeyService(keyRepo ports.APIKeyRepository, log zerolog.Logger) *APIKeyServiceImpl {
	return &APIKeyServiceImpl{
		keyRepo: keyRepo,
		log:     log,
	}
}

// Create issues a new API key. The plaintext key is returned once and
// never shown again.
func (s *APIKeyServiceImpl) Create(ctx context.Context, userID uuid.UUID, name string, permissions []domain.Permission, expiry string) (*ports.APIKeyResult, error) {
	if name == "" {
		return nil, apperror.Validation("key name is required")
	}
	if err := validatePermissions(permissions); err != nil {
		return nil, err
	}
	duration, ok := expiryDurations[expiry]
	if !ok {
		return nil, apperror.ErrInvalidExpiry()
	}

	now := time.Now().UTC()
	active, err := s.keyRepo.CountActive(ctx, userID, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("count active keys: %w", err))
	}
	if active >= maxActiveKeys {
		return nil, apperror.ErrKeyLimitReached()
	}

	keyString, err := generateAPIKey(userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate key: %w", err))
	}

	apiKey := &domain.APIKey{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        name,
		Key:         keyString,
		Permissions: permissions,
		ExpiresAt:   now.Add(duration),
		Revoked:     false,
		CreatedAt:   now,
	}
	if err := s.keyRepo.Create(ctx, apiKey); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create key: %w", err))
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("key_id", apiKey.ID.String()).
		Str("name", name).
		Msg("api key created")

	return &ports.APIKeyResult{
		Key:       keyString,
		ExpiresAt: apiKey.ExpiresAt,
	}, nil
}

// Rollover replaces an expired key with a fresh one carrying the same name
// and permissions. Only expired, unrevoked keys can be rolled over.
func (s *APIKeyServiceImpl) Rollover(ctx context.Context, userID uuid.UUID, expiredKeyID uuid.UUID, expiry string) (*ports.APIKeyResult, error) {
	duration, ok := expiryDurations[expiry]
	if !ok {
		return nil, apperror.ErrInvalidExpiry()
	}

	old, err := s.keyRepo.GetByID(ctx, expiredKeyID, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get key: %w", err))
	}
	if old == nil || old.Revoked {
		return nil, apperror.ErrNotFound("api key")
	}

	now := time.Now().UTC()
	if !old.IsExpired(now) {
		return nil, apperror.ErrKeyNotExpired()
	}

	keyString, err := generateAPIKey(userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate key: %w", err))
	}

	fresh := &domain.APIKey{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        old.Name,
		Key:         keyString,
		Permissions: old.Permissions,
		ExpiresAt:   now.Add(duration),
		Revoked:     false,
		CreatedAt:   now,
	}
	if err := s.keyRepo.Create(ctx, fresh); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create key: %w", err))
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("old_key_id", expiredKeyID.String()).
		Str("new_key_id", fresh.ID.String()).
		Msg("api key rolled over")

	return &ports.APIKeyResult{
		Key:       keyString,
		ExpiresAt: fresh.ExpiresAt,
	}, nil
}

// Revoke flags a key as revoked. Revocation is permanent.
func (s *APIKeyServiceImpl) Revoke(ctx context.Context, userID uuid.UUID, keyID uuid.UUID) error {
	existing, err := s.keyRepo.GetByID(ctx, keyID, userID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get key: %w", err))
	}
	if existing == nil {
		return apperror.ErrNotFound("api key")
	}

	if err := s.keyRepo.Revoke(ctx, keyID, userID); err != nil {
		return apperror.InternalError(fmt.Errorf("revoke key: %w", err))
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("key_id", keyID.String()).
		Msg("api key revoked")

	return nil
}

// List returns all of a user's keys, including revoked and expired ones.
func (s *APIKeyServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error) {
	keys, err := s.keyRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list keys: %w", err))
	}
	return keys, nil
}

// Resolve authenticates a key string and checks the required permission.
// An unknown, revoked, or expired key is indistinguishable to the caller.
func (s *APIKeyServiceImpl) Resolve(ctx context.Context, key string, required domain.Permission) (*ports.ResolvedActor, error) {
	apiKey, err := s.keyRepo.GetByKey(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get key: %w", err))
	}
	if apiKey == nil || !apiKey.IsUsable(time.Now().UTC()) {
		return nil, apperror.ErrInvalidAPIKey()
	}

	if !apiKey.HasPermission(required) {
		return nil, apperror.ErrPermissionDenied(string(required))
	}

	return &ports.ResolvedActor{
		UserID:      apiKey.UserID,
		Permissions: apiKey.Permissions,
	}, nil
}

func validatePermissions(permissions []domain.Permission) error {
	if len(permissions) == 0 {
		return apperror.Validation("at least one permission is required")
	}
	for _, p := range permissions {
		switch p {
		case domain.PermissionDeposit, domain.PermissionTransfer, domain.PermissionRead:
		default:
			return apperror.Validation(fmt.Sprintf("unknown permission: %s", p))
		}
	}
	return nil
}

// generateAPIKey derives an opaque key from the owner and fresh randomness.
func generateAPIKey(userID uuid.UUID) (string, error) {
	buf := make([]byte, apiKeyRandBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(userID.String() + ":" + hex.EncodeToString(buf)))
	return apiKeyPrefix + hex.EncodeToString(sum[:]), nil
}
