package usecases

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"nexuspay.backend/internal/config"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/domain/repositories"
	"nexuspay.backend/internal/infrastructure/webhook"
	"nexuspay.backend/pkg/crypto"
	"nexuspay.backend/pkg/logger"
	"nexuspay.backend/pkg/utils"
)

const (
	apiKeyPrefix     = "npay"
	apiKeyPartsCount = 6 // minimum: npay _ proj _ <projectPart...> _ <keyId> _ <type> _ <hash>
)

// APIKeyUsecase handles key issuance, rotation and request authentication
type APIKeyUsecase struct {
	keyRepo     repositories.APIKeyRepository
	projectRepo repositories.ProjectRepository
	projects    *ProjectUsecase
	webhooks    *webhook.Dispatcher
	masterKey   []byte
	indexSecret []byte
	production  bool
}

// NewAPIKeyUsecase creates a new API key usecase
func NewAPIKeyUsecase(
	keyRepo repositories.APIKeyRepository,
	projectRepo repositories.ProjectRepository,
	projects *ProjectUsecase,
	webhooks *webhook.Dispatcher,
	security config.SecurityConfig,
	server config.ServerConfig,
) (*APIKeyUsecase, error) {
	masterKey, err := hex.DecodeString(security.APIKeyEncryptionKey)
	if err != nil || len(masterKey) != 32 {
		return nil, fmt.Errorf("api key encryption key must be 32 hex-encoded bytes")
	}
	return &APIKeyUsecase{
		keyRepo:     keyRepo,
		projectRepo: projectRepo,
		projects:    projects,
		webhooks:    webhooks,
		masterKey:   masterKey,
		indexSecret: []byte(security.KeyIndexSecret),
		production:  server.IsProduction(),
	}, nil
}

// Create issues a new key. The plaintext appears only in the response.
func (u *APIKeyUsecase) Create(ctx context.Context, userID, projectID string, input *entities.CreateAPIKeyInput) (*entities.CreateAPIKeyResponse, error) {
	project, err := u.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := u.projects.requireRole(ctx, project, userID, entities.PermKeysCreate); err != nil {
		return nil, err
	}

	switch input.Type {
	case entities.APIKeyTypeDev, entities.APIKeyTypeProduction, entities.APIKeyTypeRestricted:
	default:
		return nil, domainerrors.BadRequest("key type must be dev, production or restricted").WithField("type")
	}
	for _, entry := range input.IPAllowlist {
		if !validAllowlistEntry(entry.IP) {
			return nil, domainerrors.BadRequest(fmt.Sprintf("invalid allowlist entry %q", entry.IP)).
				WithField("ipAllowlist")
		}
	}

	permissions := input.Permissions
	if len(permissions) == 0 {
		permissions = append([]string{}, entities.DefaultKeyPermissions...)
	}

	key, plaintext, err := u.mint(projectID, input.Type)
	if err != nil {
		return nil, err
	}
	key.Name = input.Name
	key.Permissions = permissions
	key.IPAllowlist = input.IPAllowlist
	key.CreatedBy = userID
	if input.ExpiresAt != nil {
		key.ExpiresAt = null.TimeFrom(*input.ExpiresAt)
	}

	if err := u.keyRepo.Create(ctx, key); err != nil {
		return nil, err
	}

	return &entities.CreateAPIKeyResponse{
		ID:          key.ID,
		Name:        key.Name,
		Key:         plaintext,
		KeyPreview:  key.KeyPreview,
		Type:        key.Type,
		Permissions: key.Permissions,
		CreatedAt:   key.CreatedAt,
	}, nil
}

// mint builds the plaintext, ciphertext, index and preview for a fresh key
func (u *APIKeyUsecase) mint(projectID string, keyType entities.APIKeyType) (*entities.APIKey, string, error) {
	keyPart, err := crypto.GenerateRandomToken(4)
	if err != nil {
		return nil, "", err
	}
	hashPart, err := crypto.GenerateRandomToken(16)
	if err != nil {
		return nil, "", err
	}

	plaintext := fmt.Sprintf("%s_proj_%s_%s_%s_%s",
		apiKeyPrefix, strings.TrimPrefix(projectID, utils.PrefixProject+"_"), keyPart, keyType, hashPart)

	encrypted, err := crypto.EncryptWithSubkey(u.masterKey, projectID, plaintext)
	if err != nil {
		return nil, "", err
	}

	return &entities.APIKey{
		ID:           utils.NewID(utils.PrefixAPIKey),
		ProjectID:    projectID,
		EncryptedKey: encrypted,
		KeyIndex:     crypto.HMACSHA256Hex(u.indexSecret, plaintext),
		KeyPreview:   plaintext[:8] + "..." + plaintext[len(plaintext)-4:],
		Type:         keyType,
		Status:       entities.APIKeyStatusActive,
	}, plaintext, nil
}

// List returns a project's keys; any member role can read
func (u *APIKeyUsecase) List(ctx context.Context, userID, projectID string) ([]*entities.APIKey, error) {
	project, err := u.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := u.projects.requireRole(ctx, project, userID, entities.PermProjectRead); err != nil {
		return nil, err
	}
	return u.keyRepo.ListByProject(ctx, projectID)
}

// Rotate issues a replacement and leaves the old key valid for the grace
// period. Both plaintexts authenticate until the window closes.
func (u *APIKeyUsecase) Rotate(ctx context.Context, userID, projectID, keyID string) (*entities.CreateAPIKeyResponse, error) {
	project, err := u.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := u.projects.requireRole(ctx, project, userID, entities.PermKeysCreate); err != nil {
		return nil, err
	}

	old, err := u.keyRepo.GetByID(ctx, projectID, keyID)
	if err != nil {
		return nil, err
	}
	if old.Status != entities.APIKeyStatusActive {
		return nil, domainerrors.Conflict("only active keys can be rotated")
	}

	replacement, plaintext, err := u.mint(projectID, old.Type)
	if err != nil {
		return nil, err
	}
	replacement.Name = old.Name
	replacement.Permissions = old.Permissions
	replacement.IPAllowlist = old.IPAllowlist
	replacement.CreatedBy = userID
	replacement.ExpiresAt = old.ExpiresAt

	if err := u.keyRepo.Create(ctx, replacement); err != nil {
		return nil, err
	}

	old.Status = entities.APIKeyStatusRotated
	old.RotatedAt = null.TimeFrom(time.Now())
	if err := u.keyRepo.Update(ctx, old); err != nil {
		return nil, err
	}

	u.webhooks.Notify(ctx, project, webhook.EventAPIKeyRotated, map[string]interface{}{
		"oldKeyId":   old.ID,
		"newKeyId":   replacement.ID,
		"graceUntil": old.RotatedAt.Time.Add(entities.RotationGracePeriod),
	})

	return &entities.CreateAPIKeyResponse{
		ID:          replacement.ID,
		Name:        replacement.Name,
		Key:         plaintext,
		KeyPreview:  replacement.KeyPreview,
		Type:        replacement.Type,
		Permissions: replacement.Permissions,
		CreatedAt:   replacement.CreatedAt,
	}, nil
}

// Revoke permanently disables a key
func (u *APIKeyUsecase) Revoke(ctx context.Context, userID, projectID, keyID string) error {
	project, err := u.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	if _, err := u.projects.requireRole(ctx, project, userID, entities.PermKeysCreate); err != nil {
		return err
	}
	if _, err := u.keyRepo.GetByID(ctx, projectID, keyID); err != nil {
		return err
	}
	return u.keyRepo.UpdateStatus(ctx, projectID, keyID, entities.APIKeyStatusRevoked)
}

// UpdateIPAllowlist appends and removes allowlist entries
func (u *APIKeyUsecase) UpdateIPAllowlist(ctx context.Context, userID, projectID, keyID string, input *entities.UpdateIPAllowlistInput) (*entities.APIKey, error) {
	project, err := u.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := u.projects.requireRole(ctx, project, userID, entities.PermKeysCreate); err != nil {
		return nil, err
	}

	key, err := u.keyRepo.GetByID(ctx, projectID, keyID)
	if err != nil {
		return nil, err
	}

	remove := make(map[string]struct{}, len(input.Remove))
	for _, ip := range input.Remove {
		remove[ip] = struct{}{}
	}
	kept := key.IPAllowlist[:0]
	for _, entry := range key.IPAllowlist {
		if _, drop := remove[entry.IP]; !drop {
			kept = append(kept, entry)
		}
	}
	for _, entry := range input.Add {
		if !validAllowlistEntry(entry.IP) {
			return nil, domainerrors.BadRequest(fmt.Sprintf("invalid allowlist entry %q", entry.IP)).
				WithField("add")
		}
		if entry.AddedAt.IsZero() {
			entry.AddedAt = time.Now()
		}
		kept = append(kept, entry)
	}
	key.IPAllowlist = kept

	if err := u.keyRepo.Update(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

// ParseKey splits a presented plaintext into its components. The trailing
// keyId, type and hash segments are fixed, so everything between "proj" and
// them belongs to the project id even when it carries underscores.
func ParseKey(plaintext string) (*entities.ParsedAPIKey, error) {
	parts := strings.Split(plaintext, "_")
	if len(parts) < apiKeyPartsCount || parts[0] != apiKeyPrefix || parts[1] != "proj" {
		return nil, domainerrors.Unauthorized(domainerrors.CodeInvalidAPIKeyFormat, "malformed API key")
	}
	keyType := entities.APIKeyType(parts[len(parts)-2])
	switch keyType {
	case entities.APIKeyTypeDev, entities.APIKeyTypeProduction, entities.APIKeyTypeRestricted:
	default:
		return nil, domainerrors.Unauthorized(domainerrors.CodeInvalidAPIKeyFormat, "malformed API key")
	}
	return &entities.ParsedAPIKey{
		ProjectID: utils.PrefixProject + "_" + strings.Join(parts[2:len(parts)-3], "_"),
		KeyID:     parts[len(parts)-3],
		Type:      keyType,
		Hash:      parts[len(parts)-1],
	}, nil
}

// Authenticate resolves and validates a presented key. The HMAC index gives
// O(1) lookup; a miss falls back to a bounded decrypt-and-compare scan of the
// project's active and rotated keys, which covers the rotation grace window.
func (u *APIKeyUsecase) Authenticate(ctx context.Context, plaintext, clientIP string) (*entities.APIKey, error) {
	parsed, err := ParseKey(plaintext)
	if err != nil {
		return nil, err
	}

	key, err := u.keyRepo.GetByKeyIndex(ctx, crypto.HMACSHA256Hex(u.indexSecret, plaintext))
	if errors.Is(err, domainerrors.ErrNotFound) {
		key, err = u.scanForKey(ctx, parsed.ProjectID, plaintext)
	}
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.Unauthorized(domainerrors.CodeInvalidAPIKey, "unknown API key")
		}
		return nil, err
	}

	if key.ProjectID != parsed.ProjectID {
		return nil, domainerrors.Forbidden(domainerrors.CodeProjectMismatch, "key does not belong to this project")
	}
	return u.validate(ctx, key, clientIP)
}

// AuthenticateRequest authenticates a presented key and resolves its project.
// A missing or soft-deleted project rejects with PROJECT_NOT_FOUND. Usage
// accounting on the key row is fire-and-forget.
func (u *APIKeyUsecase) AuthenticateRequest(ctx context.Context, plaintext, clientIP string) (*entities.APIKey, *entities.Project, error) {
	key, err := u.Authenticate(ctx, plaintext, clientIP)
	if err != nil {
		return nil, nil, err
	}

	project, err := u.projectRepo.GetByID(ctx, key.ProjectID)
	if err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, nil, err
	}
	if project == nil || project.Status != entities.ProjectStatusActive {
		return nil, nil, domainerrors.NewAppError(http.StatusNotFound,
			domainerrors.CodeProjectNotFound, "project is not active", domainerrors.ErrNotFound)
	}

	if err := u.keyRepo.RecordUse(ctx, key.ID); err != nil {
		logger.Warn(ctx, "key usage bump failed", zap.String("key_id", key.ID), zap.Error(err))
	}
	return key, project, nil
}

func (u *APIKeyUsecase) scanForKey(ctx context.Context, projectID, plaintext string) (*entities.APIKey, error) {
	candidates, err := u.keyRepo.ListActiveForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		decrypted, err := crypto.DecryptWithSubkey(u.masterKey, candidate.ProjectID, candidate.EncryptedKey)
		if err != nil {
			continue
		}
		if decrypted == plaintext {
			return candidate, nil
		}
	}
	return nil, domainerrors.ErrNotFound
}

func (u *APIKeyUsecase) validate(ctx context.Context, key *entities.APIKey, clientIP string) (*entities.APIKey, error) {
	now := time.Now()

	switch key.Status {
	case entities.APIKeyStatusActive:
	case entities.APIKeyStatusRotated:
		if !key.InRotationGrace(now) {
			return nil, domainerrors.Unauthorized(domainerrors.CodeAPIKeyExpired, "rotated key past its grace period")
		}
	case entities.APIKeyStatusRevoked:
		return nil, domainerrors.Unauthorized(domainerrors.CodeAPIKeyRevoked, "API key has been revoked")
	default:
		return nil, domainerrors.Unauthorized(domainerrors.CodeAPIKeyExpired, "API key has expired")
	}

	if key.ExpiresAt.Valid && now.After(key.ExpiresAt.Time) {
		if err := u.keyRepo.UpdateStatus(ctx, key.ProjectID, key.ID, entities.APIKeyStatusExpired); err != nil {
			logger.Warn(ctx, "key expiry status update failed", zap.String("key_id", key.ID), zap.Error(err))
		}
		return nil, domainerrors.Unauthorized(domainerrors.CodeAPIKeyExpired, "API key has expired")
	}

	// The allowlist binds only production-type keys, and only when the
	// service itself runs in production.
	if u.production && key.Type == entities.APIKeyTypeProduction && !ipAllowed(key.IPAllowlist, clientIP) {
		return nil, domainerrors.Forbidden(domainerrors.CodeIPNotWhitelisted, "request IP is not on the key's allowlist")
	}
	return key, nil
}

// ipAllowed checks IP equality or IPv4 CIDR membership; an empty allowlist
// admits any IP
func ipAllowed(allowlist []entities.IPAllowlistEntry, clientIP string) bool {
	if len(allowlist) == 0 {
		return true
	}
	ip := net.ParseIP(clientIP)
	for _, entry := range allowlist {
		if entry.IP == clientIP {
			return true
		}
		if strings.Contains(entry.IP, "/") && ip != nil {
			if _, cidr, err := net.ParseCIDR(entry.IP); err == nil && cidr.Contains(ip) {
				return true
			}
		}
	}
	return false
}

func validAllowlistEntry(value string) bool {
	if strings.Contains(value, "/") {
		_, _, err := net.ParseCIDR(value)
		return err == nil
	}
	return net.ParseIP(value) != nil
}
