package usecases_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"nexuspay.backend/internal/config"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/infrastructure/webhook"
	"nexuspay.backend/internal/usecases"
)

const testEncryptionKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func requireAppCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, domainerrors.AsAppError(err).Code)
}

type apiKeyFixture struct {
	keyRepo     *MockAPIKeyRepository
	projectRepo *MockProjectRepository
	memberRepo  *MockProjectMemberRepository
	uc          *usecases.APIKeyUsecase
}

func newAPIKeyFixture(t *testing.T, env string) *apiKeyFixture {
	t.Helper()
	f := &apiKeyFixture{
		keyRepo:     new(MockAPIKeyRepository),
		projectRepo: new(MockProjectRepository),
		memberRepo:  new(MockProjectMemberRepository),
	}
	projects := usecases.NewProjectUsecase(
		f.projectRepo, f.memberRepo, new(MockUserRepository), f.keyRepo,
		new(MockPaymasterRepository), new(MockProvisioner), new(MockEmailSender))

	uc, err := usecases.NewAPIKeyUsecase(
		f.keyRepo, f.projectRepo, projects, webhook.NewDispatcher("whsec"),
		config.SecurityConfig{
			APIKeyEncryptionKey: testEncryptionKey,
			KeyIndexSecret:      "index-secret",
		},
		config.ServerConfig{Env: env},
	)
	require.NoError(t, err)
	f.uc = uc
	return f
}

func TestNewAPIKeyUsecase_RejectsBadMasterKey(t *testing.T) {
	_, err := usecases.NewAPIKeyUsecase(
		new(MockAPIKeyRepository), new(MockProjectRepository), nil, nil,
		config.SecurityConfig{APIKeyEncryptionKey: "not-hex"},
		config.ServerConfig{Env: "development"},
	)
	require.Error(t, err)
}

func TestAPIKeyUsecase_Create_MintedKeyAuthenticates(t *testing.T) {
	f := newAPIKeyFixture(t, "development")
	ctx := context.Background()
	project := activeProject()

	var stored *entities.APIKey
	f.projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)
	f.keyRepo.On("Create", ctx, mock.AnythingOfType("*entities.APIKey")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*entities.APIKey) }).
		Return(nil).Once()

	resp, err := f.uc.Create(ctx, "user_owner", project.ID, &entities.CreateAPIKeyInput{
		Name: "backend", Type: entities.APIKeyTypeProduction,
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(resp.Key, "npay_proj_"))
	require.Contains(t, resp.Key, "_production_")
	require.NotContains(t, stored.EncryptedKey, resp.Key)
	require.Equal(t, entities.DefaultKeyPermissions, resp.Permissions)
	// Preview is first-8 + ellipsis + last-4 of the plaintext.
	require.Equal(t, resp.Key[:8]+"..."+resp.Key[len(resp.Key)-4:], resp.KeyPreview)

	// The round trip: index hit resolves the stored row, validate admits it.
	f.keyRepo.On("GetByKeyIndex", ctx, stored.KeyIndex).Return(stored, nil).Once()
	key, err := f.uc.Authenticate(ctx, resp.Key, "203.0.113.9")
	require.NoError(t, err)
	require.Equal(t, stored.ID, key.ID)
}

func TestAPIKeyUsecase_Create_RejectsUnknownType(t *testing.T) {
	f := newAPIKeyFixture(t, "development")
	ctx := context.Background()
	project := activeProject()
	f.projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)

	_, err := f.uc.Create(ctx, "user_owner", project.ID, &entities.CreateAPIKeyInput{
		Name: "bad", Type: entities.APIKeyType("staging"),
	})
	requireAppCode(t, err, domainerrors.CodeValidationError)
}

func TestAPIKeyUsecase_Create_RejectsMalformedAllowlistEntry(t *testing.T) {
	f := newAPIKeyFixture(t, "development")
	ctx := context.Background()
	project := activeProject()
	f.projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)

	_, err := f.uc.Create(ctx, "user_owner", project.ID, &entities.CreateAPIKeyInput{
		Name: "backend", Type: entities.APIKeyTypeProduction,
		IPAllowlist: []entities.IPAllowlistEntry{{IP: "not-an-ip"}},
	})
	requireAppCode(t, err, domainerrors.CodeValidationError)
}

func TestAPIKeyUsecase_Create_ViewerForbidden(t *testing.T) {
	f := newAPIKeyFixture(t, "development")
	ctx := context.Background()
	project := activeProject()
	f.projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)
	f.memberRepo.On("Get", ctx, project.ID, "user_viewer").Return(&entities.ProjectMember{
		ProjectID: project.ID, UserID: "user_viewer",
		Role: entities.RoleViewer, AcceptedAt: null.TimeFrom(time.Now()),
	}, nil)

	_, err := f.uc.Create(ctx, "user_viewer", project.ID, &entities.CreateAPIKeyInput{
		Name: "nope", Type: entities.APIKeyTypeDev,
	})
	requireAppCode(t, err, domainerrors.CodeInsufficientPermissions)
}

func TestParseKey(t *testing.T) {
	parsed, err := usecases.ParseKey("npay_proj_abc123_k4f2_production_deadbeef")
	require.NoError(t, err)
	require.Equal(t, "proj_abc123", parsed.ProjectID)
	require.Equal(t, "k4f2", parsed.KeyID)
	require.Equal(t, entities.APIKeyTypeProduction, parsed.Type)
	require.Equal(t, "deadbeef", parsed.Hash)

	// A project id carrying underscores keeps them: only the trailing keyId,
	// type and hash segments are positional.
	parsed, err = usecases.ParseKey("npay_proj_legacy_tenant_42_k4f2_production_deadbeef")
	require.NoError(t, err)
	require.Equal(t, "proj_legacy_tenant_42", parsed.ProjectID)
	require.Equal(t, "k4f2", parsed.KeyID)
	require.Equal(t, entities.APIKeyTypeProduction, parsed.Type)
	require.Equal(t, "deadbeef", parsed.Hash)

	for _, bad := range []string{
		"",
		"npay_proj_abc123",
		"sk_live_abcdef",
		"npay_user_abc123_k4f2_production_deadbeef",
		"npay_proj_abc123_k4f2_staging_deadbeef",
	} {
		_, err := usecases.ParseKey(bad)
		requireAppCode(t, err, domainerrors.CodeInvalidAPIKeyFormat)
	}
}

func TestAPIKeyUsecase_Authenticate_UnknownKey(t *testing.T) {
	f := newAPIKeyFixture(t, "development")
	ctx := context.Background()

	f.keyRepo.On("GetByKeyIndex", ctx, mock.AnythingOfType("string")).
		Return(nil, domainerrors.ErrNotFound).Once()
	f.keyRepo.On("ListActiveForProject", ctx, "proj_abc123").
		Return([]*entities.APIKey{}, nil).Once()

	_, err := f.uc.Authenticate(ctx, "npay_proj_abc123_k4f2_dev_deadbeef", "127.0.0.1")
	requireAppCode(t, err, domainerrors.CodeInvalidAPIKey)
}

func TestAPIKeyUsecase_Authenticate_ScanFallbackCoversRotatedKey(t *testing.T) {
	f := newAPIKeyFixture(t, "development")
	ctx := context.Background()
	project := activeProject()

	var stored *entities.APIKey
	f.projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)
	f.keyRepo.On("Create", ctx, mock.AnythingOfType("*entities.APIKey")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*entities.APIKey) }).
		Return(nil).Once()
	resp, err := f.uc.Create(ctx, "user_owner", project.ID, &entities.CreateAPIKeyInput{
		Name: "backend", Type: entities.APIKeyTypeDev,
	})
	require.NoError(t, err)

	// Rotated an hour ago: inside the 24h grace window. The index row is
	// gone, so resolution goes through the decrypt-and-compare scan.
	stored.Status = entities.APIKeyStatusRotated
	stored.RotatedAt = null.TimeFrom(time.Now().Add(-time.Hour))
	f.keyRepo.On("GetByKeyIndex", ctx, mock.AnythingOfType("string")).
		Return(nil, domainerrors.ErrNotFound).Once()
	f.keyRepo.On("ListActiveForProject", ctx, project.ID).
		Return([]*entities.APIKey{stored}, nil).Once()

	key, err := f.uc.Authenticate(ctx, resp.Key, "127.0.0.1")
	require.NoError(t, err)
	require.Equal(t, stored.ID, key.ID)

	// Past the grace window the same key stops authenticating.
	stored.RotatedAt = null.TimeFrom(time.Now().Add(-25 * time.Hour))
	f.keyRepo.On("GetByKeyIndex", ctx, mock.AnythingOfType("string")).
		Return(stored, nil).Once()
	_, err = f.uc.Authenticate(ctx, resp.Key, "127.0.0.1")
	requireAppCode(t, err, domainerrors.CodeAPIKeyExpired)
}

func TestAPIKeyUsecase_Authenticate_RevokedAndExpired(t *testing.T) {
	f := newAPIKeyFixture(t, "development")
	ctx := context.Background()
	project := activeProject()

	var stored *entities.APIKey
	f.projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)
	f.keyRepo.On("Create", ctx, mock.AnythingOfType("*entities.APIKey")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*entities.APIKey) }).
		Return(nil).Once()
	resp, err := f.uc.Create(ctx, "user_owner", project.ID, &entities.CreateAPIKeyInput{
		Name: "backend", Type: entities.APIKeyTypeDev,
	})
	require.NoError(t, err)

	stored.Status = entities.APIKeyStatusRevoked
	f.keyRepo.On("GetByKeyIndex", ctx, mock.AnythingOfType("string")).Return(stored, nil).Once()
	_, err = f.uc.Authenticate(ctx, resp.Key, "127.0.0.1")
	requireAppCode(t, err, domainerrors.CodeAPIKeyRevoked)

	stored.Status = entities.APIKeyStatusActive
	stored.ExpiresAt = null.TimeFrom(time.Now().Add(-time.Minute))
	f.keyRepo.On("GetByKeyIndex", ctx, mock.AnythingOfType("string")).Return(stored, nil).Once()
	f.keyRepo.On("UpdateStatus", ctx, project.ID, stored.ID, entities.APIKeyStatusExpired).Return(nil).Once()
	_, err = f.uc.Authenticate(ctx, resp.Key, "127.0.0.1")
	requireAppCode(t, err, domainerrors.CodeAPIKeyExpired)
	f.keyRepo.AssertExpectations(t)
}

func TestAPIKeyUsecase_Authenticate_AllowlistProductionOnly(t *testing.T) {
	mint := func(t *testing.T, f *apiKeyFixture, keyType entities.APIKeyType) (*entities.APIKey, string) {
		t.Helper()
		ctx := context.Background()
		project := activeProject()
		var stored *entities.APIKey
		f.projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)
		f.keyRepo.On("Create", ctx, mock.AnythingOfType("*entities.APIKey")).
			Run(func(args mock.Arguments) { stored = args.Get(1).(*entities.APIKey) }).
			Return(nil).Once()
		resp, err := f.uc.Create(ctx, "user_owner", project.ID, &entities.CreateAPIKeyInput{
			Name: "backend", Type: keyType,
			IPAllowlist: []entities.IPAllowlistEntry{{IP: "198.51.100.7"}, {IP: "10.0.0.0/24"}},
		})
		require.NoError(t, err)
		f.keyRepo.On("GetByKeyIndex", ctx, stored.KeyIndex).Return(stored, nil)
		return stored, resp.Key
	}

	t.Run("production env, production key, IP off list", func(t *testing.T) {
		f := newAPIKeyFixture(t, "production")
		_, plaintext := mint(t, f, entities.APIKeyTypeProduction)
		_, err := f.uc.Authenticate(context.Background(), plaintext, "203.0.113.9")
		requireAppCode(t, err, domainerrors.CodeIPNotWhitelisted)
	})

	t.Run("production env, exact IP and CIDR both admit", func(t *testing.T) {
		f := newAPIKeyFixture(t, "production")
		_, plaintext := mint(t, f, entities.APIKeyTypeProduction)
		_, err := f.uc.Authenticate(context.Background(), plaintext, "198.51.100.7")
		require.NoError(t, err)
		_, err = f.uc.Authenticate(context.Background(), plaintext, "10.0.0.255")
		require.NoError(t, err)
		_, err = f.uc.Authenticate(context.Background(), plaintext, "10.0.1.1")
		requireAppCode(t, err, domainerrors.CodeIPNotWhitelisted)
	})

	t.Run("production env, dev key skips allowlist", func(t *testing.T) {
		f := newAPIKeyFixture(t, "production")
		_, plaintext := mint(t, f, entities.APIKeyTypeDev)
		_, err := f.uc.Authenticate(context.Background(), plaintext, "203.0.113.9")
		require.NoError(t, err)
	})

	t.Run("development env, production key skips allowlist", func(t *testing.T) {
		f := newAPIKeyFixture(t, "development")
		_, plaintext := mint(t, f, entities.APIKeyTypeProduction)
		_, err := f.uc.Authenticate(context.Background(), plaintext, "203.0.113.9")
		require.NoError(t, err)
	})
}

func TestAPIKeyUsecase_Authenticate_ProjectMismatch(t *testing.T) {
	f := newAPIKeyFixture(t, "development")
	ctx := context.Background()
	project := activeProject()

	var stored *entities.APIKey
	f.projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)
	f.keyRepo.On("Create", ctx, mock.AnythingOfType("*entities.APIKey")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*entities.APIKey) }).
		Return(nil).Once()
	resp, err := f.uc.Create(ctx, "user_owner", project.ID, &entities.CreateAPIKeyInput{
		Name: "backend", Type: entities.APIKeyTypeDev,
	})
	require.NoError(t, err)

	// Same stored row, but its ProjectID no longer matches the plaintext's
	// embedded project segment.
	stored.ProjectID = "proj_other"
	f.keyRepo.On("GetByKeyIndex", ctx, stored.KeyIndex).Return(stored, nil).Once()
	_, err = f.uc.Authenticate(ctx, resp.Key, "127.0.0.1")
	requireAppCode(t, err, domainerrors.CodeProjectMismatch)
}

func TestAPIKeyUsecase_AuthenticateRequest_InactiveProject(t *testing.T) {
	f := newAPIKeyFixture(t, "development")
	ctx := context.Background()
	project := activeProject()

	var stored *entities.APIKey
	f.projectRepo.On("GetByID", ctx, project.ID).Return(project, nil).Once()
	f.keyRepo.On("Create", ctx, mock.AnythingOfType("*entities.APIKey")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*entities.APIKey) }).
		Return(nil).Once()
	resp, err := f.uc.Create(ctx, "user_owner", project.ID, &entities.CreateAPIKeyInput{
		Name: "backend", Type: entities.APIKeyTypeDev,
	})
	require.NoError(t, err)

	deleted := activeProject()
	deleted.Status = entities.ProjectStatusDeleted
	f.keyRepo.On("GetByKeyIndex", ctx, stored.KeyIndex).Return(stored, nil).Once()
	f.projectRepo.On("GetByID", ctx, project.ID).Return(deleted, nil).Once()

	_, _, err = f.uc.AuthenticateRequest(ctx, resp.Key, "127.0.0.1")
	requireAppCode(t, err, domainerrors.CodeProjectNotFound)
}

func TestAPIKeyUsecase_AuthenticateRequest_BumpsUsage(t *testing.T) {
	f := newAPIKeyFixture(t, "development")
	ctx := context.Background()
	project := activeProject()

	var stored *entities.APIKey
	f.projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)
	f.keyRepo.On("Create", ctx, mock.AnythingOfType("*entities.APIKey")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*entities.APIKey) }).
		Return(nil).Once()
	resp, err := f.uc.Create(ctx, "user_owner", project.ID, &entities.CreateAPIKeyInput{
		Name: "backend", Type: entities.APIKeyTypeDev,
	})
	require.NoError(t, err)

	f.keyRepo.On("GetByKeyIndex", ctx, stored.KeyIndex).Return(stored, nil).Once()
	f.keyRepo.On("RecordUse", ctx, stored.ID).Return(nil).Once()

	key, resolved, err := f.uc.AuthenticateRequest(ctx, resp.Key, "127.0.0.1")
	require.NoError(t, err)
	require.Equal(t, stored.ID, key.ID)
	require.Equal(t, project.ID, resolved.ID)
	f.keyRepo.AssertExpectations(t)
}

func TestAPIKeyUsecase_Rotate_GraceHandoff(t *testing.T) {
	f := newAPIKeyFixture(t, "development")
	ctx := context.Background()
	project := activeProject()

	old := &entities.APIKey{
		ID: "key_old", ProjectID: project.ID, Name: "backend",
		Type: entities.APIKeyTypeProduction, Status: entities.APIKeyStatusActive,
		Permissions: []string{entities.PermWalletsRead},
	}
	f.projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)
	f.keyRepo.On("GetByID", ctx, project.ID, "key_old").Return(old, nil).Once()
	f.keyRepo.On("Create", ctx, mock.MatchedBy(func(k *entities.APIKey) bool {
		return k.Name == "backend" && k.Type == entities.APIKeyTypeProduction &&
			k.Status == entities.APIKeyStatusActive
	})).Return(nil).Once()
	f.keyRepo.On("Update", ctx, mock.MatchedBy(func(k *entities.APIKey) bool {
		return k.ID == "key_old" && k.Status == entities.APIKeyStatusRotated && k.RotatedAt.Valid
	})).Return(nil).Once()

	resp, err := f.uc.Rotate(ctx, "user_owner", project.ID, "key_old")
	require.NoError(t, err)
	require.NotEmpty(t, resp.Key)
	require.Equal(t, []string{entities.PermWalletsRead}, resp.Permissions)
	f.keyRepo.AssertExpectations(t)

	// A second rotation of the already-rotated key conflicts.
	f.keyRepo.On("GetByID", ctx, project.ID, "key_old").Return(old, nil).Once()
	_, err = f.uc.Rotate(ctx, "user_owner", project.ID, "key_old")
	requireAppCode(t, err, domainerrors.CodeConflict)
}

func TestAPIKeyUsecase_UpdateIPAllowlist(t *testing.T) {
	f := newAPIKeyFixture(t, "development")
	ctx := context.Background()
	project := activeProject()

	key := &entities.APIKey{
		ID: "key_1", ProjectID: project.ID, Status: entities.APIKeyStatusActive,
		IPAllowlist: []entities.IPAllowlistEntry{{IP: "198.51.100.7"}, {IP: "192.0.2.1"}},
	}
	f.projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)
	f.keyRepo.On("GetByID", ctx, project.ID, "key_1").Return(key, nil)
	f.keyRepo.On("Update", ctx, key).Return(nil).Once()

	updated, err := f.uc.UpdateIPAllowlist(ctx, "user_owner", project.ID, "key_1", &entities.UpdateIPAllowlistInput{
		Add:    []entities.IPAllowlistEntry{{IP: "10.0.0.0/16"}},
		Remove: []string{"192.0.2.1"},
	})
	require.NoError(t, err)
	ips := make([]string, 0, len(updated.IPAllowlist))
	for _, e := range updated.IPAllowlist {
		ips = append(ips, e.IP)
	}
	require.Equal(t, []string{"198.51.100.7", "10.0.0.0/16"}, ips)

	_, err = f.uc.UpdateIPAllowlist(ctx, "user_owner", project.ID, "key_1", &entities.UpdateIPAllowlistInput{
		Add: []entities.IPAllowlistEntry{{IP: "999.1.2.3"}},
	})
	requireAppCode(t, err, domainerrors.CodeValidationError)
}

func TestAPIKeyUsecase_Revoke(t *testing.T) {
	f := newAPIKeyFixture(t, "development")
	ctx := context.Background()
	project := activeProject()

	f.projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)
	f.keyRepo.On("GetByID", ctx, project.ID, "key_1").Return(&entities.APIKey{ID: "key_1"}, nil).Once()
	f.keyRepo.On("UpdateStatus", ctx, project.ID, "key_1", entities.APIKeyStatusRevoked).Return(nil).Once()

	require.NoError(t, f.uc.Revoke(ctx, "user_owner", project.ID, "key_1"))
	f.keyRepo.AssertExpectations(t)
}
