package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/pkg/utils"
)

func seedProject(t *testing.T, repo *ProjectRepository, ownerID, slug string) *entities.Project {
	t.Helper()
	p := &entities.Project{
		ID:      utils.NewID(utils.PrefixProject),
		Name:    "Acme Wallets",
		Slug:    slug,
		OwnerID: ownerID,
		Chains:  []entities.Chain{entities.ChainEthereum, entities.ChainSolana},
		Settings: entities.ProjectSettings{
			PaymasterEnabled:   true,
			RateLimitPerMinute: entities.DefaultRateLimitPerMinute,
		},
		Status:    entities.ProjectStatusActive,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func TestProjectRepository_CreateGetSlug(t *testing.T) {
	db := newTestDB(t)
	createProjectTables(t, db)
	repo := NewProjectRepository(db)
	ctx := context.Background()

	ownerID := utils.NewID(utils.PrefixUser)
	p := seedProject(t, repo, ownerID, "acme-wallets")

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, []entities.Chain{entities.ChainEthereum, entities.ChainSolana}, got.Chains)
	require.True(t, got.Settings.PaymasterEnabled)

	bySlug, err := repo.GetBySlug(ctx, "acme-wallets")
	require.NoError(t, err)
	require.Equal(t, p.ID, bySlug.ID)

	exists, err := repo.SlugExists(ctx, "acme-wallets")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = repo.SlugExists(ctx, "acme-wallets-2")
	require.NoError(t, err)
	require.False(t, exists)

	_, err = repo.GetByID(ctx, "proj_missing")
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestProjectRepository_UpdateAndSoftDelete(t *testing.T) {
	db := newTestDB(t)
	createProjectTables(t, db)
	repo := NewProjectRepository(db)
	ctx := context.Background()

	ownerID := utils.NewID(utils.PrefixUser)
	p := seedProject(t, repo, ownerID, "acme")

	p.Name = "Acme v2"
	p.Settings.WebhookURL = null.StringFrom("https://hooks.acme.dev/npay")
	p.Settings.RateLimitPerMinute = 2000
	require.NoError(t, repo.Update(ctx, p))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "Acme v2", got.Name)
	require.Equal(t, "https://hooks.acme.dev/npay", got.Settings.WebhookURL.String)
	require.Equal(t, 2000, got.Settings.RateLimitPerMinute)

	require.NoError(t, repo.SoftDelete(ctx, p.ID))
	_, err = repo.GetByID(ctx, p.ID)
	require.ErrorIs(t, err, domainerrors.ErrNotFound)

	// Slugs of soft-deleted projects stay reserved.
	exists, err := repo.SlugExists(ctx, "acme")
	require.NoError(t, err)
	require.True(t, exists)

	require.ErrorIs(t, repo.SoftDelete(ctx, "proj_missing"), domainerrors.ErrNotFound)
}

func TestProjectRepository_ListByUser(t *testing.T) {
	db := newTestDB(t)
	createProjectTables(t, db)
	repo := NewProjectRepository(db)
	members := NewProjectMemberRepository(db)
	ctx := context.Background()

	owner := utils.NewID(utils.PrefixUser)
	member := utils.NewID(utils.PrefixUser)
	stranger := utils.NewID(utils.PrefixUser)

	owned := seedProject(t, repo, owner, "owned")
	shared := seedProject(t, repo, utils.NewID(utils.PrefixUser), "shared")

	require.NoError(t, members.Add(ctx, &entities.ProjectMember{
		ProjectID: shared.ID,
		UserID:    member,
		Email:     "dev@acme.dev",
		Role:      entities.RoleDeveloper,
		InvitedBy: shared.OwnerID,
		InvitedAt: time.Now(),
	}))

	forOwner, err := repo.ListByUser(ctx, owner)
	require.NoError(t, err)
	require.Len(t, forOwner, 1)
	require.Equal(t, owned.ID, forOwner[0].ID)

	forMember, err := repo.ListByUser(ctx, member)
	require.NoError(t, err)
	require.Len(t, forMember, 1)
	require.Equal(t, shared.ID, forMember[0].ID)

	forStranger, err := repo.ListByUser(ctx, stranger)
	require.NoError(t, err)
	require.Empty(t, forStranger)
}

func TestProjectMemberRepository_CRUD(t *testing.T) {
	db := newTestDB(t)
	createProjectTables(t, db)
	members := NewProjectMemberRepository(db)
	ctx := context.Background()

	projectID := utils.NewID(utils.PrefixProject)
	userID := utils.NewID(utils.PrefixUser)

	require.NoError(t, members.Add(ctx, &entities.ProjectMember{
		ProjectID: projectID,
		UserID:    userID,
		Email:     "viewer@acme.dev",
		Role:      entities.RoleViewer,
		InvitedBy: utils.NewID(utils.PrefixUser),
		InvitedAt: time.Now(),
	}))

	got, err := members.Get(ctx, projectID, userID)
	require.NoError(t, err)
	require.Equal(t, entities.RoleViewer, got.Role)

	require.NoError(t, members.UpdateRole(ctx, projectID, userID, entities.RoleAdmin))
	got, err = members.Get(ctx, projectID, userID)
	require.NoError(t, err)
	require.Equal(t, entities.RoleAdmin, got.Role)

	list, err := members.List(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, members.Remove(ctx, projectID, userID))
	_, err = members.Get(ctx, projectID, userID)
	require.ErrorIs(t, err, domainerrors.ErrNotFound)

	require.ErrorIs(t, members.Remove(ctx, projectID, userID), domainerrors.ErrNotFound)
	require.ErrorIs(t, members.UpdateRole(ctx, projectID, userID, entities.RoleViewer), domainerrors.ErrNotFound)
}
