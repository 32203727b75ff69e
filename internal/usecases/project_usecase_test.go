package usecases_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/usecases"
)

type projectFixture struct {
	projectRepo *MockProjectRepository
	memberRepo  *MockProjectMemberRepository
	userRepo    *MockUserRepository
	apiKeyRepo  *MockAPIKeyRepository
	pmRepo      *MockPaymasterRepository
	provisioner *MockProvisioner
	sender      *MockEmailSender
	uc          *usecases.ProjectUsecase
}

func newProjectFixture() *projectFixture {
	f := &projectFixture{
		projectRepo: new(MockProjectRepository),
		memberRepo:  new(MockProjectMemberRepository),
		userRepo:    new(MockUserRepository),
		apiKeyRepo:  new(MockAPIKeyRepository),
		pmRepo:      new(MockPaymasterRepository),
		provisioner: new(MockProvisioner),
		sender:      new(MockEmailSender),
	}
	f.uc = usecases.NewProjectUsecase(
		f.projectRepo, f.memberRepo, f.userRepo, f.apiKeyRepo, f.pmRepo, f.provisioner, f.sender)
	return f
}

func verifiedOwner() *entities.User {
	return &entities.User{
		ID:            "user_owner",
		Email:         "owner@acme.com",
		Name:          "Owner",
		EmailVerified: true,
		Status:        entities.UserStatusActive,
	}
}

func activeProject() *entities.Project {
	return &entities.Project{
		ID:      "proj_1",
		Name:    "Acme Pay",
		Slug:    "acme-pay",
		OwnerID: "user_owner",
		Chains:  []entities.Chain{entities.ChainEthereum, entities.ChainSolana},
		Settings: entities.ProjectSettings{
			PaymasterEnabled:   true,
			RateLimitPerMinute: entities.DefaultRateLimitPerMinute,
		},
		Status: entities.ProjectStatusActive,
	}
}

func TestProjectUsecase_Create_ProvisionsPaymasterPerChain(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()

	f.userRepo.On("GetByID", ctx, "user_owner").Return(verifiedOwner(), nil).Once()
	f.projectRepo.On("SlugExists", ctx, "acme-pay").Return(false, nil).Once()
	f.projectRepo.On("Create", ctx, mock.AnythingOfType("*entities.Project")).Return(nil).Once()
	f.memberRepo.On("Add", ctx, mock.MatchedBy(func(m *entities.ProjectMember) bool {
		return m.Role == entities.RoleOwner && m.AcceptedAt.Valid
	})).Return(nil).Once()
	f.provisioner.On("Provision", ctx, mock.AnythingOfType("string"), entities.ChainEthereum).
		Return(&entities.ProjectPaymaster{Chain: entities.ChainEthereum}, nil).Once()
	f.provisioner.On("Provision", ctx, mock.AnythingOfType("string"), entities.ChainSolana).
		Return(&entities.ProjectPaymaster{Chain: entities.ChainSolana}, nil).Once()

	project, err := f.uc.Create(ctx, "user_owner", &entities.CreateProjectInput{
		Name:   "Acme Pay",
		Chains: []entities.Chain{entities.ChainEthereum, entities.ChainSolana, entities.ChainEthereum},
	})
	require.NoError(t, err)
	require.Equal(t, "acme-pay", project.Slug)
	// Duplicate chains collapse.
	require.Equal(t, []entities.Chain{entities.ChainEthereum, entities.ChainSolana}, project.Chains)
	require.True(t, project.Settings.PaymasterEnabled)
	require.Equal(t, entities.DefaultRateLimitPerMinute, project.Settings.RateLimitPerMinute)
	f.provisioner.AssertExpectations(t)
}

func TestProjectUsecase_Create_UnverifiedOwnerRejected(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()

	owner := verifiedOwner()
	owner.EmailVerified = false
	f.userRepo.On("GetByID", ctx, "user_owner").Return(owner, nil).Once()

	_, err := f.uc.Create(ctx, "user_owner", &entities.CreateProjectInput{
		Name: "Acme", Chains: []entities.Chain{entities.ChainEthereum},
	})
	require.Error(t, err)
	require.Equal(t, domainerrors.CodeEmailNotVerified, domainerrors.AsAppError(err).Code)
}

func TestProjectUsecase_Create_SlugClashAppendsSuffix(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()

	f.userRepo.On("GetByID", ctx, "user_owner").Return(verifiedOwner(), nil).Once()
	f.projectRepo.On("SlugExists", ctx, "acme-pay").Return(true, nil).Once()
	f.projectRepo.On("SlugExists", ctx, "acme-pay-2").Return(false, nil).Once()
	f.projectRepo.On("Create", ctx, mock.AnythingOfType("*entities.Project")).Return(nil).Once()
	f.memberRepo.On("Add", ctx, mock.AnythingOfType("*entities.ProjectMember")).Return(nil).Once()
	f.provisioner.On("Provision", ctx, mock.AnythingOfType("string"), entities.ChainEthereum).
		Return(&entities.ProjectPaymaster{}, nil).Once()

	project, err := f.uc.Create(ctx, "user_owner", &entities.CreateProjectInput{
		Name: "Acme Pay!", Chains: []entities.Chain{entities.ChainEthereum},
	})
	require.NoError(t, err)
	require.Equal(t, "acme-pay-2", project.Slug)
}

func TestProjectUsecase_Create_ProvisionFailureRollsBack(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()

	f.userRepo.On("GetByID", ctx, "user_owner").Return(verifiedOwner(), nil).Once()
	f.projectRepo.On("SlugExists", ctx, "acme").Return(false, nil).Once()
	f.projectRepo.On("Create", ctx, mock.AnythingOfType("*entities.Project")).Return(nil).Once()
	f.memberRepo.On("Add", ctx, mock.AnythingOfType("*entities.ProjectMember")).Return(nil).Once()
	f.provisioner.On("Provision", ctx, mock.AnythingOfType("string"), entities.ChainEthereum).
		Return(nil, domainerrors.Upstream("rpc down", nil)).Once()
	f.projectRepo.On("SoftDelete", ctx, mock.AnythingOfType("string")).Return(nil).Once()

	_, err := f.uc.Create(ctx, "user_owner", &entities.CreateProjectInput{
		Name: "Acme", Chains: []entities.Chain{entities.ChainEthereum},
	})
	require.Error(t, err)
	f.projectRepo.AssertCalled(t, "SoftDelete", ctx, mock.AnythingOfType("string"))
}

func TestProjectUsecase_Update_RateLimitBounds(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()

	f.projectRepo.On("GetByID", ctx, "proj_1").Return(activeProject(), nil).Twice()

	tooHigh := entities.MaxRateLimitPerMinute + 1
	_, err := f.uc.Update(ctx, "user_owner", "proj_1", &entities.UpdateProjectInput{RateLimitPerMinute: &tooHigh})
	require.Error(t, err)
	require.Equal(t, "rateLimitPerMinute", domainerrors.AsAppError(err).Field)

	valid := 2000
	f.projectRepo.On("Update", ctx, mock.MatchedBy(func(p *entities.Project) bool {
		return p.Settings.RateLimitPerMinute == 2000
	})).Return(nil).Once()
	updated, err := f.uc.Update(ctx, "user_owner", "proj_1", &entities.UpdateProjectInput{RateLimitPerMinute: &valid})
	require.NoError(t, err)
	require.Equal(t, 2000, updated.Settings.RateLimitPerMinute)
}

func TestProjectUsecase_Update_ViewerForbidden(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()

	f.projectRepo.On("GetByID", ctx, "proj_1").Return(activeProject(), nil).Once()
	f.memberRepo.On("Get", ctx, "proj_1", "user_viewer").Return(&entities.ProjectMember{
		ProjectID: "proj_1", UserID: "user_viewer", Role: entities.RoleViewer,
		AcceptedAt: null.TimeFrom(time.Now()),
	}, nil).Once()

	name := "Renamed"
	_, err := f.uc.Update(ctx, "user_viewer", "proj_1", &entities.UpdateProjectInput{Name: name})
	require.Error(t, err)
	require.Equal(t, domainerrors.CodeInsufficientPermissions, domainerrors.AsAppError(err).Code)
}

func TestProjectUsecase_Delete_RevokesKeysAndFreezesPaymasters(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()

	f.projectRepo.On("GetByID", ctx, "proj_1").Return(activeProject(), nil).Once()
	f.apiKeyRepo.On("RevokeAllForProject", ctx, "proj_1").Return(nil).Once()
	f.pmRepo.On("SetFrozen", ctx, "proj_1", true).Return(nil).Once()
	f.projectRepo.On("SoftDelete", ctx, "proj_1").Return(nil).Once()

	require.NoError(t, f.uc.Delete(ctx, "user_owner", "proj_1"))
	f.apiKeyRepo.AssertExpectations(t)
	f.pmRepo.AssertExpectations(t)
}

func TestProjectUsecase_Delete_AdminCannotDelete(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()

	f.projectRepo.On("GetByID", ctx, "proj_1").Return(activeProject(), nil).Once()
	f.memberRepo.On("Get", ctx, "proj_1", "user_admin").Return(&entities.ProjectMember{
		ProjectID: "proj_1", UserID: "user_admin", Role: entities.RoleAdmin,
		AcceptedAt: null.TimeFrom(time.Now()),
	}, nil).Once()

	err := f.uc.Delete(ctx, "user_admin", "proj_1")
	require.Error(t, err)
	require.Equal(t, domainerrors.CodeInsufficientPermissions, domainerrors.AsAppError(err).Code)
}

func TestProjectUsecase_InviteMember_ExistingUserJoinsImmediately(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()

	f.projectRepo.On("GetByID", ctx, "proj_1").Return(activeProject(), nil).Once()
	f.userRepo.On("GetByEmail", ctx, "dev@acme.com").Return(&entities.User{ID: "user_dev"}, nil).Once()
	f.memberRepo.On("Add", ctx, mock.MatchedBy(func(m *entities.ProjectMember) bool {
		return m.UserID == "user_dev" && m.AcceptedAt.Valid && m.Role == entities.RoleDeveloper
	})).Return(nil).Once()

	member, err := f.uc.InviteMember(ctx, "user_owner", "proj_1", &entities.InviteMemberInput{
		Email: "Dev@Acme.com", Role: entities.RoleDeveloper,
	})
	require.NoError(t, err)
	require.Equal(t, "dev@acme.com", member.Email)
	f.sender.AssertNotCalled(t, "SendProjectInvite", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProjectUsecase_InviteMember_UnknownEmailGetsPendingInvite(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()

	f.projectRepo.On("GetByID", ctx, "proj_1").Return(activeProject(), nil).Once()
	f.userRepo.On("GetByEmail", ctx, "new@b.com").Return(nil, domainerrors.ErrNotFound).Once()
	f.memberRepo.On("Add", ctx, mock.MatchedBy(func(m *entities.ProjectMember) bool {
		return !m.AcceptedAt.Valid && m.UserID != ""
	})).Return(nil).Once()
	f.sender.On("SendProjectInvite", ctx, "new@b.com", "Acme Pay", mock.AnythingOfType("string")).Return(nil).Once()

	member, err := f.uc.InviteMember(ctx, "user_owner", "proj_1", &entities.InviteMemberInput{
		Email: "new@b.com", Role: entities.RoleViewer,
	})
	require.NoError(t, err)
	require.False(t, member.AcceptedAt.Valid)
	f.sender.AssertExpectations(t)
}

func TestProjectUsecase_InviteMember_OwnerRoleRejected(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()

	f.projectRepo.On("GetByID", ctx, "proj_1").Return(activeProject(), nil).Once()

	_, err := f.uc.InviteMember(ctx, "user_owner", "proj_1", &entities.InviteMemberInput{
		Email: "x@b.com", Role: entities.RoleOwner,
	})
	require.Error(t, err)
	require.Equal(t, "role", domainerrors.AsAppError(err).Field)
}

func TestProjectUsecase_RemoveMember_OwnerProtected(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()

	f.projectRepo.On("GetByID", ctx, "proj_1").Return(activeProject(), nil).Once()

	err := f.uc.RemoveMember(ctx, "user_owner", "proj_1", "user_owner")
	require.Error(t, err)
}

func TestProjectUsecase_RemoveMember_SelfRemovalAllowed(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()

	f.projectRepo.On("GetByID", ctx, "proj_1").Return(activeProject(), nil).Once()
	f.memberRepo.On("Get", ctx, "proj_1", "user_dev").Return(&entities.ProjectMember{
		ProjectID: "proj_1", UserID: "user_dev", Role: entities.RoleDeveloper,
		AcceptedAt: null.TimeFrom(time.Now()),
	}, nil).Once()
	f.memberRepo.On("Remove", ctx, "proj_1", "user_dev").Return(nil).Once()

	require.NoError(t, f.uc.RemoveMember(ctx, "user_dev", "proj_1", "user_dev"))
}

func TestProjectUsecase_RoleOf_PendingInviteDenied(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()

	f.memberRepo.On("Get", ctx, "proj_1", "user_pending").Return(&entities.ProjectMember{
		ProjectID: "proj_1", UserID: "user_pending", Role: entities.RoleDeveloper,
	}, nil).Once()

	_, err := f.uc.RoleOf(ctx, activeProject(), "user_pending")
	require.Error(t, err)
	require.Equal(t, domainerrors.CodeProjectMismatch, domainerrors.AsAppError(err).Code)
}
