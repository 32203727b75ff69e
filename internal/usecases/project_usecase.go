package usecases

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/domain/repositories"
	"nexuspay.backend/internal/infrastructure/email"
	"nexuspay.backend/pkg/logger"
	"nexuspay.backend/pkg/utils"
)

// maxSlugAttempts bounds the numeric-suffix probe before giving up
const maxSlugAttempts = 50

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// PaymasterProvisioner creates the per-chain sponsoring wallet for a project
type PaymasterProvisioner interface {
	Provision(ctx context.Context, projectID string, chain entities.Chain) (*entities.ProjectPaymaster, error)
}

// ProjectUsecase handles project and membership business logic
type ProjectUsecase struct {
	projectRepo repositories.ProjectRepository
	memberRepo  repositories.ProjectMemberRepository
	userRepo    repositories.UserRepository
	apiKeyRepo  repositories.APIKeyRepository
	pmRepo      repositories.PaymasterRepository
	provisioner PaymasterProvisioner
	sender      email.Sender
}

// NewProjectUsecase creates a new project usecase
func NewProjectUsecase(
	projectRepo repositories.ProjectRepository,
	memberRepo repositories.ProjectMemberRepository,
	userRepo repositories.UserRepository,
	apiKeyRepo repositories.APIKeyRepository,
	pmRepo repositories.PaymasterRepository,
	provisioner PaymasterProvisioner,
	sender email.Sender,
) *ProjectUsecase {
	return &ProjectUsecase{
		projectRepo: projectRepo,
		memberRepo:  memberRepo,
		userRepo:    userRepo,
		apiKeyRepo:  apiKeyRepo,
		pmRepo:      pmRepo,
		provisioner: provisioner,
		sender:      sender,
	}
}

// Create creates a project, its owner membership and one paymaster per chain.
// Paymaster provisioning is all-or-nothing: any failure rolls the project back.
func (u *ProjectUsecase) Create(ctx context.Context, ownerID string, input *entities.CreateProjectInput) (*entities.Project, error) {
	owner, err := u.userRepo.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !owner.EmailVerified {
		return nil, domainerrors.NewAppError(http.StatusForbidden, domainerrors.CodeEmailNotVerified,
			"verify your email before creating projects", domainerrors.ErrEmailNotVerified)
	}

	chains, err := normalizeChains(input.Chains)
	if err != nil {
		return nil, err
	}

	slug, err := u.uniqueSlug(ctx, input.Name)
	if err != nil {
		return nil, err
	}

	project := &entities.Project{
		ID:          utils.NewID(utils.PrefixProject),
		Name:        input.Name,
		Slug:        slug,
		Description: null.NewString(input.Description, input.Description != ""),
		Website:     null.NewString(input.Website, input.Website != ""),
		OwnerID:     ownerID,
		Chains:      chains,
		Settings: entities.ProjectSettings{
			PaymasterEnabled:   true,
			RateLimitPerMinute: entities.DefaultRateLimitPerMinute,
		},
		Status: entities.ProjectStatusActive,
	}
	if err := u.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}

	if err := u.memberRepo.Add(ctx, &entities.ProjectMember{
		ProjectID:  project.ID,
		UserID:     ownerID,
		Email:      owner.Email,
		Role:       entities.RoleOwner,
		InvitedBy:  ownerID,
		InvitedAt:  time.Now(),
		AcceptedAt: null.TimeFrom(time.Now()),
	}); err != nil {
		return nil, u.rollbackCreate(ctx, project.ID, err)
	}

	for _, chain := range chains {
		if _, err := u.provisioner.Provision(ctx, project.ID, chain); err != nil {
			return nil, u.rollbackCreate(ctx, project.ID, err)
		}
	}
	return project, nil
}

func (u *ProjectUsecase) rollbackCreate(ctx context.Context, projectID string, cause error) error {
	if err := u.projectRepo.SoftDelete(ctx, projectID); err != nil {
		logger.Error(ctx, "project rollback failed", zap.String("project_id", projectID), zap.Error(err))
	}
	return cause
}

// Get returns a project the user can read
func (u *ProjectUsecase) Get(ctx context.Context, userID, projectID string) (*entities.Project, error) {
	project, err := u.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := u.requireRole(ctx, project, userID, entities.PermProjectRead); err != nil {
		return nil, err
	}
	return project, nil
}

// List returns the projects the user owns or belongs to
func (u *ProjectUsecase) List(ctx context.Context, userID string) ([]*entities.Project, error) {
	return u.projectRepo.ListByUser(ctx, userID)
}

// Update applies settings changes; requires the admin role or better
func (u *ProjectUsecase) Update(ctx context.Context, userID, projectID string, input *entities.UpdateProjectInput) (*entities.Project, error) {
	project, err := u.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	role, err := u.roleOf(ctx, project, userID)
	if err != nil {
		return nil, err
	}
	if role != entities.RoleOwner && role != entities.RoleAdmin {
		return nil, domainerrors.Forbidden(domainerrors.CodeInsufficientPermissions, "admin role required")
	}

	if input.Name != "" {
		project.Name = input.Name
	}
	if input.Description != nil {
		project.Description = null.NewString(*input.Description, *input.Description != "")
	}
	if input.Website != nil {
		project.Website = null.NewString(*input.Website, *input.Website != "")
	}
	if input.WebhookURL != nil {
		project.Settings.WebhookURL = null.NewString(*input.WebhookURL, *input.WebhookURL != "")
	}
	if input.PaymasterEnabled != nil {
		project.Settings.PaymasterEnabled = *input.PaymasterEnabled
	}
	if input.RateLimitPerMinute != nil {
		rl := *input.RateLimitPerMinute
		if rl < entities.MinRateLimitPerMinute || rl > entities.MaxRateLimitPerMinute {
			return nil, domainerrors.BadRequest(fmt.Sprintf("rateLimitPerMinute must be in [%d, %d]",
				entities.MinRateLimitPerMinute, entities.MaxRateLimitPerMinute)).WithField("rateLimitPerMinute")
		}
		project.Settings.RateLimitPerMinute = rl
	}

	if err := u.projectRepo.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// Delete soft-deletes a project: api keys are revoked, paymasters frozen,
// history retained. Owner only.
func (u *ProjectUsecase) Delete(ctx context.Context, userID, projectID string) error {
	project, err := u.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	if _, err := u.requireRole(ctx, project, userID, entities.PermProjectDelete); err != nil {
		return err
	}

	if err := u.apiKeyRepo.RevokeAllForProject(ctx, projectID); err != nil {
		return err
	}
	if err := u.pmRepo.SetFrozen(ctx, projectID, true); err != nil {
		return err
	}
	return u.projectRepo.SoftDelete(ctx, projectID)
}

// InviteMember adds an existing user immediately; unknown addresses get a
// pending record and an invite email
func (u *ProjectUsecase) InviteMember(ctx context.Context, inviterID, projectID string, input *entities.InviteMemberInput) (*entities.ProjectMember, error) {
	project, err := u.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	role, err := u.roleOf(ctx, project, inviterID)
	if err != nil {
		return nil, err
	}
	if role != entities.RoleOwner && role != entities.RoleAdmin {
		return nil, domainerrors.Forbidden(domainerrors.CodeInsufficientPermissions, "admin role required to invite members")
	}
	if input.Role == entities.RoleOwner {
		return nil, domainerrors.BadRequest("the owner role cannot be granted by invite").WithField("role")
	}

	member := &entities.ProjectMember{
		ProjectID: projectID,
		Email:     strings.ToLower(input.Email),
		Role:      input.Role,
		InvitedBy: inviterID,
		InvitedAt: time.Now(),
	}

	invitee, err := u.userRepo.GetByEmail(ctx, member.Email)
	switch {
	case err == nil:
		member.UserID = invitee.ID
		member.AcceptedAt = null.TimeFrom(time.Now())
	case errors.Is(err, domainerrors.ErrNotFound):
		// Placeholder id until the invitee registers and accepts.
		member.UserID = utils.NewID("inv")
	default:
		return nil, err
	}

	if err := u.memberRepo.Add(ctx, member); err != nil {
		return nil, err
	}

	if !member.AcceptedAt.Valid {
		if err := u.sender.SendProjectInvite(ctx, member.Email, project.Name, member.UserID); err != nil {
			logger.Warn(ctx, "invite email failed", zap.String("project_id", projectID), zap.Error(err))
		}
	}
	return member, nil
}

// ListMembers returns project members; any role can read
func (u *ProjectUsecase) ListMembers(ctx context.Context, userID, projectID string) ([]*entities.ProjectMember, error) {
	project, err := u.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := u.requireRole(ctx, project, userID, entities.PermProjectRead); err != nil {
		return nil, err
	}
	return u.memberRepo.List(ctx, projectID)
}

// RemoveMember removes a membership; admin or better, owner cannot be removed
func (u *ProjectUsecase) RemoveMember(ctx context.Context, userID, projectID, memberUserID string) error {
	project, err := u.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	role, err := u.requireRole(ctx, project, userID, entities.PermProjectRead)
	if err != nil {
		return err
	}
	if role != entities.RoleOwner && role != entities.RoleAdmin && userID != memberUserID {
		return domainerrors.Forbidden(domainerrors.CodeInsufficientPermissions, "admin role required to remove members")
	}
	if memberUserID == project.OwnerID {
		return domainerrors.BadRequest("the project owner cannot be removed")
	}
	return u.memberRepo.Remove(ctx, projectID, memberUserID)
}

// RoleOf resolves a user's effective role on a project
func (u *ProjectUsecase) RoleOf(ctx context.Context, project *entities.Project, userID string) (entities.ProjectRole, error) {
	return u.roleOf(ctx, project, userID)
}

func (u *ProjectUsecase) roleOf(ctx context.Context, project *entities.Project, userID string) (entities.ProjectRole, error) {
	if project.OwnerID == userID {
		return entities.RoleOwner, nil
	}
	member, err := u.memberRepo.Get(ctx, project.ID, userID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return "", domainerrors.Forbidden(domainerrors.CodeProjectMismatch, "you are not a member of this project")
		}
		return "", err
	}
	if !member.AcceptedAt.Valid {
		return "", domainerrors.Forbidden(domainerrors.CodeProjectMismatch, "invitation not yet accepted")
	}
	return member.Role, nil
}

func (u *ProjectUsecase) requireRole(ctx context.Context, project *entities.Project, userID, perm string) (entities.ProjectRole, error) {
	role, err := u.roleOf(ctx, project, userID)
	if err != nil {
		return "", err
	}
	if !role.CanPerform(perm) {
		return "", domainerrors.Forbidden(domainerrors.CodeInsufficientPermissions, "your role does not allow this operation")
	}
	return role, nil
}

// uniqueSlug derives the slug from the name and appends -2, -3, ... on clashes
func (u *ProjectUsecase) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := slugify(name)
	if base == "" {
		return "", domainerrors.BadRequest("project name yields an empty slug").WithField("name")
	}

	slug := base
	for i := 2; i <= maxSlugAttempts; i++ {
		exists, err := u.projectRepo.SlugExists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
	return "", domainerrors.Conflict("could not find a free slug for this name")
}

func slugify(name string) string {
	s := slugStrip.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

func normalizeChains(chains []entities.Chain) ([]entities.Chain, error) {
	if len(chains) == 0 {
		return nil, domainerrors.BadRequest("at least one chain is required").WithField("chains")
	}
	seen := make(map[entities.Chain]struct{}, len(chains))
	out := make([]entities.Chain, 0, len(chains))
	for _, c := range chains {
		if !entities.IsSupportedChain(c) {
			return nil, domainerrors.BadRequest(fmt.Sprintf("unsupported chain %q", c)).WithField("chains")
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}
