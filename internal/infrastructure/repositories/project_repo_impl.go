package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/infrastructure/models"
)

// ProjectRepository implements project data operations
type ProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create creates a new project
func (r *ProjectRepository) Create(ctx context.Context, project *entities.Project) error {
	m, err := projectToModel(project)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// GetByID gets a project by ID
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*entities.Project, error) {
	var m models.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return projectToEntity(&m)
}

// GetBySlug gets a project by slug
func (r *ProjectRepository) GetBySlug(ctx context.Context, slug string) (*entities.Project, error) {
	var m models.Project
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return projectToEntity(&m)
}

// SlugExists reports whether a slug is already taken, soft-deleted rows included
func (r *ProjectRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.Project{}).
		Where("slug = ?", slug).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByUser lists projects the user owns or is a member of, newest first
func (r *ProjectRepository) ListByUser(ctx context.Context, userID string) ([]*entities.Project, error) {
	var ms []models.Project
	err := r.db.WithContext(ctx).
		Where("owner_id = ? OR id IN (?)", userID,
			r.db.Model(&models.ProjectMember{}).Select("project_id").Where("user_id = ?", userID)).
		Order("created_at DESC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}

	projects := make([]*entities.Project, 0, len(ms))
	for i := range ms {
		p, err := projectToEntity(&ms[i])
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// Update persists mutable project fields
func (r *ProjectRepository) Update(ctx context.Context, project *entities.Project) error {
	chains, err := json.Marshal(project.Chains)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"name":                  project.Name,
		"description":           project.Description.Ptr(),
		"website":               project.Website.Ptr(),
		"chains":                string(chains),
		"paymaster_enabled":     project.Settings.PaymasterEnabled,
		"webhook_url":           project.Settings.WebhookURL.Ptr(),
		"rate_limit_per_minute": project.Settings.RateLimitPerMinute,
		"status":                string(project.Status),
		"updated_at":            time.Now(),
	}

	result := r.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", project.ID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// SoftDelete marks a project deleted and hides it from normal queries
func (r *ProjectRepository) SoftDelete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Project{}).Where("id = ?", id).
			Update("status", string(entities.ProjectStatusDeleted))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domainerrors.ErrNotFound
		}
		return tx.Delete(&models.Project{}, "id = ?", id).Error
	})
}

func projectToModel(p *entities.Project) (*models.Project, error) {
	chains, err := json.Marshal(p.Chains)
	if err != nil {
		return nil, err
	}
	return &models.Project{
		ID:                 p.ID,
		Name:               p.Name,
		Slug:               p.Slug,
		Description:        p.Description.Ptr(),
		Website:            p.Website.Ptr(),
		OwnerID:            p.OwnerID,
		Chains:             string(chains),
		PaymasterEnabled:   p.Settings.PaymasterEnabled,
		WebhookURL:         p.Settings.WebhookURL.Ptr(),
		RateLimitPerMinute: p.Settings.RateLimitPerMinute,
		Status:             string(p.Status),
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}, nil
}

func projectToEntity(m *models.Project) (*entities.Project, error) {
	var chains []entities.Chain
	if m.Chains != "" {
		if err := json.Unmarshal([]byte(m.Chains), &chains); err != nil {
			return nil, err
		}
	}
	return &entities.Project{
		ID:          m.ID,
		Name:        m.Name,
		Slug:        m.Slug,
		Description: null.StringFromPtr(m.Description),
		Website:     null.StringFromPtr(m.Website),
		OwnerID:     m.OwnerID,
		Chains:      chains,
		Settings: entities.ProjectSettings{
			PaymasterEnabled:   m.PaymasterEnabled,
			WebhookURL:         null.StringFromPtr(m.WebhookURL),
			RateLimitPerMinute: m.RateLimitPerMinute,
		},
		Status:    entities.ProjectStatus(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

// ProjectMemberRepository implements membership operations
type ProjectMemberRepository struct {
	db *gorm.DB
}

// NewProjectMemberRepository creates a new project member repository
func NewProjectMemberRepository(db *gorm.DB) *ProjectMemberRepository {
	return &ProjectMemberRepository{db: db}
}

// Add adds a member to a project
func (r *ProjectMemberRepository) Add(ctx context.Context, member *entities.ProjectMember) error {
	m := &models.ProjectMember{
		ProjectID:  member.ProjectID,
		UserID:     member.UserID,
		Email:      member.Email,
		Role:       string(member.Role),
		InvitedBy:  member.InvitedBy,
		InvitedAt:  member.InvitedAt,
		AcceptedAt: member.AcceptedAt.Ptr(),
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// Get gets a single membership
func (r *ProjectMemberRepository) Get(ctx context.Context, projectID, userID string) (*entities.ProjectMember, error) {
	var m models.ProjectMember
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return memberToEntity(&m), nil
}

// List lists all members of a project
func (r *ProjectMemberRepository) List(ctx context.Context, projectID string) ([]*entities.ProjectMember, error) {
	var ms []models.ProjectMember
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("invited_at ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	members := make([]*entities.ProjectMember, 0, len(ms))
	for i := range ms {
		members = append(members, memberToEntity(&ms[i]))
	}
	return members, nil
}

// UpdateRole changes a member's role
func (r *ProjectMemberRepository) UpdateRole(ctx context.Context, projectID, userID string, role entities.ProjectRole) error {
	result := r.db.WithContext(ctx).Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Update("role", string(role))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// Remove removes a member from a project
func (r *ProjectMemberRepository) Remove(ctx context.Context, projectID, userID string) error {
	result := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&models.ProjectMember{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func memberToEntity(m *models.ProjectMember) *entities.ProjectMember {
	return &entities.ProjectMember{
		ProjectID:  m.ProjectID,
		UserID:     m.UserID,
		Email:      m.Email,
		Role:       entities.ProjectRole(m.Role),
		InvitedBy:  m.InvitedBy,
		InvitedAt:  m.InvitedAt,
		AcceptedAt: null.TimeFromPtr(m.AcceptedAt),
	}
}
