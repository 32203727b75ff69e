package repositories

import (
	"context"

	"nexuspay.backend/internal/domain/entities"
)

// ProjectRepository defines project data operations
type ProjectRepository interface {
	Create(ctx context.Context, project *entities.Project) error
	GetByID(ctx context.Context, id string) (*entities.Project, error)
	GetBySlug(ctx context.Context, slug string) (*entities.Project, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]*entities.Project, error)
	Update(ctx context.Context, project *entities.Project) error
	SoftDelete(ctx context.Context, id string) error
}

// ProjectMemberRepository defines membership operations
type ProjectMemberRepository interface {
	Add(ctx context.Context, member *entities.ProjectMember) error
	Get(ctx context.Context, projectID, userID string) (*entities.ProjectMember, error)
	List(ctx context.Context, projectID string) ([]*entities.ProjectMember, error)
	UpdateRole(ctx context.Context, projectID, userID string, role entities.ProjectRole) error
	Remove(ctx context.Context, projectID, userID string) error
}
