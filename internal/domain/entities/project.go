package entities

import (
	"regexp"
	"time"

	"github.com/volatiletech/null/v8"
)

// ProjectStatus represents project lifecycle state
type ProjectStatus string

const (
	ProjectStatusActive  ProjectStatus = "active"
	ProjectStatusDeleted ProjectStatus = "deleted"
)

// ProjectRole is a member's role within a project
type ProjectRole string

const (
	RoleOwner     ProjectRole = "owner"
	RoleAdmin     ProjectRole = "admin"
	RoleDeveloper ProjectRole = "developer"
	RoleViewer    ProjectRole = "viewer"
)

// SlugPattern is the shape every project slug must match
var SlugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ProjectSettings holds per-project tunables
type ProjectSettings struct {
	PaymasterEnabled   bool        `json:"paymasterEnabled"`
	WebhookURL         null.String `json:"webhookUrl,omitempty"`
	RateLimitPerMinute int         `json:"rateLimitPerMinute"`
}

const (
	MinRateLimitPerMinute     = 100
	MaxRateLimitPerMinute     = 10000
	DefaultRateLimitPerMinute = 1000
)

// Project represents a tenant workspace
type Project struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description null.String     `json:"description,omitempty"`
	Website     null.String     `json:"website,omitempty"`
	OwnerID     string          `json:"ownerId"`
	Chains      []Chain         `json:"chains"`
	Settings    ProjectSettings `json:"settings"`
	Status      ProjectStatus   `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ProjectMember links a user to a project with a role
type ProjectMember struct {
	ProjectID  string      `json:"projectId"`
	UserID     string      `json:"userId"`
	Email      string      `json:"email"`
	Role       ProjectRole `json:"role"`
	InvitedBy  string      `json:"invitedBy"`
	InvitedAt  time.Time   `json:"invitedAt"`
	AcceptedAt null.Time   `json:"acceptedAt,omitempty"`
}

// CreateProjectInput represents project creation input
type CreateProjectInput struct {
	Name        string  `json:"name" binding:"required,min=2,max=100"`
	Description string  `json:"description,omitempty"`
	Website     string  `json:"website,omitempty"`
	Chains      []Chain `json:"chains" binding:"required,min=1"`
}

// UpdateProjectInput represents project update input
type UpdateProjectInput struct {
	Name               string  `json:"name,omitempty"`
	Description        *string `json:"description,omitempty"`
	Website            *string `json:"website,omitempty"`
	WebhookURL         *string `json:"webhookUrl,omitempty"`
	PaymasterEnabled   *bool   `json:"paymasterEnabled,omitempty"`
	RateLimitPerMinute *int    `json:"rateLimitPerMinute,omitempty"`
}

// InviteMemberInput represents a member invitation
type InviteMemberInput struct {
	Email string      `json:"email" binding:"required,email"`
	Role  ProjectRole `json:"role" binding:"required"`
}

// CanPerform implements the role matrix: owner = all; admin = all except
// delete-project and transfer-ownership; developer = read + create api keys +
// create/deploy wallets; viewer = read-only.
func (r ProjectRole) CanPerform(perm string) bool {
	switch r {
	case RoleOwner:
		return true
	case RoleAdmin:
		return perm != PermProjectDelete && perm != PermProjectTransfer
	case RoleDeveloper:
		switch perm {
		case PermWalletsCreate, PermWalletsDeploy, PermWalletsRead,
			PermKeysCreate, PermAnalyticsRead, PermProjectRead, PermPaymasterRead:
			return true
		}
		return false
	case RoleViewer:
		switch perm {
		case PermWalletsRead, PermAnalyticsRead, PermProjectRead, PermPaymasterRead:
			return true
		}
		return false
	}
	return false
}
