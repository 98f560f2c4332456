package service

import "github.com/carddex/carddex-api/internal/models"

// ApprovalPolicy is the single source of truth for which roles bypass the
// review queue. Submissions from these roles are applied at submit time with
// the submitter recorded as reviewer.
type ApprovalPolicy struct {
	autoApprove map[models.UserRole]struct{}
}

// NewApprovalPolicy builds the policy from configured role names. An empty
// list falls back to the admin hierarchy.
func NewApprovalPolicy(roles []string) *ApprovalPolicy {
	if len(roles) == 0 {
		roles = []string{
			string(models.RoleSuperAdmin),
			string(models.RoleAdmin),
			string(models.RoleModerator),
		}
	}
	set := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		set[models.UserRole(role)] = struct{}{}
	}
	return &ApprovalPolicy{autoApprove: set}
}

// AutoApprove reports whether submissions from the role skip peer review.
func (p *ApprovalPolicy) AutoApprove(role models.UserRole) bool {
	_, ok := p.autoApprove[role]
	return ok
}

// CanReview reports whether the role may approve or reject submissions.
// The trusted set doubles as the reviewer set.
func (p *ApprovalPolicy) CanReview(role models.UserRole) bool {
	return p.AutoApprove(role)
}
