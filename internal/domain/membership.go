package domain

import "time"

// MemberRole is a user's role within one dataset.
type MemberRole string

const (
	MemberOwner   MemberRole = "owner"
	MemberLabeler MemberRole = "labeler"
)

// Membership grants a user access to a dataset.
type Membership struct {
	DatasetID string     `json:"dataset_id"`
	UserID    string     `json:"user_id"`
	Role      MemberRole `json:"role"`
	JoinedAt  time.Time  `json:"joined_at"`
}

// MemberProgress pairs a member with their progress, for owner dashboards.
type MemberProgress struct {
	Membership
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Progress    Progress `json:"progress"`
}
