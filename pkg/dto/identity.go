package dto

type IdentityResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Group       string `json:"group"`
	SampleCount int    `json:"sample_count"`
}

type IdentityListResponse struct {
	Identities []IdentityResponse `json:"identities"`
	Total      int                `json:"total"`
}

type StartEnrollmentRequest struct {
	IdentityID string `json:"identity_id" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Group      string `json:"group"`
}

// EnrollmentProgress is the live state of the single enrollment session.
type EnrollmentProgress struct {
	SessionID  string `json:"session_id"`
	IdentityID string `json:"identity_id"`
	Name       string `json:"name"`
	Group      string `json:"group"`
	Collected  int    `json:"collected"`
	Target     int    `json:"target"`
	State      string `json:"state"` // collecting, committing, committed, aborted
}

type CreateGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

type GroupListResponse struct {
	Groups       []string `json:"groups"`
	DefaultGroup string   `json:"default_group"`
}
