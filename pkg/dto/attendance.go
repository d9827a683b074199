package dto

// AttendanceEvent is one recognition record as served over the API,
// the WebSocket feed and NATS.
type AttendanceEvent struct {
	Timestamp   string  `json:"timestamp"`
	DateLabel   string  `json:"date_label"`
	Group       string  `json:"group"`
	IdentityID  string  `json:"identity_id"`
	Name        string  `json:"name"`
	Similarity  float64 `json:"similarity_score"`
	SnapshotKey string  `json:"snapshot_key,omitempty"`
}

type AttendanceEventListResponse struct {
	Events []AttendanceEvent `json:"events"`
	Total  int               `json:"total"`
}

type StartAttendanceRequest struct {
	Group string `json:"group"`
}

// StatusResponse reports the service mode and, when relevant, the
// active group or enrollment progress.
type StatusResponse struct {
	Mode          string              `json:"mode"` // idle, attendance, enrolling
	Group         string              `json:"group,omitempty"`
	IdentityCount int                 `json:"identity_count"`
	Enrollment    *EnrollmentProgress `json:"enrollment,omitempty"`
}

// WSMessage is one real-time feed message.
type WSMessage struct {
	Type  string           `json:"type"` // attendance_recorded, attendance_suppressed, unknown_face, enrollment_progress, enrollment_done, mode_changed
	Group string           `json:"group,omitempty"`
	Event *AttendanceEvent `json:"event,omitempty"`
	Data  interface{}      `json:"data,omitempty"`
}
