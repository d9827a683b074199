package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/attend/internal/config"
	"github.com/your-org/attend/internal/observability"
	"github.com/your-org/attend/internal/recognition"
	"github.com/your-org/attend/internal/store"
	"github.com/your-org/attend/internal/vision"
	"github.com/your-org/attend/pkg/dto"
)

// Mode is the single camera's operating mode. The camera serves either
// attendance or enrollment at any moment, never both.
type Mode int

const (
	ModeIdle Mode = iota
	ModeAttendance
	ModeEnrolling
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeAttendance:
		return "attendance"
	case ModeEnrolling:
		return "enrolling"
	}
	return "unknown"
}

var (
	// ErrBusy: the requested mode change conflicts with the active mode.
	ErrBusy = errors.New("camera busy")

	// ErrNoIdentities: attendance cannot start against an empty gallery.
	ErrNoIdentities = errors.New("no enrolled identities")

	// ErrNotEnrolling: no enrollment session is active.
	ErrNotEnrolling = errors.New("no active enrollment")

	// ErrGroupProtected: the default group and the last remaining group
	// cannot be deleted.
	ErrGroupProtected = errors.New("group protected")

	// ErrGroupInUse: a group with enrolled identities cannot be deleted.
	ErrGroupInUse = errors.New("group has enrolled identities")
)

// Extractor is the slice of the vision pipeline the service drives.
type Extractor interface {
	ExtractBest(img image.Image, minConfidence float64) (vision.Extraction, error)
	ExtractAll(img image.Image, minConfidence float64) ([]vision.Extraction, error)
}

// Notifier fans a message out to connected WebSocket clients.
type Notifier interface {
	Broadcast(msg dto.WSMessage)
}

// EventPublisher pushes recorded events to the message bus.
type EventPublisher interface {
	PublishAttendance(ctx context.Context, group string, data interface{}) error
}

// SnapshotSink archives face crops of recorded events.
type SnapshotSink interface {
	PutSnapshot(ctx context.Context, key string, jpegData []byte) error
}

// Service owns all recognition state and serializes every mutation
// behind one mutex. Frames enter through ProcessFrame from the capture
// goroutine; control operations enter from HTTP handlers. Nothing else
// touches the stores.
type Service struct {
	mu sync.Mutex

	faces    *store.FaceStore
	log      *store.AttendanceLog
	settings *config.SettingsStore
	ledger   *recognition.CooldownLedger
	extract  Extractor

	// Optional collaborators, nil when not configured.
	notifier  Notifier
	publisher EventPublisher
	snapshots SnapshotSink

	attendLimiter *recognition.Limiter
	enrollLimiter *recognition.Limiter

	mode    Mode
	group   string // active attendance group
	session *recognition.Session

	now func() time.Time
}

// New assembles the service. The cooldown ledger must already be
// rebuilt from the log by the caller; clean separation keeps startup
// failures out of the hot path.
func New(faces *store.FaceStore, log *store.AttendanceLog, settings *config.SettingsStore,
	ledger *recognition.CooldownLedger, extract Extractor) *Service {

	interval := settings.Get().CaptureInterval()
	return &Service{
		faces:         faces,
		log:           log,
		settings:      settings,
		ledger:        ledger,
		extract:       extract,
		attendLimiter: recognition.NewLimiter(interval),
		enrollLimiter: recognition.NewLimiter(interval),
		mode:          ModeIdle,
		now:           time.Now,
	}
}

// SetNotifier wires the WebSocket hub.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// SetPublisher wires the NATS publisher.
func (s *Service) SetPublisher(p EventPublisher) { s.publisher = p }

// SetSnapshots wires the object-store archive.
func (s *Service) SetSnapshots(ss SnapshotSink) { s.snapshots = ss }

// Status reports the current mode for the API.
func (s *Service) Status() dto.StatusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := dto.StatusResponse{
		Mode:          s.mode.String(),
		IdentityCount: len(s.faces.LoadAll()),
	}
	if s.mode == ModeAttendance {
		resp.Group = s.group
	}
	if s.session != nil {
		p := s.progressLocked()
		resp.Enrollment = &p
	}
	return resp
}

// StartAttendance switches the camera to attendance mode for the given
// group. Refused while enrolling, and refused against an empty gallery
// since every frame would be wasted inference.
func (s *Service) StartAttendance(group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == ModeEnrolling {
		return fmt.Errorf("start attendance: enrollment in progress: %w", ErrBusy)
	}

	st := s.settings.Get()
	if group == "" {
		group = st.DefaultGroup
	}
	if !st.HasGroup(group) {
		return fmt.Errorf("start attendance: group %q: %w", group, recognition.ErrInvalidGroup)
	}
	if len(s.faces.LoadAll()) == 0 {
		return fmt.Errorf("start attendance: %w", ErrNoIdentities)
	}

	s.mode = ModeAttendance
	s.group = group
	s.attendLimiter.SetInterval(st.CaptureInterval())
	s.attendLimiter.Reset()

	slog.Info("attendance started", "group", group)
	s.broadcast(dto.WSMessage{Type: "mode_changed", Group: group, Data: s.mode.String()})
	return nil
}

// StopAttendance returns the camera to idle. Safe to call in any mode.
func (s *Service) StopAttendance() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != ModeAttendance {
		return
	}
	s.mode = ModeIdle
	s.group = ""
	slog.Info("attendance stopped")
	s.broadcast(dto.WSMessage{Type: "mode_changed", Data: s.mode.String()})
}

// StartEnrollment opens a session for a new identity and switches the
// camera to enrollment mode. Only one session exists at a time.
func (s *Service) StartEnrollment(identityID, name, group string) (dto.EnrollmentProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != ModeIdle {
		return dto.EnrollmentProgress{}, fmt.Errorf("start enrollment: mode %s: %w", s.mode, ErrBusy)
	}

	st := s.settings.Get()
	if group == "" {
		group = st.DefaultGroup
	}

	sess, err := recognition.NewSession(s.faces, identityID, name, group, st.EnrollmentTargetSamples, st.Groups)
	if err != nil {
		return dto.EnrollmentProgress{}, fmt.Errorf("start enrollment: %w", err)
	}

	s.session = sess
	s.mode = ModeEnrolling
	s.enrollLimiter.SetInterval(st.CaptureInterval())
	s.enrollLimiter.Reset()

	slog.Info("enrollment started", "identity", identityID, "group", group, "target", sess.Target)
	p := s.progressLocked()
	s.broadcast(dto.WSMessage{Type: "mode_changed", Data: s.mode.String()})
	return p, nil
}

// StopEnrollment ends collection early. The session commits when it
// holds at least the minimum sample count, otherwise it aborts and the
// insufficient-samples error is returned.
func (s *Service) StopEnrollment() (dto.EnrollmentProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return dto.EnrollmentProgress{}, ErrNotEnrolling
	}

	err := s.session.Stop()
	p := s.progressLocked()
	s.finishEnrollmentLocked(err)
	return p, err
}

// CancelEnrollment discards the session with no store mutation.
func (s *Service) CancelEnrollment() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return ErrNotEnrolling
	}
	s.session.Cancel()
	s.finishEnrollmentLocked(nil)
	slog.Info("enrollment cancelled")
	return nil
}

// EnrollmentStatus returns the live session progress.
func (s *Service) EnrollmentStatus() (dto.EnrollmentProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return dto.EnrollmentProgress{}, ErrNotEnrolling
	}
	return s.progressLocked(), nil
}

func (s *Service) progressLocked() dto.EnrollmentProgress {
	collected, target := s.session.Progress()
	return dto.EnrollmentProgress{
		SessionID:  s.session.ID.String(),
		IdentityID: s.session.IdentityID,
		Name:       s.session.Name,
		Group:      s.session.Group,
		Collected:  collected,
		Target:     target,
		State:      s.session.State().String(),
	}
}

func (s *Service) finishEnrollmentLocked(err error) {
	state := s.session.State()
	p := s.progressLocked()
	s.session = nil
	s.mode = ModeIdle

	msg := dto.WSMessage{Type: "enrollment_done", Data: p}
	if err != nil {
		slog.Warn("enrollment finished", "identity", p.IdentityID, "state", state, "error", err)
	} else {
		slog.Info("enrollment finished", "identity", p.IdentityID, "state", state)
	}
	s.broadcast(msg)
}

// ProcessFrame is the capture goroutine's entry point. Frames arriving
// faster than the capture interval, or while idle, are dropped cheaply
// before any inference runs.
func (s *Service) ProcessFrame(ctx context.Context, img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	switch s.mode {
	case ModeAttendance:
		if !s.attendLimiter.Allow(now) {
			return
		}
		s.attendLimiter.Mark(now)
		s.processAttendanceLocked(ctx, img, now)
	case ModeEnrolling:
		if !s.enrollLimiter.Allow(now) {
			return
		}
		s.enrollLimiter.Mark(now)
		s.processEnrollmentLocked(img)
	}
}

func (s *Service) processAttendanceLocked(ctx context.Context, img image.Image, now time.Time) {
	observability.FramesProcessed.Inc()
	st := s.settings.Get()

	extractions, err := s.extract.ExtractAll(img, st.DetectionConfidenceThreshold)
	if err != nil {
		slog.Error("frame extraction failed", "error", err)
		return
	}

	var candidates []recognition.Candidate
	for _, ex := range extractions {
		if ex.Outcome != vision.OutcomeExtracted {
			continue
		}
		observability.FacesDetected.Inc()

		if candidates == nil {
			candidates = s.candidatesLocked()
		}
		match := recognition.BestMatch(ex.Embedding, candidates, recognition.CosineSimilarity, st.SimilarityThreshold)
		if !match.Found {
			observability.FacesUnknown.Inc()
			s.broadcast(dto.WSMessage{Type: "unknown_face", Group: s.group, Data: match.BestScore})
			continue
		}
		observability.FacesMatched.Inc()

		if s.ledger.IsSuppressed(match.ID, now, st.CooldownWindow()) {
			observability.AttendanceSuppressed.WithLabelValues(s.group).Inc()
			s.broadcast(dto.WSMessage{Type: "attendance_suppressed", Group: s.group, Data: match.ID})
			continue
		}

		meta, ok := s.faces.Meta(match.ID)
		if !ok {
			continue
		}

		ev := store.AttendanceEvent{
			Timestamp:  now,
			DateLabel:  store.DateLabel(now),
			Group:      s.group,
			IdentityID: match.ID,
			Name:       meta.Name,
			Similarity: match.BestScore,
		}
		if err := s.log.Append(ev); err != nil {
			// Not recorded means not suppressed: the next sighting
			// retries instead of silently losing the presence.
			slog.Error("append attendance", "identity", match.ID, "error", err)
			continue
		}
		s.ledger.Record(match.ID, now)
		observability.AttendanceRecorded.WithLabelValues(s.group).Inc()

		out := dto.AttendanceEvent{
			Timestamp:  ev.Timestamp.Format("2006-01-02 15:04:05"),
			DateLabel:  ev.DateLabel,
			Group:      ev.Group,
			IdentityID: ev.IdentityID,
			Name:       ev.Name,
			Similarity: ev.Similarity,
		}
		if s.snapshots != nil {
			out.SnapshotKey = s.archiveSnapshot(ctx, img, ex, ev)
		}
		slog.Info("attendance recorded", "identity", ev.IdentityID, "name", ev.Name,
			"group", ev.Group, "similarity", ev.Similarity)
		s.broadcast(dto.WSMessage{Type: "attendance_recorded", Group: ev.Group, Event: &out})
		if s.publisher != nil {
			if err := s.publisher.PublishAttendance(ctx, ev.Group, out); err != nil {
				slog.Warn("publish attendance", "error", err)
			}
		}
	}
}

func (s *Service) processEnrollmentLocked(img image.Image) {
	observability.FramesProcessed.Inc()
	st := s.settings.Get()

	ex, err := s.extract.ExtractBest(img, st.DetectionConfidenceThreshold)
	if err != nil {
		slog.Error("frame extraction failed", "error", err)
		return
	}
	if ex.Outcome != vision.OutcomeExtracted {
		s.broadcast(dto.WSMessage{Type: "enrollment_progress", Data: ex.Outcome.String()})
		return
	}
	observability.FacesDetected.Inc()

	done, err := s.session.AddSample(ex.Embedding)
	if err != nil {
		s.finishEnrollmentLocked(err)
		return
	}
	observability.EnrollmentSamples.Inc()

	if done {
		s.finishEnrollmentLocked(nil)
		return
	}
	s.broadcast(dto.WSMessage{Type: "enrollment_progress", Data: s.progressLocked()})
}

// candidatesLocked snapshots the full gallery for matching. Loaded once
// per frame, not per face.
func (s *Service) candidatesLocked() []recognition.Candidate {
	infos := s.faces.LoadAll()
	candidates := make([]recognition.Candidate, 0, len(infos))
	for _, info := range infos {
		embs, err := s.faces.LoadEmbeddings(info.ID)
		if err != nil || len(embs) == 0 {
			continue
		}
		candidates = append(candidates, recognition.Candidate{ID: info.ID, Embeddings: embs})
	}
	return candidates
}

func (s *Service) archiveSnapshot(ctx context.Context, img image.Image, ex vision.Extraction, ev store.AttendanceEvent) string {
	data := vision.CropJPEG(img, ex.BBox, 85)
	if data == nil {
		return ""
	}
	key := store.SnapshotKey(ev.Group, ev.IdentityID, ev.Timestamp)
	if err := s.snapshots.PutSnapshot(ctx, key, data); err != nil {
		slog.Warn("archive snapshot", "key", key, "error", err)
		return ""
	}
	return key
}

// Identities lists the enrolled gallery.
func (s *Service) Identities() []store.IdentityInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faces.LoadAll()
}

// DeleteIdentity removes an identity everywhere: gallery, historical
// log rows and the cooldown ledger. Idempotent.
func (s *Service) DeleteIdentity(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil && s.session.IdentityID == id {
		return fmt.Errorf("delete identity %s: enrollment in progress: %w", id, ErrBusy)
	}
	if err := s.faces.DeleteIdentity(id); err != nil {
		return fmt.Errorf("delete identity %s: %w", id, err)
	}
	if err := s.log.PurgeIdentity(id); err != nil {
		return fmt.Errorf("purge identity %s: %w", id, err)
	}
	s.ledger.Forget(id)
	slog.Info("identity deleted", "identity", id)
	return nil
}

// Events returns the log rows for one (group, day) partition.
func (s *Service) Events(group, dateLabel string) ([]store.AttendanceEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Events(group, dateLabel)
}

// Partitions lists the existing log partition files.
func (s *Service) Partitions() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Partitions()
}

// Settings returns the current runtime settings.
func (s *Service) Settings() config.Settings {
	return s.settings.Get()
}

// UpdateSettings persists new runtime settings and repoints the frame
// pacing. The cooldown window needs no propagation: the ledger
// reinterprets it on every check, so shrinking the window immediately
// un-suppresses old sightings.
func (s *Service) UpdateSettings(in config.Settings) (config.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.settings.Update(in)
	if err != nil {
		return st, err
	}
	s.attendLimiter.SetInterval(st.CaptureInterval())
	s.enrollLimiter.SetInterval(st.CaptureInterval())
	slog.Info("settings updated",
		"similarity_threshold", st.SimilarityThreshold,
		"cooldown_hours", st.CooldownHours,
		"capture_interval_seconds", st.CaptureIntervalSeconds)
	return st, nil
}

// AddGroup registers a new group label.
func (s *Service) AddGroup(name string) (config.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.settings.Get()
	if name == "" {
		return st, fmt.Errorf("add group: %w", recognition.ErrInvalidGroup)
	}
	if st.HasGroup(name) {
		return st, fmt.Errorf("add group %q: %w", name, store.ErrAlreadyExists)
	}
	st.Groups = append(st.Groups, name)
	return s.settings.Update(st)
}

// DeleteGroup removes a group label. The default group, the last
// remaining group, and groups that still hold enrolled identities are
// protected.
func (s *Service) DeleteGroup(name string) (config.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.settings.Get()
	if !st.HasGroup(name) {
		return st, fmt.Errorf("delete group %q: %w", name, store.ErrNotFound)
	}
	if name == st.DefaultGroup || len(st.Groups) == 1 {
		return st, fmt.Errorf("delete group %q: %w", name, ErrGroupProtected)
	}
	for _, info := range s.faces.LoadAll() {
		if info.Group == name {
			return st, fmt.Errorf("delete group %q: %w", name, ErrGroupInUse)
		}
	}

	groups := st.Groups[:0]
	for _, g := range st.Groups {
		if g != name {
			groups = append(groups, g)
		}
	}
	st.Groups = groups
	return s.settings.Update(st)
}

// CooldownEntries exposes the ledger for the API.
func (s *Service) CooldownEntries() map[string]time.Time {
	return s.ledger.Entries()
}

func (s *Service) broadcast(msg dto.WSMessage) {
	if s.notifier != nil {
		s.notifier.Broadcast(msg)
	}
}
