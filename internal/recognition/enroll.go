package recognition

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/attend/internal/store"
)

// MinEnrollSamples is the enforced floor for the enrollment target:
// a session never commits with fewer samples regardless of the
// configured target.
const MinEnrollSamples = 5

var (
	// ErrDuplicateIdentity is returned when enrollment targets an id
	// that already exists in the identity store.
	ErrDuplicateIdentity = errors.New("identity already enrolled")

	// ErrInvalidGroup is returned when the enrollment group is empty or
	// not among the known groups.
	ErrInvalidGroup = errors.New("unknown group")

	// ErrInsufficientSamples is returned when a session is stopped below
	// the minimum sample count.
	ErrInsufficientSamples = errors.New("not enough samples")

	// ErrSessionClosed is returned when samples are offered to a session
	// that already committed or aborted.
	ErrSessionClosed = errors.New("enrollment session closed")
)

// SessionState tracks the enrollment state machine:
// Collecting → Committing → {Committed, Aborted}.
type SessionState int

const (
	StateCollecting SessionState = iota
	StateCommitting
	StateCommitted
	StateAborted
)

func (s SessionState) String() string {
	switch s {
	case StateCollecting:
		return "collecting"
	case StateCommitting:
		return "committing"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// IdentityWriter is the slice of the identity store a session commits
// through. DeleteIdentity backs out a half-written commit.
type IdentityWriter interface {
	Has(id string) bool
	CreateIdentity(id, name, group string) error
	AppendEmbedding(id string, vec []float32) error
	DeleteIdentity(id string) error
}

// Session accumulates quality-filtered embedding samples for one new
// identity and commits them atomically once the target is reached. One
// session is active at a time; it lives only for the duration of an
// operator-initiated enrollment.
type Session struct {
	ID         uuid.UUID
	IdentityID string
	Name       string
	Group      string
	Target     int

	writer  IdentityWriter
	samples [][]float32
	state   SessionState
}

// NewSession validates the enrollment preconditions and opens a
// collecting session. target is floored at MinEnrollSamples.
func NewSession(writer IdentityWriter, identityID, name, group string, target int, knownGroups []string) (*Session, error) {
	if identityID == "" {
		return nil, fmt.Errorf("new session: empty identity id")
	}
	if name == "" {
		return nil, fmt.Errorf("new session: empty name")
	}
	valid := false
	for _, g := range knownGroups {
		if g == group {
			valid = true
			break
		}
	}
	if group == "" || !valid {
		return nil, fmt.Errorf("new session %s: group %q: %w", identityID, group, ErrInvalidGroup)
	}
	if writer.Has(identityID) {
		return nil, fmt.Errorf("new session %s: %w", identityID, ErrDuplicateIdentity)
	}
	if target < MinEnrollSamples {
		target = MinEnrollSamples
	}

	return &Session{
		ID:         uuid.New(),
		IdentityID: identityID,
		Name:       name,
		Group:      group,
		Target:     target,
		writer:     writer,
		state:      StateCollecting,
	}, nil
}

// State returns the session's current state.
func (s *Session) State() SessionState { return s.state }

// Progress returns collected and target sample counts.
func (s *Session) Progress() (collected, target int) {
	return len(s.samples), s.Target
}

// AddSample appends one accepted sample. When the target count is
// reached the session commits automatically; done is true once the
// session left Collecting.
func (s *Session) AddSample(vec []float32) (done bool, err error) {
	if s.state != StateCollecting {
		return true, ErrSessionClosed
	}

	cp := make([]float32, len(vec))
	copy(cp, vec)
	s.samples = append(s.samples, cp)

	if len(s.samples) >= s.Target {
		return true, s.commit()
	}
	return false, nil
}

// Stop ends collection early. With at least the minimum sample count the
// session commits; below it the session aborts with no store mutation.
func (s *Session) Stop() error {
	if s.state != StateCollecting {
		return ErrSessionClosed
	}
	if len(s.samples) < MinEnrollSamples {
		s.state = StateAborted
		return fmt.Errorf("stop session %s: have %d, need %d: %w",
			s.IdentityID, len(s.samples), MinEnrollSamples, ErrInsufficientSamples)
	}
	return s.commit()
}

// Cancel discards the session with no side effects.
func (s *Session) Cancel() {
	if s.state == StateCollecting {
		s.state = StateAborted
		s.samples = nil
	}
}

// commit writes the identity and all accumulated samples. All-or-
// nothing: any failure after CreateIdentity deletes the identity again
// so no partial embedding set survives.
func (s *Session) commit() error {
	s.state = StateCommitting

	if err := s.writer.CreateIdentity(s.IdentityID, s.Name, s.Group); err != nil {
		s.state = StateAborted
		s.samples = nil
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost the race since the precondition check.
			return fmt.Errorf("commit session %s: %w", s.IdentityID, ErrDuplicateIdentity)
		}
		return fmt.Errorf("commit session %s: %w", s.IdentityID, err)
	}

	for _, vec := range s.samples {
		if err := s.writer.AppendEmbedding(s.IdentityID, vec); err != nil {
			_ = s.writer.DeleteIdentity(s.IdentityID)
			s.state = StateAborted
			s.samples = nil
			return fmt.Errorf("commit session %s: %w", s.IdentityID, err)
		}
	}

	s.state = StateCommitted
	s.samples = nil
	return nil
}
