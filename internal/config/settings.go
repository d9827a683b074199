package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Settings is the operator-adjustable runtime configuration: a flat
// key-value document persisted as JSON. Unknown keys are ignored on
// load; missing or invalid values fall back to defaults rather than
// erroring. Changes take effect for subsequently processed frames
// without a restart.
type Settings struct {
	DefaultGroup                 string   `json:"default_group"`
	Groups                       []string `json:"groups"`
	SimilarityThreshold          float64  `json:"similarity_threshold"`
	DetectionConfidenceThreshold float64  `json:"detection_confidence_threshold"`
	CaptureIntervalSeconds       float64  `json:"capture_interval_seconds"`
	EnrollmentTargetSamples      int      `json:"enrollment_target_samples"`
	CooldownHours                float64  `json:"cooldown_hours"`
}

// minEnrollTarget mirrors the enrollment floor: a configured target
// below it is treated as the floor.
const minEnrollTarget = 5

func DefaultSettings() Settings {
	return Settings{
		DefaultGroup:                 "OS_Lab",
		Groups:                       []string{"OS_Lab"},
		SimilarityThreshold:          0.50,
		DetectionConfidenceThreshold: 0.90,
		CaptureIntervalSeconds:       2.0,
		EnrollmentTargetSamples:      10,
		CooldownHours:                24.0,
	}
}

// CaptureInterval returns the capture pacing as a duration.
func (s Settings) CaptureInterval() time.Duration {
	return time.Duration(s.CaptureIntervalSeconds * float64(time.Second))
}

// CooldownWindow returns the cooldown as a duration.
func (s Settings) CooldownWindow() time.Duration {
	return time.Duration(s.CooldownHours * float64(time.Hour))
}

// HasGroup reports whether the group label is known.
func (s Settings) HasGroup(group string) bool {
	for _, g := range s.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// sanitize replaces out-of-range values with defaults and normalizes the
// group list: trimmed, deduplicated, never empty, default group always a
// member.
func (s Settings) sanitize() Settings {
	def := DefaultSettings()

	if s.SimilarityThreshold <= 0 || s.SimilarityThreshold > 1 {
		s.SimilarityThreshold = def.SimilarityThreshold
	}
	if s.DetectionConfidenceThreshold <= 0 || s.DetectionConfidenceThreshold > 1 {
		s.DetectionConfidenceThreshold = def.DetectionConfidenceThreshold
	}
	if s.CaptureIntervalSeconds <= 0 {
		s.CaptureIntervalSeconds = def.CaptureIntervalSeconds
	}
	if s.EnrollmentTargetSamples < minEnrollTarget {
		s.EnrollmentTargetSamples = def.EnrollmentTargetSamples
	}
	if s.CooldownHours <= 0 {
		s.CooldownHours = def.CooldownHours
	}
	if s.DefaultGroup == "" {
		s.DefaultGroup = def.DefaultGroup
	}

	seen := make(map[string]bool)
	groups := make([]string, 0, len(s.Groups)+1)
	for _, g := range s.Groups {
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		groups = append(groups, g)
	}
	if len(groups) == 0 {
		groups = []string{s.DefaultGroup}
		seen[s.DefaultGroup] = true
	}
	if !seen[s.DefaultGroup] {
		groups = append([]string{s.DefaultGroup}, groups...)
	}
	s.Groups = groups

	return s
}

// SettingsStore owns the settings document on disk.
type SettingsStore struct {
	mu   sync.Mutex
	path string
	cur  Settings
}

// OpenSettings loads the document at path, falling back to defaults
// when the file is missing or unreadable.
func OpenSettings(path string) (*SettingsStore, error) {
	st := &SettingsStore{path: path, cur: DefaultSettings()}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		// Corrupt document: run with defaults rather than refusing to start.
		return st, nil
	}
	st.cur = s.sanitize()
	return st, nil
}

// Get returns the current settings snapshot.
func (st *SettingsStore) Get() Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.cur
	s.Groups = append([]string(nil), st.cur.Groups...)
	return s
}

// Update sanitizes and persists new settings atomically.
func (st *SettingsStore) Update(s Settings) (Settings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s = s.sanitize()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return st.cur, fmt.Errorf("marshal settings: %w", err)
	}
	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return st.cur, fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, st.path); err != nil {
		return st.cur, fmt.Errorf("rename settings: %w", err)
	}
	st.cur = s
	return s, nil
}
