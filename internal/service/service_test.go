package service

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/your-org/attend/internal/config"
	"github.com/your-org/attend/internal/recognition"
	"github.com/your-org/attend/internal/store"
	"github.com/your-org/attend/internal/vision"
)

// fakeExtractor serves scripted extraction results instead of running
// models.
type fakeExtractor struct {
	next []vision.Extraction
}

func (f *fakeExtractor) set(ex ...vision.Extraction) { f.next = ex }

func (f *fakeExtractor) ExtractBest(_ image.Image, _ float64) (vision.Extraction, error) {
	if len(f.next) == 0 {
		return vision.Extraction{Outcome: vision.OutcomeNoFace}, nil
	}
	return f.next[0], nil
}

func (f *fakeExtractor) ExtractAll(_ image.Image, _ float64) ([]vision.Extraction, error) {
	if len(f.next) == 0 {
		return []vision.Extraction{{Outcome: vision.OutcomeNoFace}}, nil
	}
	return f.next, nil
}

func extracted(fill float32) vision.Extraction {
	return vision.Extraction{
		Outcome:    vision.OutcomeExtracted,
		Embedding:  []float32{fill, 1 - fill, 0.5},
		Confidence: 0.95,
	}
}

type fixture struct {
	svc   *Service
	faces *store.FaceStore
	log   *store.AttendanceLog
	ext   *fakeExtractor
	clock *time.Time
	frame image.Image
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	faces, err := store.OpenFaceStore(filepath.Join(dir, "faces_db"), 3)
	if err != nil {
		t.Fatal(err)
	}
	attLog, err := store.OpenAttendanceLog(filepath.Join(dir, "logs"))
	if err != nil {
		t.Fatal(err)
	}
	settings, err := config.OpenSettings(filepath.Join(dir, "settings.json"))
	if err != nil {
		t.Fatal(err)
	}

	ext := &fakeExtractor{}
	svc := New(faces, attLog, settings, recognition.NewCooldownLedger(), ext)

	now := time.Date(2025, 9, 1, 9, 0, 0, 0, time.Local)
	clock := &now
	svc.now = func() time.Time { return *clock }

	return &fixture{
		svc:   svc,
		faces: faces,
		log:   attLog,
		ext:   ext,
		clock: clock,
		frame: image.NewRGBA(image.Rect(0, 0, 4, 4)),
	}
}

func (f *fixture) tick(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

// enroll drives a full enrollment through the frame path.
func (f *fixture) enroll(t *testing.T, id, name string, samples int) {
	t.Helper()
	if _, err := f.svc.StartEnrollment(id, name, ""); err != nil {
		t.Fatalf("start enrollment: %v", err)
	}
	for i := 0; i < samples; i++ {
		f.tick(5 * time.Second)
		f.ext.set(extracted(float32(i) / float32(samples)))
		f.svc.ProcessFrame(context.Background(), f.frame)
	}
}

func TestEnrollmentThroughFrames(t *testing.T) {
	f := newFixture(t)

	progress, err := f.svc.StartEnrollment("s1", "Alice", "OS_Lab")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if progress.Target != 10 {
		t.Fatalf("target %d, want default 10", progress.Target)
	}
	if f.svc.Status().Mode != "enrolling" {
		t.Fatalf("mode %s", f.svc.Status().Mode)
	}

	// No-face frames make no progress.
	f.tick(5 * time.Second)
	f.ext.set(vision.Extraction{Outcome: vision.OutcomeNoFace})
	f.svc.ProcessFrame(context.Background(), f.frame)
	if p, _ := f.svc.EnrollmentStatus(); p.Collected != 0 {
		t.Fatalf("collected %d after no-face frame", p.Collected)
	}

	for i := 0; i < 10; i++ {
		f.tick(5 * time.Second)
		f.ext.set(extracted(0.1 * float32(i)))
		f.svc.ProcessFrame(context.Background(), f.frame)
	}

	// Session auto-committed and the camera is idle again.
	if f.svc.Status().Mode != "idle" {
		t.Fatalf("mode %s, want idle after commit", f.svc.Status().Mode)
	}
	infos := f.svc.Identities()
	if len(infos) != 1 || infos[0].ID != "s1" || infos[0].SampleCount != 10 {
		t.Fatalf("identities after enrollment: %+v", infos)
	}
}

func TestEnrollmentFramePacing(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.StartEnrollment("s1", "Alice", ""); err != nil {
		t.Fatal(err)
	}

	// Two frames inside one capture interval: only the first samples.
	f.tick(5 * time.Second)
	f.ext.set(extracted(0.3))
	f.svc.ProcessFrame(context.Background(), f.frame)
	f.tick(100 * time.Millisecond)
	f.svc.ProcessFrame(context.Background(), f.frame)

	if p, _ := f.svc.EnrollmentStatus(); p.Collected != 1 {
		t.Fatalf("collected %d, want 1", p.Collected)
	}
}

func TestEnrollmentStopEarlyInsufficient(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, "s1", "Alice", 3)

	if _, err := f.svc.StopEnrollment(); !errors.Is(err, recognition.ErrInsufficientSamples) {
		t.Fatalf("stop: %v", err)
	}
	if f.svc.Status().Mode != "idle" {
		t.Fatal("mode not reset after aborted enrollment")
	}
	if len(f.svc.Identities()) != 0 {
		t.Fatal("aborted enrollment left an identity")
	}
}

func TestStartAttendanceGuards(t *testing.T) {
	f := newFixture(t)

	// Empty gallery.
	if err := f.svc.StartAttendance(""); !errors.Is(err, ErrNoIdentities) {
		t.Fatalf("empty gallery: %v", err)
	}

	f.enroll(t, "s1", "Alice", 10)

	// Unknown group.
	if err := f.svc.StartAttendance("NoSuch"); !errors.Is(err, recognition.ErrInvalidGroup) {
		t.Fatalf("unknown group: %v", err)
	}

	// Busy while enrolling.
	if _, err := f.svc.StartEnrollment("s2", "Bob", ""); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.StartAttendance(""); !errors.Is(err, ErrBusy) {
		t.Fatalf("while enrolling: %v", err)
	}
	if err := f.svc.CancelEnrollment(); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.StartAttendance(""); err != nil {
		t.Fatalf("start attendance: %v", err)
	}
	st := f.svc.Status()
	if st.Mode != "attendance" || st.Group != "OS_Lab" {
		t.Fatalf("status %+v", st)
	}
}

func TestAttendanceRecordAndCooldown(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, "s1", "Alice", 10)

	// 1-hour cooldown for the scenario.
	st := f.svc.Settings()
	st.CooldownHours = 1.0
	if _, err := f.svc.UpdateSettings(st); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.StartAttendance(""); err != nil {
		t.Fatal(err)
	}

	// First sighting records.
	f.tick(5 * time.Second)
	f.ext.set(extracted(0.5))
	f.svc.ProcessFrame(context.Background(), f.frame)

	day := store.DateLabel(*f.clock)
	events, err := f.svc.Events("OS_Lab", day)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].IdentityID != "s1" {
		t.Fatalf("after first sighting: %+v", events)
	}

	// Sighting inside the window is suppressed.
	f.tick(10 * time.Minute)
	f.svc.ProcessFrame(context.Background(), f.frame)
	if events, _ = f.svc.Events("OS_Lab", day); len(events) != 1 {
		t.Fatalf("suppressed sighting recorded: %d events", len(events))
	}

	// Past the window it records again.
	f.tick(time.Hour)
	f.svc.ProcessFrame(context.Background(), f.frame)
	if events, _ = f.svc.Events("OS_Lab", day); len(events) != 2 {
		t.Fatalf("post-window sighting not recorded: %d events", len(events))
	}
}

func TestAttendanceUnknownFaceNotRecorded(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, "s1", "Alice", 10)
	if err := f.svc.StartAttendance(""); err != nil {
		t.Fatal(err)
	}

	// Orthogonal embedding scores far below the threshold.
	f.tick(5 * time.Second)
	f.ext.set(vision.Extraction{
		Outcome:    vision.OutcomeExtracted,
		Embedding:  []float32{-1, 2, -2},
		Confidence: 0.95,
	})
	f.svc.ProcessFrame(context.Background(), f.frame)

	events, err := f.svc.Events("OS_Lab", store.DateLabel(*f.clock))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("unknown face recorded: %+v", events)
	}
}

func TestRestartRebuildSuppresses(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, "s1", "Alice", 10)
	if err := f.svc.StartAttendance(""); err != nil {
		t.Fatal(err)
	}

	f.tick(5 * time.Second)
	f.ext.set(extracted(0.5))
	f.svc.ProcessFrame(context.Background(), f.frame)
	recordedAt := *f.clock

	// Simulated restart: fresh ledger rebuilt from the same log.
	window := f.svc.Settings().CooldownWindow()
	ledger, err := recognition.RebuildCooldownLedger(f.log, recordedAt.Add(time.Minute), window)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if !ledger.IsSuppressed("s1", recordedAt.Add(time.Minute), window) {
		t.Fatal("rebuilt ledger lost the recorded sighting")
	}
	if ledger.IsSuppressed("s1", recordedAt.Add(window+time.Minute), window) {
		t.Fatal("rebuilt ledger suppresses past the window")
	}
}

func TestDeleteIdentityPurges(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, "s1", "Alice", 10)
	if err := f.svc.StartAttendance(""); err != nil {
		t.Fatal(err)
	}

	f.tick(5 * time.Second)
	f.ext.set(extracted(0.5))
	f.svc.ProcessFrame(context.Background(), f.frame)
	day := store.DateLabel(*f.clock)

	if err := f.svc.DeleteIdentity("s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if len(f.svc.Identities()) != 0 {
		t.Fatal("identity still enrolled")
	}
	events, err := f.svc.Events("OS_Lab", day)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("log rows survived delete: %+v", events)
	}
	if _, ok := f.svc.CooldownEntries()["s1"]; ok {
		t.Fatal("cooldown entry survived delete")
	}
}

func TestGroupManagement(t *testing.T) {
	f := newFixture(t)

	st, err := f.svc.AddGroup("Networks")
	if err != nil {
		t.Fatalf("add group: %v", err)
	}
	if !st.HasGroup("Networks") {
		t.Fatalf("groups %v", st.Groups)
	}
	if _, err := f.svc.AddGroup("Networks"); !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("duplicate group: %v", err)
	}

	// Default group is protected.
	if _, err := f.svc.DeleteGroup("OS_Lab"); !errors.Is(err, ErrGroupProtected) {
		t.Fatalf("delete default: %v", err)
	}

	// A group with enrolled identities is protected.
	if _, err := f.svc.StartEnrollment("s1", "Alice", "Networks"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		f.tick(5 * time.Second)
		f.ext.set(extracted(0.1 * float32(i)))
		f.svc.ProcessFrame(context.Background(), f.frame)
	}
	if _, err := f.svc.DeleteGroup("Networks"); !errors.Is(err, ErrGroupInUse) {
		t.Fatalf("delete in-use group: %v", err)
	}

	if err := f.svc.DeleteIdentity("s1"); err != nil {
		t.Fatal(err)
	}
	if st, err = f.svc.DeleteGroup("Networks"); err != nil {
		t.Fatalf("delete emptied group: %v", err)
	}
	if st.HasGroup("Networks") {
		t.Fatalf("group not removed: %v", st.Groups)
	}
}

func TestSettingsUpdateAppliesInterval(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, "s1", "Alice", 10)
	if err := f.svc.StartAttendance(""); err != nil {
		t.Fatal(err)
	}

	st := f.svc.Settings()
	st.CaptureIntervalSeconds = 60
	if _, err := f.svc.UpdateSettings(st); err != nil {
		t.Fatal(err)
	}

	// First frame passes, second inside the widened interval does not.
	f.tick(5 * time.Second)
	f.ext.set(extracted(0.5))
	f.svc.ProcessFrame(context.Background(), f.frame)
	f.tick(10 * time.Second)
	f.svc.ProcessFrame(context.Background(), f.frame)

	day := store.DateLabel(*f.clock)
	events, err := f.svc.Events("OS_Lab", day)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("widened interval not applied: %d events", len(events))
	}
}
