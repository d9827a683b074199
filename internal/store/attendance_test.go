package store

import (
	"os"
	"strings"
	"testing"
	"time"
)

func mkEvent(id, name, group string, ts time.Time, sim float64) AttendanceEvent {
	return AttendanceEvent{
		Timestamp:  ts,
		DateLabel:  DateLabel(ts),
		Group:      group,
		IdentityID: id,
		Name:       name,
		Similarity: sim,
	}
}

func TestAppendAndEvents(t *testing.T) {
	l, err := OpenAttendanceLog(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	ts := time.Date(2025, 9, 1, 9, 30, 0, 0, time.Local)
	if err := l.Append(mkEvent("s1", "Alice", "OS_Lab", ts, 0.82)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Append(mkEvent("s2", "Bob", "OS_Lab", ts.Add(time.Minute), 0.77)); err != nil {
		t.Fatalf("append: %v", err)
	}

	events, err := l.Events("OS_Lab", DateLabel(ts))
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].IdentityID != "s1" || events[0].Name != "Alice" {
		t.Fatalf("first event: %+v", events[0])
	}
	if !events[0].Timestamp.Equal(ts) {
		t.Fatalf("timestamp: got %v, want %v", events[0].Timestamp, ts)
	}
	if events[1].Similarity != 0.77 {
		t.Fatalf("similarity: got %v", events[1].Similarity)
	}
}

func TestEventsMissingPartition(t *testing.T) {
	l, err := OpenAttendanceLog(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	events, err := l.Events("NoSuch", "1404-01-01")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("got %d events, want 0", len(events))
	}
}

func TestPartitionHeader(t *testing.T) {
	dir := t.TempDir()
	l, err := OpenAttendanceLog(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	ts := time.Date(2025, 9, 1, 9, 0, 0, 0, time.Local)
	if err := l.Append(mkEvent("s1", "Alice", "OS Lab", ts, 0.9)); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Group label is sanitized in the file name.
	path := dir + "/OS_Lab_" + DateLabel(ts) + ".csv"
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read partition: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header + row", len(lines))
	}
	if lines[0] != "timestamp,date_label,group,identity_id,name,similarity_score" {
		t.Fatalf("header: %q", lines[0])
	}
	if !strings.Contains(lines[1], "0.900000") {
		t.Fatalf("row similarity formatting: %q", lines[1])
	}
}

func TestLastSeen(t *testing.T) {
	l, err := OpenAttendanceLog(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	base := time.Date(2025, 9, 1, 8, 0, 0, 0, time.Local)
	// s1 seen twice; only the latest counts.
	if err := l.Append(mkEvent("s1", "Alice", "A", base, 0.8)); err != nil {
		t.Fatal(err)
	}
	if err := l.Append(mkEvent("s1", "Alice", "B", base.Add(2*time.Hour), 0.8)); err != nil {
		t.Fatal(err)
	}
	// s2 too old for the scan horizon.
	if err := l.Append(mkEvent("s2", "Bob", "A", base.Add(-48*time.Hour), 0.8)); err != nil {
		t.Fatal(err)
	}

	seen, err := l.LastSeen(base.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("last seen: %v", err)
	}
	if len(seen) != 1 {
		t.Fatalf("got %d entries, want 1: %v", len(seen), seen)
	}
	if !seen["s1"].Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("s1 last seen: got %v", seen["s1"])
	}
}

func TestPurgeIdentity(t *testing.T) {
	l, err := OpenAttendanceLog(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	ts := time.Date(2025, 9, 1, 9, 0, 0, 0, time.Local)
	if err := l.Append(mkEvent("s1", "Alice", "A", ts, 0.8)); err != nil {
		t.Fatal(err)
	}
	if err := l.Append(mkEvent("s2", "Bob", "A", ts, 0.8)); err != nil {
		t.Fatal(err)
	}
	// Partition holding only s1 should vanish entirely.
	if err := l.Append(mkEvent("s1", "Alice", "B", ts, 0.8)); err != nil {
		t.Fatal(err)
	}

	if err := l.PurgeIdentity("s1"); err != nil {
		t.Fatalf("purge: %v", err)
	}

	events, err := l.Events("A", DateLabel(ts))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].IdentityID != "s2" {
		t.Fatalf("partition A after purge: %+v", events)
	}

	parts, err := l.Partitions()
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range parts {
		if strings.HasPrefix(p, "B_") {
			t.Fatalf("emptied partition still present: %v", parts)
		}
	}
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"OS_Lab", "OS_Lab"},
		{"OS Lab", "OS_Lab"},
		{"a/b\\c", "a_b_c"},
		{"group-1", "group-1"},
	}
	for _, tt := range tests {
		if got := safeName(tt.in); got != tt.want {
			t.Errorf("safeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
