package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

var logHeader = []string{"timestamp", "date_label", "group", "identity_id", "name", "similarity_score"}

// AttendanceEvent is one immutable recognition record.
type AttendanceEvent struct {
	Timestamp  time.Time
	DateLabel  string
	Group      string
	IdentityID string
	Name       string
	Similarity float64
}

// AttendanceLog is an append-only CSV log partitioned by (group, day).
// One file per partition, header row, rows appended without rewriting
// prior rows. Partitions are only rewritten by PurgeIdentity.
type AttendanceLog struct {
	mu  sync.Mutex
	dir string
}

// OpenAttendanceLog opens (creating if needed) the log directory.
func OpenAttendanceLog(dir string) (*AttendanceLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &AttendanceLog{dir: dir}, nil
}

// partitionPath maps a group and day label to the partition file.
// Group names are sanitized so arbitrary labels stay filesystem-safe.
func (l *AttendanceLog) partitionPath(group, dateLabel string) string {
	return filepath.Join(l.dir, safeName(group)+"_"+dateLabel+".csv")
}

func safeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Append durably writes one event to its partition, creating the
// partition with a header row on first write.
func (l *AttendanceLog) Append(ev AttendanceEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ev.DateLabel == "" {
		ev.DateLabel = DateLabel(ev.Timestamp)
	}
	path := l.partitionPath(ev.Group, ev.DateLabel)

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open partition: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(logHeader); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	row := []string{
		ev.Timestamp.Format(timestampLayout),
		ev.DateLabel,
		ev.Group,
		ev.IdentityID,
		ev.Name,
		strconv.FormatFloat(ev.Similarity, 'f', 6, 64),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush row: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync partition: %w", err)
	}
	return nil
}

// LastSeen scans every partition and returns, per identity, the latest
// event timestamp at or after since. Malformed rows are skipped; a log
// written by older tooling must not poison the bootstrap.
func (l *AttendanceLog) LastSeen(since time.Time) (map[string]time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	last := make(map[string]time.Time)
	paths, err := filepath.Glob(filepath.Join(l.dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("glob partitions: %w", err)
	}
	for _, p := range paths {
		events, err := readPartition(p)
		if err != nil {
			continue
		}
		for _, ev := range events {
			if ev.Timestamp.Before(since) {
				continue
			}
			if cur, ok := last[ev.IdentityID]; !ok || ev.Timestamp.After(cur) {
				last[ev.IdentityID] = ev.Timestamp
			}
		}
	}
	return last, nil
}

// Events returns all events in one (group, day) partition, in file
// order. A missing partition yields an empty slice.
func (l *AttendanceLog) Events(group, dateLabel string) ([]AttendanceEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := readPartition(l.partitionPath(group, dateLabel))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return events, nil
}

// Partitions lists the existing partition file names (without the .csv
// suffix), sorted.
func (l *AttendanceLog) Partitions() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(l.dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("glob partitions: %w", err)
	}
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, strings.TrimSuffix(filepath.Base(p), ".csv"))
	}
	sort.Strings(names)
	return names, nil
}

// PurgeIdentity rewrites every partition without the identity's rows.
// Partitions left empty are deleted outright.
func (l *AttendanceLog) PurgeIdentity(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(l.dir, "*.csv"))
	if err != nil {
		return fmt.Errorf("glob partitions: %w", err)
	}
	for _, p := range paths {
		events, err := readPartition(p)
		if err != nil {
			continue
		}
		kept := events[:0]
		for _, ev := range events {
			if ev.IdentityID != id {
				kept = append(kept, ev)
			}
		}
		if len(kept) == len(events) {
			continue
		}
		if len(kept) == 0 {
			if err := os.Remove(p); err != nil {
				return fmt.Errorf("remove partition: %w", err)
			}
			continue
		}
		if err := writePartition(p, kept); err != nil {
			return err
		}
	}
	return nil
}

func readPartition(path string) ([]AttendanceEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read partition %s: %w", path, err)
	}

	var events []AttendanceEvent
	for i, rec := range records {
		if i == 0 || len(rec) < 6 {
			continue
		}
		ts, err := time.ParseInLocation(timestampLayout, rec[0], time.Local)
		if err != nil {
			continue
		}
		sim, err := strconv.ParseFloat(rec[5], 64)
		if err != nil {
			continue
		}
		events = append(events, AttendanceEvent{
			Timestamp:  ts,
			DateLabel:  rec[1],
			Group:      rec[2],
			IdentityID: rec[3],
			Name:       rec[4],
			Similarity: sim,
		})
	}
	return events, nil
}

func writePartition(path string, events []AttendanceEvent) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create partition: %w", err)
	}

	w := csv.NewWriter(f)
	rows := [][]string{logHeader}
	for _, ev := range events {
		rows = append(rows, []string{
			ev.Timestamp.Format(timestampLayout),
			ev.DateLabel,
			ev.Group,
			ev.IdentityID,
			ev.Name,
			strconv.FormatFloat(ev.Similarity, 'f', 6, 64),
		})
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("rewrite partition: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close partition: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename partition: %w", err)
	}
	return nil
}
