package store

import (
	"errors"
	"testing"
)

func vec(dim int, fill float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = fill
	}
	return v
}

func TestCreateAndLoad(t *testing.T) {
	s, err := OpenFaceStore(t.TempDir(), 4)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := s.CreateIdentity("s1", "Alice", "OS_Lab"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateIdentity("s1", "Alice", "OS_Lab"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate create: got %v, want ErrAlreadyExists", err)
	}

	if err := s.AppendEmbedding("s1", vec(4, 0.5)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendEmbedding("s1", vec(4, 0.25)); err != nil {
		t.Fatalf("append: %v", err)
	}

	embs, err := s.LoadEmbeddings("s1")
	if err != nil {
		t.Fatalf("load embeddings: %v", err)
	}
	if len(embs) != 2 {
		t.Fatalf("got %d embeddings, want 2", len(embs))
	}
	if embs[0][0] != 0.5 || embs[1][0] != 0.25 {
		t.Fatalf("embeddings out of insertion order: %v", embs)
	}

	infos := s.LoadAll()
	if len(infos) != 1 {
		t.Fatalf("got %d identities, want 1", len(infos))
	}
	if infos[0].ID != "s1" || infos[0].Name != "Alice" || infos[0].Group != "OS_Lab" || infos[0].SampleCount != 2 {
		t.Fatalf("unexpected identity info: %+v", infos[0])
	}
}

func TestLoadAllSorted(t *testing.T) {
	s, err := OpenFaceStore(t.TempDir(), 2)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, id := range []string{"s3", "s1", "s2"} {
		if err := s.CreateIdentity(id, "n-"+id, "G"); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	infos := s.LoadAll()
	for i, want := range []string{"s1", "s2", "s3"} {
		if infos[i].ID != want {
			t.Fatalf("position %d: got %s, want %s", i, infos[i].ID, want)
		}
	}
}

func TestAppendErrors(t *testing.T) {
	s, err := OpenFaceStore(t.TempDir(), 4)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := s.AppendEmbedding("ghost", vec(4, 1)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("append to missing identity: got %v, want ErrNotFound", err)
	}

	if err := s.CreateIdentity("s1", "Alice", "G"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.AppendEmbedding("s1", vec(3, 1)); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("wrong dim: got %v, want ErrDimensionMismatch", err)
	}
}

func TestLoadEmbeddingsErrors(t *testing.T) {
	s, err := OpenFaceStore(t.TempDir(), 4)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := s.LoadEmbeddings("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("load missing: got %v, want ErrNotFound", err)
	}

	// Freshly created identity has an empty, non-nil sample set.
	if err := s.CreateIdentity("s1", "Alice", "G"); err != nil {
		t.Fatalf("create: %v", err)
	}
	embs, err := s.LoadEmbeddings("s1")
	if err != nil {
		t.Fatalf("load fresh: %v", err)
	}
	if len(embs) != 0 {
		t.Fatalf("fresh identity has %d embeddings, want 0", len(embs))
	}
}

func TestDeleteIdentity(t *testing.T) {
	s, err := OpenFaceStore(t.TempDir(), 4)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.CreateIdentity("s1", "Alice", "G"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.AppendEmbedding("s1", vec(4, 1)); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := s.DeleteIdentity("s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Has("s1") {
		t.Fatal("identity still present after delete")
	}
	// Idempotent.
	if err := s.DeleteIdentity("s1"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestReopenSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenFaceStore(dir, 4)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.CreateIdentity("s1", "Alice", "OS_Lab"); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.AppendEmbedding("s1", vec(4, float32(i))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	// New store instance over the same directory sees identical state.
	s2, err := OpenFaceStore(dir, 4)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	infos := s2.LoadAll()
	if len(infos) != 1 || infos[0].SampleCount != 3 {
		t.Fatalf("after reopen: %+v", infos)
	}
	embs, err := s2.LoadEmbeddings("s1")
	if err != nil {
		t.Fatalf("load after reopen: %v", err)
	}
	for i := range embs {
		if embs[i][0] != float32(i) {
			t.Fatalf("embedding %d corrupted: %v", i, embs[i])
		}
	}
}

func TestNPYRoundTrip(t *testing.T) {
	path := t.TempDir() + "/features.npy"

	rows := [][]float32{
		{1, 2, 3},
		{-0.5, 0.25, 1e-7},
	}
	if err := writeNPY(path, rows, 3); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := readNPY(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("got %d rows, want %d", len(got), len(rows))
	}
	for i := range rows {
		for j := range rows[i] {
			if got[i][j] != rows[i][j] {
				t.Fatalf("row %d col %d: got %v, want %v", i, j, got[i][j], rows[i][j])
			}
		}
	}
}

func TestNPYEmpty(t *testing.T) {
	path := t.TempDir() + "/empty.npy"
	if err := writeNPY(path, nil, 4); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := readNPY(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d rows, want 0", len(got))
	}
}
