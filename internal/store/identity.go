package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const (
	metaFileName    = "identities.json"
	featureFileName = "features.npy"
)

// IdentityMeta is the profile metadata kept for one enrolled identity.
type IdentityMeta struct {
	Name  string `json:"name"`
	Group string `json:"group"`
}

// IdentityInfo is one row of a full store snapshot.
type IdentityInfo struct {
	ID          string
	Name        string
	Group       string
	SampleCount int
}

// FaceStore persists enrolled identities on disk: one JSON metadata
// document mapping id → {name, group}, plus one NPY file per identity
// holding its stacked embedding vectors in insertion order. Every
// mutation is written through before returning; the in-memory maps are
// a cache of committed state, never ahead of it.
type FaceStore struct {
	mu   sync.Mutex
	dir  string
	dim  int
	meta map[string]IdentityMeta
	embs map[string][][]float32
}

// OpenFaceStore opens (creating if needed) the store rooted at dir.
// dim is the store-wide embedding dimensionality.
func OpenFaceStore(dir string, dim int) (*FaceStore, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("open face store: invalid dimension %d", dim)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	s := &FaceStore{
		dir:  dir,
		dim:  dim,
		meta: make(map[string]IdentityMeta),
		embs: make(map[string][][]float32),
	}

	metaPath := filepath.Join(dir, metaFileName)
	data, err := os.ReadFile(metaPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read identity metadata: %w", err)
		}
	} else if err := json.Unmarshal(data, &s.meta); err != nil {
		return nil, fmt.Errorf("parse identity metadata: %w", err)
	}

	for id := range s.meta {
		featPath := filepath.Join(dir, id, featureFileName)
		rows, err := readNPY(featPath)
		if err != nil {
			if os.IsNotExist(err) {
				// Created but never populated; legal state.
				s.embs[id] = nil
				continue
			}
			return nil, fmt.Errorf("load embeddings for %s: %w", id, err)
		}
		s.embs[id] = rows
	}

	return s, nil
}

// Dim returns the store-wide embedding dimensionality.
func (s *FaceStore) Dim() int { return s.dim }

// LoadAll returns a snapshot of all identities with their sample counts,
// ordered by identity id.
func (s *FaceStore) LoadAll() []IdentityInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]IdentityInfo, 0, len(s.meta))
	for id, m := range s.meta {
		infos = append(infos, IdentityInfo{
			ID:          id,
			Name:        m.Name,
			Group:       m.Group,
			SampleCount: len(s.embs[id]),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Has reports whether the identity exists.
func (s *FaceStore) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.meta[id]
	return ok
}

// Meta returns the profile metadata for one identity.
func (s *FaceStore) Meta(id string) (IdentityMeta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meta[id]
	return m, ok
}

// LoadEmbeddings returns the identity's embedding vectors in insertion
// order. A newly created identity with no samples yet yields an empty
// slice, not an error.
func (s *FaceStore) LoadEmbeddings(id string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meta[id]; !ok {
		return nil, fmt.Errorf("load embeddings %s: %w", id, ErrNotFound)
	}
	rows := s.embs[id]
	out := make([][]float32, len(rows))
	copy(out, rows)
	return out, nil
}

// CreateIdentity registers a new identity with no embeddings.
func (s *FaceStore) CreateIdentity(id, name, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meta[id]; ok {
		return fmt.Errorf("create identity %s: %w", id, ErrAlreadyExists)
	}
	if err := os.MkdirAll(filepath.Join(s.dir, id), 0o755); err != nil {
		return fmt.Errorf("create identity dir: %w", err)
	}

	s.meta[id] = IdentityMeta{Name: name, Group: group}
	if err := s.writeMetaLocked(); err != nil {
		delete(s.meta, id)
		return err
	}
	s.embs[id] = nil
	return nil
}

// AppendEmbedding adds one sample vector to the identity.
func (s *FaceStore) AppendEmbedding(id string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meta[id]; !ok {
		return fmt.Errorf("append embedding %s: %w", id, ErrNotFound)
	}
	if len(vec) != s.dim {
		return fmt.Errorf("append embedding %s: got %d, want %d: %w", id, len(vec), s.dim, ErrDimensionMismatch)
	}

	cp := make([]float32, s.dim)
	copy(cp, vec)
	rows := append(s.embs[id], cp)

	if err := writeNPY(filepath.Join(s.dir, id, featureFileName), rows, s.dim); err != nil {
		return err
	}
	s.embs[id] = rows
	return nil
}

// DeleteIdentity removes the identity's metadata and all embeddings.
// Deleting an absent identity is a no-op.
func (s *FaceStore) DeleteIdentity(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meta[id]; !ok {
		return nil
	}

	delete(s.meta, id)
	if err := s.writeMetaLocked(); err != nil {
		return err
	}
	delete(s.embs, id)

	if err := os.RemoveAll(filepath.Join(s.dir, id)); err != nil {
		return fmt.Errorf("remove identity dir: %w", err)
	}
	return nil
}

// writeMetaLocked persists the metadata document atomically.
func (s *FaceStore) writeMetaLocked() error {
	data, err := json.MarshalIndent(s.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal identity metadata: %w", err)
	}
	path := filepath.Join(s.dir, metaFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write identity metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename identity metadata: %w", err)
	}
	return nil
}
