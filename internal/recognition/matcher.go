// Package recognition holds the correctness-critical pieces of the
// attendance pipeline: nearest-match search, the cooldown ledger, the
// capture rate limiter and the enrollment state machine. Everything here
// is pure or single-owner state; persistence lives in internal/store.
package recognition

import "math"

// NoCandidateScore is the best-score sentinel reported when the
// candidate set contributed nothing to compare against.
const NoCandidateScore = -1.0

// SimilarityFunc scores two embedding vectors; higher is more similar.
type SimilarityFunc func(a, b []float32) float64

// Candidate is one enrolled identity offered to the matcher.
type Candidate struct {
	ID         string
	Embeddings [][]float32
}

// Match is the outcome of a nearest-match scan. Found is false when the
// best score fell below the threshold; BestScore is still reported so
// callers can log "unknown, closest score = X".
type Match struct {
	ID        string
	BestScore float64
	Found     bool
}

// BestMatch scans every candidate exhaustively: an identity's score is
// the maximum similarity across its stored embeddings, and the identity
// with the globally maximum score wins, ties broken by first encounter
// in candidate order (stable ordering across store changes is explicitly
// not guaranteed). Candidates with zero embeddings contribute nothing.
// Linear full scan: at tens to low hundreds of identities, exhaustive
// comparison beats any index.
func BestMatch(query []float32, candidates []Candidate, sim SimilarityFunc, threshold float64) Match {
	bestID := ""
	bestScore := NoCandidateScore

	for _, c := range candidates {
		for _, emb := range c.Embeddings {
			if s := sim(query, emb); s > bestScore {
				bestScore = s
				bestID = c.ID
			}
		}
	}

	if bestID != "" && bestScore >= threshold {
		return Match{ID: bestID, BestScore: bestScore, Found: true}
	}
	return Match{BestScore: bestScore}
}

// CosineSimilarity computes cosine similarity between two vectors,
// clamped to [-1, 1]. Mismatched lengths score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Min(1.0, math.Max(-1.0, s))
}
