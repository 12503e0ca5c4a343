package recognition

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-face-api/internal/embedding"
	"github.com/noah-isme/sma-face-api/internal/models"
)

// cosineEpsilon guards the denominator when a stored or probe vector is
// exactly zero.
const cosineEpsilon = 1e-8

// Matcher scores a probe embedding against every enrolled reference set
// and picks the best identity above a threshold.
type Matcher struct {
	store  embedding.Store
	logger *zap.Logger
}

// NewMatcher constructs a Matcher over the given store.
func NewMatcher(store embedding.Store, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{store: store, logger: logger}
}

// Match compares the probe against all enrolled identities. Each identity
// scores as the maximum cosine similarity over its reference vectors (a
// single strongly matching pose wins), and the globally best identity is
// reported when its score exceeds the threshold. An empty store is a
// normal no-match outcome, not an error. Exact ties resolve to the
// lexicographically lowest student ID.
func (m *Matcher) Match(ctx context.Context, probe []float32, threshold float64) (models.MatchDecision, error) {
	decision := models.MatchDecision{Threshold: threshold}
	if len(probe) == 0 {
		return decision, nil
	}

	sets, err := m.store.All(ctx)
	if err != nil {
		return decision, err
	}

	bestID := ""
	bestScore := math.Inf(-1)
	for _, set := range sets {
		score := math.Inf(-1)
		for _, ref := range set.Embeddings {
			if sim := CosineSimilarity(ref, probe); sim > score {
				score = sim
			}
		}
		if len(set.Embeddings) == 0 {
			continue
		}
		if score > bestScore || (score == bestScore && (bestID == "" || set.StudentID < bestID)) {
			bestScore = score
			bestID = set.StudentID
		}
	}

	if bestID == "" {
		return decision, nil
	}

	decision.Score = bestScore
	if bestScore > threshold {
		decision.Matched = true
		decision.StudentID = bestID
	}

	m.logger.Debug("probe matched against roster",
		zap.String("best_student_id", bestID),
		zap.Float64("best_score", bestScore),
		zap.Float64("threshold", threshold),
		zap.Bool("matched", decision.Matched),
	)
	return decision, nil
}

// CosineSimilarity returns dot(a,b)/(|a||b|+eps), clamped to [-1, 1].
// Mismatched or empty vectors score -1 so they can never win a match.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	sim := dot / (math.Sqrt(normA)*math.Sqrt(normB) + cosineEpsilon)
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim
}
