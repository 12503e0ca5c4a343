package embedding

import (
	"context"

	"github.com/noah-isme/sma-face-api/internal/models"
)

// Store holds per-identity reference embedding sets. Put replaces an
// identity's full set atomically: readers either see the previous set or
// the complete new one, never a truncated mix.
type Store interface {
	Put(ctx context.Context, studentID string, embeddings [][]float32) error
	Get(ctx context.Context, studentID string) ([][]float32, error)
	All(ctx context.Context) ([]models.ReferenceSet, error)
	Delete(ctx context.Context, studentID string) error
	Dimension() int
}
