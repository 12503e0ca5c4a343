package models

// ReferenceSet is the ordered collection of embeddings enrolled for one
// student, one vector per captured pose.
type ReferenceSet struct {
	StudentID  string      `json:"student_id"`
	Embeddings [][]float32 `json:"embeddings"`
}

// MatchDecision is the outcome of comparing a probe embedding against all
// enrolled reference sets. Transient; never persisted on its own.
type MatchDecision struct {
	Matched   bool    `json:"matched"`
	StudentID string  `json:"student_id,omitempty"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
}

// Face is one detected face in an image, as reported by the extractor.
type Face struct {
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox,omitempty"`
	DetScore  float64   `json:"det_score,omitempty"`
}
