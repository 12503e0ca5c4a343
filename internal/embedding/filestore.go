package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-face-api/internal/models"
	appErrors "github.com/noah-isme/sma-face-api/pkg/errors"
	"github.com/noah-isme/sma-face-api/pkg/storage"
)

const setFileName = "embeddings.json"

// FileStore keeps one reference-set file per student under a base
// directory. Replacement is write-temp-then-rename, so a concurrent
// matcher scan never observes a partially written set.
type FileStore struct {
	files     *storage.LocalStorage
	dimension int
	logger    *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore constructs a FileStore rooted at the storage base dir.
func NewFileStore(files *storage.LocalStorage, dimension int, logger *zap.Logger) *FileStore {
	if dimension <= 0 {
		dimension = 512
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{
		files:     files,
		dimension: dimension,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

// Dimension returns the fixed embedding length the store accepts.
func (s *FileStore) Dimension() int {
	return s.dimension
}

// Put atomically replaces the student's full reference set. Concurrent
// Puts for the same student serialize; different students are independent.
func (s *FileStore) Put(ctx context.Context, studentID string, embeddings [][]float32) error {
	if studentID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	if len(embeddings) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "reference set must contain at least one embedding")
	}
	for i, emb := range embeddings {
		if len(emb) != s.dimension {
			return appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("embedding %d has dimension %d, expected %d", i, len(emb), s.dimension))
		}
	}

	payload, err := json.Marshal(embeddings)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode reference set")
	}

	lock := s.lockFor(studentID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.files.SaveAtomic(filepath.Join(studentID, setFileName), payload); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist reference set")
	}

	s.logger.Info("reference set replaced",
		zap.String("student_id", studentID),
		zap.Int("poses", len(embeddings)),
	)
	return nil
}

// Get loads a student's reference set, or ErrNotEnrolled if none exists.
func (s *FileStore) Get(ctx context.Context, studentID string) ([][]float32, error) {
	data, err := s.files.Load(filepath.Join(studentID, setFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, appErrors.ErrNotEnrolled
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read reference set")
	}
	var embeddings [][]float32
	if err := json.Unmarshal(data, &embeddings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode reference set")
	}
	return embeddings, nil
}

// All returns every enrolled student's reference set for full-scan
// matching. Students with a directory but no published set are skipped.
func (s *FileStore) All(ctx context.Context) ([]models.ReferenceSet, error) {
	ids, err := s.files.ListDirs()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan reference sets")
	}

	sets := make([]models.ReferenceSet, 0, len(ids))
	for _, id := range ids {
		embeddings, err := s.Get(ctx, id)
		if err != nil {
			if appErrors.FromError(err).Code == appErrors.ErrNotEnrolled.Code {
				continue
			}
			return nil, err
		}
		sets = append(sets, models.ReferenceSet{StudentID: id, Embeddings: embeddings})
	}
	return sets, nil
}

// Delete removes the student's reference set if present.
func (s *FileStore) Delete(ctx context.Context, studentID string) error {
	lock := s.lockFor(studentID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.files.Delete(filepath.Join(studentID, setFileName)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete reference set")
	}
	return nil
}

func (s *FileStore) lockFor(studentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[studentID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[studentID] = lock
	}
	return lock
}
