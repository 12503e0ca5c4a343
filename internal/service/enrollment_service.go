package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-face-api/internal/embedding"
	"github.com/noah-isme/sma-face-api/internal/models"
	appErrors "github.com/noah-isme/sma-face-api/pkg/errors"
)

type faceExtractor interface {
	Extract(ctx context.Context, image []byte) ([]models.Face, error)
}

type enrollmentStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	SetFaceEnrolled(ctx context.Context, id string, enrolled bool) error
}

// EnrollmentService turns a batch of pose images into a student's
// reference embedding set. Enrollment is all-or-nothing: a pose with no
// detectable face aborts the call and the previous set stays untouched.
type EnrollmentService struct {
	students  enrollmentStudentRepository
	extractor faceExtractor
	store     embedding.Store
	logger    *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(students enrollmentStudentRepository, extractor faceExtractor, store embedding.Store, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{students: students, extractor: extractor, store: store, logger: logger}
}

// Enroll extracts one embedding per pose image and atomically replaces the
// student's reference set. Returns the number of embeddings saved.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID string, images [][]byte) (int, error) {
	if len(images) == 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "at least one pose image is required")
	}

	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	embeddings := make([][]float32, 0, len(images))
	for i, image := range images {
		faces, err := s.extractor.Extract(ctx, image)
		if err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "face extraction failed")
		}
		if len(faces) == 0 {
			return 0, appErrors.NoFaceDetected(i)
		}
		// Only the best (first) detected face per pose is enrolled.
		embeddings = append(embeddings, faces[0].Embedding)
	}

	if err := s.store.Put(ctx, studentID, embeddings); err != nil {
		return 0, err
	}

	if err := s.students.SetFaceEnrolled(ctx, studentID, true); err != nil {
		s.logger.Warn("failed to flag student as enrolled", zap.String("student_id", studentID), zap.Error(err))
	}

	s.logger.Info("student enrolled",
		zap.String("student_id", studentID),
		zap.Int("poses", len(embeddings)),
	)
	return len(embeddings), nil
}
