package service

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-face-api/internal/models"
	appErrors "github.com/noah-isme/sma-face-api/pkg/errors"
)

type probeMatcher interface {
	Match(ctx context.Context, probe []float32, threshold float64) (models.MatchDecision, error)
}

type attendanceUpserter interface {
	Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error)
}

type recognitionSubjectRepository interface {
	FindByName(ctx context.Context, name string) (*models.Subject, error)
}

// RecognizeRequest carries one captured frame plus its attendance slot.
type RecognizeRequest struct {
	Image       []byte
	SubjectName string
	ClassTime   string
	Date        time.Time
	// Threshold overrides the configured matching threshold when > 0.
	Threshold float64
}

// RecognitionResult reports the match decision and, when attendance was
// recorded, the stored row.
type RecognitionResult struct {
	Decision   models.MatchDecision `json:"decision"`
	Attendance *models.Attendance   `json:"attendance,omitempty"`
}

// RecognitionService wires the extractor, matcher and attendance recorder
// into the live recognition path: one frame in, at most one present
// record out.
type RecognitionService struct {
	extractor  faceExtractor
	matcher    probeMatcher
	subjects   recognitionSubjectRepository
	attendance attendanceUpserter
	metrics    *MetricsService
	threshold  float64
	logger     *zap.Logger
}

// NewRecognitionService constructs a RecognitionService.
func NewRecognitionService(extractor faceExtractor, matcher probeMatcher, subjects recognitionSubjectRepository, attendance attendanceUpserter, metrics *MetricsService, threshold float64, logger *zap.Logger) *RecognitionService {
	if threshold <= 0 {
		threshold = 0.4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecognitionService{
		extractor:  extractor,
		matcher:    matcher,
		subjects:   subjects,
		attendance: attendance,
		metrics:    metrics,
		threshold:  threshold,
		logger:     logger,
	}
}

// Recognize detects the best face in the frame, matches it against the
// enrolled roster and upserts a present attendance record on success.
// Zero detected faces and sub-threshold scores are normal no-match
// outcomes, not errors.
func (s *RecognitionService) Recognize(ctx context.Context, req RecognizeRequest) (*RecognitionResult, error) {
	if len(req.Image) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "image is required")
	}
	if req.SubjectName == "" || req.ClassTime == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject_name and class_time are required")
	}

	subject, err := s.subjects.FindByName(ctx, req.SubjectName)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	threshold := req.Threshold
	if threshold <= 0 {
		threshold = s.threshold
	}

	start := time.Now()
	faces, err := s.extractor.Extract(ctx, req.Image)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "face extraction failed")
	}
	if len(faces) == 0 {
		s.metrics.ObserveRecognition(false, 0, time.Since(start))
		return &RecognitionResult{Decision: models.MatchDecision{Threshold: threshold}}, nil
	}

	decision, err := s.matcher.Match(ctx, faces[0].Embedding, threshold)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveRecognition(decision.Matched, decision.Score, time.Since(start))

	result := &RecognitionResult{Decision: decision}
	if !decision.Matched {
		return result, nil
	}

	date := req.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	date = date.Truncate(24 * time.Hour)

	confidence := decision.Score
	record, err := s.attendance.Upsert(ctx, &models.Attendance{
		StudentID:  decision.StudentID,
		SubjectID:  subject.ID,
		ClassTime:  req.ClassTime,
		Date:       date,
		Status:     models.AttendancePresent,
		Confidence: &confidence,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	result.Attendance = record

	s.logger.Info("attendance recognized",
		zap.String("student_id", decision.StudentID),
		zap.String("subject_id", subject.ID),
		zap.String("class_time", req.ClassTime),
		zap.Float64("score", decision.Score),
	)
	return result, nil
}
