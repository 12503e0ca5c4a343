package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-face-api/internal/models"
	appErrors "github.com/noah-isme/sma-face-api/pkg/errors"
	"github.com/noah-isme/sma-face-api/pkg/export"
)

type attendanceRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, int, error)
	Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error)
	InsertAbsentIfMissing(ctx context.Context, record *models.Attendance) (bool, error)
	Report(ctx context.Context, subjectID string, from, to time.Time) ([]models.AttendanceReportRow, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type absenteeStudentRepository interface {
	ListEnrolled(ctx context.Context) ([]models.Student, error)
}

// RecordAttendanceRequest is the payload for manual attendance entry.
type RecordAttendanceRequest struct {
	StudentID  string   `json:"student_id" validate:"required"`
	SubjectID  string   `json:"subject_id" validate:"required"`
	ClassTime  string   `json:"class_time" validate:"required"`
	Date       string   `json:"date" validate:"required,datetime=2006-01-02"`
	Status     string   `json:"status" validate:"required,attendance_status"`
	Confidence *float64 `json:"confidence"`
}

// AttendanceService coordinates attendance listing, manual entry, absence
// reconciliation and report exports.
type AttendanceService struct {
	repo      attendanceRepository
	students  absenteeStudentRepository
	cache     reportCache
	cacheTTL  time.Duration
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, students absenteeStudentRepository, cache reportCache, cacheTTL time.Duration, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AttendanceService{
		repo:      repo,
		students:  students,
		cache:     cache,
		cacheTTL:  cacheTTL,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToLower(fl.Field().String())).Valid()
	})
	return svc
}

// List returns attendance rows plus pagination data.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, *models.Pagination, error) {
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return rows, pagination, nil
}

// Record upserts a manual attendance entry for the slot.
func (s *AttendanceService) Record(ctx context.Context, req RecordAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format")
	}

	record, err := s.repo.Upsert(ctx, &models.Attendance{
		StudentID:  req.StudentID,
		SubjectID:  req.SubjectID,
		ClassTime:  req.ClassTime,
		Date:       date,
		Status:     models.AttendanceStatus(strings.ToLower(req.Status)),
		Confidence: req.Confidence,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	return record, nil
}

// MarkAbsentees inserts absent rows for enrolled students with no record
// for the slot. Students already recognized keep their present rows.
func (s *AttendanceService) MarkAbsentees(ctx context.Context, subjectID, classTime string, date time.Time) (int, error) {
	if subjectID == "" || classTime == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "subject_id and class_time are required")
	}
	students, err := s.students.ListEnrolled(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrolled students")
	}

	marked := 0
	for _, student := range students {
		inserted, err := s.repo.InsertAbsentIfMissing(ctx, &models.Attendance{
			StudentID: student.ID,
			SubjectID: subjectID,
			ClassTime: classTime,
			Date:      date,
			Status:    models.AttendanceAbsent,
		})
		if err != nil {
			return marked, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark absentee")
		}
		if inserted {
			marked++
		}
	}

	s.logger.Info("absentees marked",
		zap.String("subject_id", subjectID),
		zap.String("class_time", classTime),
		zap.Int("marked", marked),
	)
	return marked, nil
}

// Report builds the attendance dataset for a subject and date range,
// serving from cache when fresh.
func (s *AttendanceService) Report(ctx context.Context, subjectID string, from, to time.Time) ([]models.AttendanceReportRow, error) {
	if subjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject_id is required")
	}
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date range is inverted")
	}

	key := fmt.Sprintf("report:attendance:%s:%s:%s", subjectID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached []models.AttendanceReportRow
	if s.cache != nil {
		start := time.Now()
		err := s.cache.Get(ctx, key, &cached)
		s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		if err == nil {
			return cached, nil
		}
	}

	rows, err := s.repo.Report(ctx, subjectID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build report")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, rows, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache report", zap.String("key", key), zap.Error(err))
		}
	}
	return rows, nil
}

// ReportDataset converts report rows into the exporter table shape.
func ReportDataset(rows []models.AttendanceReportRow) export.Dataset {
	headers := []string{"Date", "Student", "Subject", "Class Time", "Status", "Confidence"}
	out := export.Dataset{Headers: headers, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		confidence := ""
		if row.Confidence != nil {
			confidence = fmt.Sprintf("%.3f", *row.Confidence)
		}
		out.Rows = append(out.Rows, map[string]string{
			"Date":       row.Date.Format("2006-01-02"),
			"Student":    row.StudentName,
			"Subject":    row.SubjectName,
			"Class Time": row.ClassTime,
			"Status":     string(row.Status),
			"Confidence": confidence,
		})
	}
	return out
}
