package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-face-api/internal/models"
	appErrors "github.com/noah-isme/sma-face-api/pkg/errors"
)

type mockAttendanceRepo struct {
	rows       []models.Attendance
	total      int
	upserted   []*models.Attendance
	existing   map[string]bool
	reportRows []models.AttendanceReportRow
	reportHits int
}

func (m *mockAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, int, error) {
	return m.rows, m.total, nil
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error) {
	m.upserted = append(m.upserted, record)
	stored := *record
	stored.ID = "att-1"
	return &stored, nil
}

func (m *mockAttendanceRepo) InsertAbsentIfMissing(ctx context.Context, record *models.Attendance) (bool, error) {
	if m.existing[record.StudentID] {
		return false, nil
	}
	return true, nil
}

func (m *mockAttendanceRepo) Report(ctx context.Context, subjectID string, from, to time.Time) ([]models.AttendanceReportRow, error) {
	m.reportHits++
	return m.reportRows, nil
}

type mockEnrolledStudents struct {
	students []models.Student
}

func (m *mockEnrolledStudents) ListEnrolled(ctx context.Context) ([]models.Student, error) {
	return m.students, nil
}

type memoryCache struct {
	values map[string][]models.AttendanceReportRow
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	rows, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*dest.(*[]models.AttendanceReportRow) = rows
	return nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.values == nil {
		c.values = make(map[string][]models.AttendanceReportRow)
	}
	c.values[key] = value.([]models.AttendanceReportRow)
	return nil
}

func TestAttendanceServiceRecordValidStatus(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := NewAttendanceService(repo, &mockEnrolledStudents{}, nil, time.Minute, nil, validator.New(), zap.NewNop())

	record, err := svc.Record(context.Background(), RecordAttendanceRequest{
		StudentID: "s1",
		SubjectID: "sub-1",
		ClassTime: "08:00-09:00",
		Date:      "2026-09-01",
		Status:    "Present",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendancePresent, record.Status)
	require.Len(t, repo.upserted, 1)
}

func TestAttendanceServiceRecordRejectsUnknownStatus(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceRepo{}, &mockEnrolledStudents{}, nil, time.Minute, nil, validator.New(), zap.NewNop())

	_, err := svc.Record(context.Background(), RecordAttendanceRequest{
		StudentID: "s1",
		SubjectID: "sub-1",
		ClassTime: "08:00-09:00",
		Date:      "2026-09-01",
		Status:    "late",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceMarkAbsenteesSkipsRecorded(t *testing.T) {
	repo := &mockAttendanceRepo{existing: map[string]bool{"s1": true}}
	students := &mockEnrolledStudents{students: []models.Student{
		{ID: "s1"}, {ID: "s2"}, {ID: "s3"},
	}}
	svc := NewAttendanceService(repo, students, nil, time.Minute, nil, validator.New(), zap.NewNop())

	marked, err := svc.MarkAbsentees(context.Background(), "sub-1", "08:00-09:00", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, marked)
}

func TestAttendanceServiceMarkAbsenteesRequiresSlot(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceRepo{}, &mockEnrolledStudents{}, nil, time.Minute, nil, validator.New(), zap.NewNop())

	_, err := svc.MarkAbsentees(context.Background(), "", "08:00-09:00", time.Now())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceReportUsesCacheOnSecondCall(t *testing.T) {
	repo := &mockAttendanceRepo{reportRows: []models.AttendanceReportRow{
		{StudentID: "s1", StudentName: "Alice", SubjectName: "Math", Status: models.AttendancePresent},
	}}
	cache := &memoryCache{}
	svc := NewAttendanceService(repo, &mockEnrolledStudents{}, cache, time.Minute, nil, validator.New(), zap.NewNop())

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)

	first, err := svc.Report(context.Background(), "sub-1", from, to)
	require.NoError(t, err)
	assert.Len(t, first, 1)
	assert.Equal(t, 1, repo.reportHits)

	second, err := svc.Report(context.Background(), "sub-1", from, to)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.reportHits)
}

func TestAttendanceServiceReportRejectsInvertedRange(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceRepo{}, &mockEnrolledStudents{}, nil, time.Minute, nil, validator.New(), zap.NewNop())

	from := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Report(context.Background(), "sub-1", from, to)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportDatasetShapesRows(t *testing.T) {
	confidence := 0.912
	rows := []models.AttendanceReportRow{
		{
			StudentName: "Alice",
			SubjectName: "Math",
			ClassTime:   "08:00-09:00",
			Date:        time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			Status:      models.AttendancePresent,
			Confidence:  &confidence,
		},
		{
			StudentName: "Bob",
			SubjectName: "Math",
			ClassTime:   "08:00-09:00",
			Date:        time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			Status:      models.AttendanceAbsent,
		},
	}

	dataset := ReportDataset(rows)
	assert.Equal(t, []string{"Date", "Student", "Subject", "Class Time", "Status", "Confidence"}, dataset.Headers)
	require.Len(t, dataset.Rows, 2)
	assert.Equal(t, "0.912", dataset.Rows[0]["Confidence"])
	assert.Equal(t, "", dataset.Rows[1]["Confidence"])
	assert.Equal(t, "2026-09-01", dataset.Rows[0]["Date"])
	assert.Equal(t, "absent", dataset.Rows[1]["Status"])
}
