package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-face-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	confidence := 0.87
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "student_id", "subject_id", "class_time", "date", "status", "confidence", "recorded_at", "created_at"}).
		AddRow("att-1", "s1", "sub-1", "08:00-09:00", date, "present", confidence, now, now)
	mock.ExpectQuery("INSERT INTO attendance .* ON CONFLICT \\(student_id, subject_id, class_time, date\\)").
		WillReturnRows(rows)

	stored, err := repo.Upsert(context.Background(), &models.Attendance{
		StudentID:  "s1",
		SubjectID:  "sub-1",
		ClassTime:  "08:00-09:00",
		Date:       date,
		Status:     models.AttendancePresent,
		Confidence: &confidence,
	})
	require.NoError(t, err)
	assert.Equal(t, "att-1", stored.ID)
	assert.Equal(t, models.AttendancePresent, stored.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryInsertAbsentIfMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	record := &models.Attendance{
		StudentID: "s1",
		SubjectID: "sub-1",
		ClassTime: "08:00-09:00",
		Date:      time.Now(),
		Status:    models.AttendanceAbsent,
	}

	mock.ExpectExec("INSERT INTO attendance .* DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	inserted, err := repo.InsertAbsentIfMissing(context.Background(), record)
	require.NoError(t, err)
	assert.True(t, inserted)

	record.ID = ""
	mock.ExpectExec("INSERT INTO attendance .* DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 0))
	inserted, err = repo.InsertAbsentIfMissing(context.Background(), record)
	require.NoError(t, err)
	assert.False(t, inserted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "subject_id", "class_time", "date", "status", "confidence", "recorded_at", "created_at"}).
		AddRow("att-1", "s1", "sub-1", "08:00-09:00", now, "present", nil, now, now)
	mock.ExpectQuery("SELECT id, student_id, subject_id, class_time, date, status, confidence, recorded_at, created_at").
		WithArgs("s1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM attendance WHERE 1=1 AND student_id = $1")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.AttendanceFilter{StudentID: "s1"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryReport(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"student_id", "student_name", "subject_name", "class_time", "date", "status", "confidence"}).
		AddRow("s1", "Alice", "Math", "08:00-09:00", from, "present", 0.91)
	mock.ExpectQuery("SELECT a.student_id, s.full_name AS student_name").
		WithArgs("sub-1", from, to).
		WillReturnRows(rows)

	report, err := repo.Report(context.Background(), "sub-1", from, to)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, "Alice", report[0].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
