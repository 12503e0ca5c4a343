package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-face-api/internal/models"
)

// AttendanceRepository persists attendance facts.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// List returns attendance rows filtered by provided criteria.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, int, error) {
	base := "FROM attendance WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.ClassTime != "" {
		conditions = append(conditions, fmt.Sprintf("class_time = $%d", len(args)+1))
		args = append(args, filter.ClassTime)
	}
	if filter.Status != nil && filter.Status.Valid() {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "date"
	}
	allowedSorts := map[string]string{
		"date":        "date",
		"recorded_at": "recorded_at",
		"created_at":  "created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "date"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, student_id, subject_id, class_time, date, status, confidence, recorded_at, created_at
		%s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)
	var rows []models.Attendance
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}

	return rows, total, nil
}

// Upsert inserts or updates the attendance row keyed on
// (student_id, subject_id, class_time, date). A later recognition for the
// same slot overwrites status/confidence/recorded_at instead of adding a
// duplicate row.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = now
	}
	query := `INSERT INTO attendance (id, student_id, subject_id, class_time, date, status, confidence, recorded_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (student_id, subject_id, class_time, date)
DO UPDATE SET status = EXCLUDED.status, confidence = EXCLUDED.confidence, recorded_at = EXCLUDED.recorded_at
RETURNING id, student_id, subject_id, class_time, date, status, confidence, recorded_at, created_at`
	var stored models.Attendance
	if err := r.db.GetContext(ctx, &stored, query,
		record.ID, record.StudentID, record.SubjectID, record.ClassTime, record.Date,
		record.Status, record.Confidence, record.RecordedAt, record.CreatedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	return &stored, nil
}

// InsertAbsentIfMissing adds an absent row only when no record exists for
// the slot. Recognized students keep their present rows untouched.
func (r *AttendanceRepository) InsertAbsentIfMissing(ctx context.Context, record *models.Attendance) (bool, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = now
	}
	query := `INSERT INTO attendance (id, student_id, subject_id, class_time, date, status, confidence, recorded_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (student_id, subject_id, class_time, date) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query,
		record.ID, record.StudentID, record.SubjectID, record.ClassTime, record.Date,
		record.Status, record.Confidence, record.RecordedAt, record.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert absent attendance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert absent attendance: %w", err)
	}
	return affected > 0, nil
}

// Report returns joined attendance rows for a subject within a date range.
func (r *AttendanceRepository) Report(ctx context.Context, subjectID string, from, to time.Time) ([]models.AttendanceReportRow, error) {
	const query = `SELECT a.student_id, s.full_name AS student_name, sub.name AS subject_name,
		a.class_time, a.date, a.status, a.confidence
		FROM attendance a
		JOIN students s ON s.id = a.student_id
		JOIN subjects sub ON sub.id = a.subject_id
		WHERE a.subject_id = $1 AND a.date >= $2 AND a.date <= $3
		ORDER BY a.date ASC, s.full_name ASC`
	var rows []models.AttendanceReportRow
	if err := r.db.SelectContext(ctx, &rows, query, subjectID, from, to); err != nil {
		return nil, fmt.Errorf("attendance report: %w", err)
	}
	return rows, nil
}
