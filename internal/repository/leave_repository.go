package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-face-api/internal/models"
)

// LeaveRepository persists leave requests and their substitutions.
type LeaveRepository struct {
	db *sqlx.DB
}

// NewLeaveRepository constructs the repository.
func NewLeaveRepository(db *sqlx.DB) *LeaveRepository {
	return &LeaveRepository{db: db}
}

const leaveColumns = "id, teacher_id, timetable_entry_id, date, replacement_teacher_id, auto_assigned, status, created_at, updated_at"

// Create inserts a new leave request in state open.
func (r *LeaveRepository) Create(ctx context.Context, request *models.LeaveRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	request.Status = models.LeaveOpen

	const query = `INSERT INTO leave_requests (id, teacher_id, timetable_entry_id, date, replacement_teacher_id, auto_assigned, status, created_at, updated_at)
		VALUES (:id, :teacher_id, :timetable_entry_id, :date, :replacement_teacher_id, :auto_assigned, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create leave request: %w", err)
	}
	return nil
}

// FindByID fetches a leave request by ID.
func (r *LeaveRepository) FindByID(ctx context.Context, id string) (*models.LeaveRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM leave_requests WHERE id = $1", leaveColumns)
	var request models.LeaveRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns leave requests, optionally filtered by status.
func (r *LeaveRepository) List(ctx context.Context, status *models.LeaveStatus) ([]models.LeaveRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM leave_requests", leaveColumns)
	var args []interface{}
	if status != nil {
		query += " WHERE status = $1"
		args = append(args, *status)
	}
	query += " ORDER BY created_at DESC"

	var requests []models.LeaveRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list leave requests: %w", err)
	}
	return requests, nil
}

// Resolve transitions an open request to resolved with a compare-and-set
// on status, writing the effective replacement back and creating the
// Substitution row in the same transaction. Concurrent resolve/reject
// calls race on the status update, so at most one wins and at most one
// Substitution row can ever exist per request.
func (r *LeaveRepository) Resolve(ctx context.Context, id string, replacement *string) (*models.LeaveRequest, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin resolve leave: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const update = `UPDATE leave_requests
		SET status = $2, replacement_teacher_id = $3, updated_at = $4
		WHERE id = $1 AND status = $5
		RETURNING ` + leaveColumns
	var request models.LeaveRequest
	err = tx.GetContext(ctx, &request, update, id, models.LeaveResolved, replacement, time.Now().UTC(), models.LeaveOpen)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("resolve leave request: %w", err)
	}

	if replacement != nil {
		sub := models.Substitution{
			ID:                   uuid.NewString(),
			TimetableEntryID:     request.TimetableEntryID,
			Date:                 request.Date,
			OriginalTeacherID:    request.TeacherID,
			ReplacementTeacherID: *replacement,
			CreatedAt:            time.Now().UTC(),
		}
		const insert = `INSERT INTO substitutions (id, timetable_entry_id, date, original_teacher_id, replacement_teacher_id, created_at)
			VALUES (:id, :timetable_entry_id, :date, :original_teacher_id, :replacement_teacher_id, :created_at)`
		if _, err := tx.NamedExecContext(ctx, insert, sub); err != nil {
			return nil, fmt.Errorf("create substitution: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit resolve leave: %w", err)
	}
	return &request, nil
}

// Reject transitions an open request to rejected with the same
// compare-and-set guard as Resolve. No Substitution is created.
func (r *LeaveRepository) Reject(ctx context.Context, id string) (*models.LeaveRequest, error) {
	const update = `UPDATE leave_requests
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4
		RETURNING ` + leaveColumns
	var request models.LeaveRequest
	err := r.db.GetContext(ctx, &request, update, id, models.LeaveRejected, time.Now().UTC(), models.LeaveOpen)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("reject leave request: %w", err)
	}
	return &request, nil
}

// ListSubstitutions returns substitutions, newest first.
func (r *LeaveRepository) ListSubstitutions(ctx context.Context) ([]models.Substitution, error) {
	const query = `SELECT id, timetable_entry_id, date, original_teacher_id, replacement_teacher_id, created_at
		FROM substitutions ORDER BY created_at DESC`
	var subs []models.Substitution
	if err := r.db.SelectContext(ctx, &subs, query); err != nil {
		return nil, fmt.Errorf("list substitutions: %w", err)
	}
	return subs, nil
}
