package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-face-api/internal/models"
)

func leaveRows(status models.LeaveStatus, replacement *string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "teacher_id", "timetable_entry_id", "date", "replacement_teacher_id", "auto_assigned", "status", "created_at", "updated_at"}).
		AddRow("leave-1", "t1", "slot-1", "2026-09-01", replacement, true, status, now, now)
}

func TestLeaveRepositoryCreateForcesOpenStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLeaveRepository(db)

	mock.ExpectExec("INSERT INTO leave_requests").
		WillReturnResult(sqlmock.NewResult(1, 1))

	request := &models.LeaveRequest{
		TeacherID:        "t1",
		TimetableEntryID: "slot-1",
		Date:             "2026-09-01",
		Status:           models.LeaveResolved, // caller cannot pre-resolve
	}
	require.NoError(t, repo.Create(context.Background(), request))
	assert.Equal(t, models.LeaveOpen, request.Status)
	assert.NotEmpty(t, request.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryResolveCreatesSubstitution(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLeaveRepository(db)

	replacement := "t2"
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE leave_requests").
		WithArgs("leave-1", models.LeaveResolved, &replacement, sqlmock.AnyArg(), models.LeaveOpen).
		WillReturnRows(leaveRows(models.LeaveResolved, &replacement))
	mock.ExpectExec("INSERT INTO substitutions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	resolved, err := repo.Resolve(context.Background(), "leave-1", &replacement)
	require.NoError(t, err)
	assert.Equal(t, models.LeaveResolved, resolved.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryResolveWithoutReplacementSkipsSubstitution(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLeaveRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE leave_requests").
		WillReturnRows(leaveRows(models.LeaveResolved, nil))
	mock.ExpectCommit()

	resolved, err := repo.Resolve(context.Background(), "leave-1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.LeaveResolved, resolved.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryResolveLosesRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLeaveRepository(db)

	// The compare-and-set matches no row when the request is no longer open.
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE leave_requests").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Resolve(context.Background(), "leave-1", nil)
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryRejectLosesRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLeaveRepository(db)

	mock.ExpectQuery("UPDATE leave_requests").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Reject(context.Background(), "leave-1")
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryListFiltersByStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLeaveRepository(db)

	status := models.LeaveOpen
	mock.ExpectQuery("SELECT .* FROM leave_requests WHERE status = ").
		WithArgs(status).
		WillReturnRows(leaveRows(models.LeaveOpen, nil))

	requests, err := repo.List(context.Background(), &status)
	require.NoError(t, err)
	assert.Len(t, requests, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
