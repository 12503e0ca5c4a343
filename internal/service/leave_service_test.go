package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-face-api/internal/models"
	appErrors "github.com/noah-isme/sma-face-api/pkg/errors"
)

type mockLeaveRepo struct {
	created     *models.LeaveRequest
	byID        *models.LeaveRequest
	findErr     error
	resolveErr  error
	rejectErr   error
	resolved    *models.LeaveRequest
	rejected    *models.LeaveRequest
	lastReplace *string
	subs        []models.Substitution
}

func (m *mockLeaveRepo) Create(ctx context.Context, request *models.LeaveRequest) error {
	request.ID = "leave-1"
	request.Status = models.LeaveOpen
	m.created = request
	return nil
}

func (m *mockLeaveRepo) FindByID(ctx context.Context, id string) (*models.LeaveRequest, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.byID, nil
}

func (m *mockLeaveRepo) List(ctx context.Context, status *models.LeaveStatus) ([]models.LeaveRequest, error) {
	return nil, nil
}

func (m *mockLeaveRepo) Resolve(ctx context.Context, id string, replacement *string) (*models.LeaveRequest, error) {
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	m.lastReplace = replacement
	return m.resolved, nil
}

func (m *mockLeaveRepo) Reject(ctx context.Context, id string) (*models.LeaveRequest, error) {
	if m.rejectErr != nil {
		return nil, m.rejectErr
	}
	return m.rejected, nil
}

func (m *mockLeaveRepo) ListSubstitutions(ctx context.Context) ([]models.Substitution, error) {
	return m.subs, nil
}

type mockLeaveTeacherRepo struct {
	teachers map[string]*models.Teacher
	other    *models.Teacher
	otherErr error
}

func (m *mockLeaveTeacherRepo) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, ok := m.teachers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return teacher, nil
}

func (m *mockLeaveTeacherRepo) FirstOtherTeacher(ctx context.Context, excludeID string) (*models.Teacher, error) {
	if m.otherErr != nil {
		return nil, m.otherErr
	}
	return m.other, nil
}

func TestLeaveServiceCreateAutoAssignsReplacement(t *testing.T) {
	repo := &mockLeaveRepo{}
	teachers := &mockLeaveTeacherRepo{
		teachers: map[string]*models.Teacher{"t1": {ID: "t1"}},
		other:    &models.Teacher{ID: "t2"},
	}
	svc := NewLeaveService(repo, teachers, validator.New(), zap.NewNop())

	request, err := svc.Create(context.Background(), CreateLeaveRequest{
		TeacherID:        "t1",
		TimetableEntryID: "slot-1",
		Date:             "2026-09-01",
	})
	require.NoError(t, err)
	require.NotNil(t, request.ReplacementTeacherID)
	assert.Equal(t, "t2", *request.ReplacementTeacherID)
	assert.True(t, request.AutoAssigned)
	assert.Equal(t, models.LeaveOpen, request.Status)
}

func TestLeaveServiceCreateNoOtherTeacher(t *testing.T) {
	repo := &mockLeaveRepo{}
	teachers := &mockLeaveTeacherRepo{
		teachers: map[string]*models.Teacher{"t1": {ID: "t1"}},
		otherErr: sql.ErrNoRows,
	}
	svc := NewLeaveService(repo, teachers, validator.New(), zap.NewNop())

	request, err := svc.Create(context.Background(), CreateLeaveRequest{
		TeacherID:        "t1",
		TimetableEntryID: "slot-1",
		Date:             "2026-09-01",
	})
	require.NoError(t, err)
	assert.Nil(t, request.ReplacementTeacherID)
	assert.False(t, request.AutoAssigned)
}

func TestLeaveServiceCreateExplicitReplacement(t *testing.T) {
	repo := &mockLeaveRepo{}
	teachers := &mockLeaveTeacherRepo{
		teachers: map[string]*models.Teacher{"t1": {ID: "t1"}, "t9": {ID: "t9"}},
	}
	svc := NewLeaveService(repo, teachers, validator.New(), zap.NewNop())

	replacement := "t9"
	request, err := svc.Create(context.Background(), CreateLeaveRequest{
		TeacherID:            "t1",
		TimetableEntryID:     "slot-1",
		Date:                 "2026-09-01",
		ReplacementTeacherID: &replacement,
	})
	require.NoError(t, err)
	require.NotNil(t, request.ReplacementTeacherID)
	assert.Equal(t, "t9", *request.ReplacementTeacherID)
	assert.False(t, request.AutoAssigned)
}

func TestLeaveServiceCreateUnknownReplacement(t *testing.T) {
	repo := &mockLeaveRepo{}
	teachers := &mockLeaveTeacherRepo{
		teachers: map[string]*models.Teacher{"t1": {ID: "t1"}},
	}
	svc := NewLeaveService(repo, teachers, validator.New(), zap.NewNop())

	replacement := "ghost"
	_, err := svc.Create(context.Background(), CreateLeaveRequest{
		TeacherID:            "t1",
		TimetableEntryID:     "slot-1",
		Date:                 "2026-09-01",
		ReplacementTeacherID: &replacement,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLeaveServiceResolveUsesStoredReplacement(t *testing.T) {
	stored := "t2"
	repo := &mockLeaveRepo{
		byID:     &models.LeaveRequest{ID: "leave-1", Status: models.LeaveOpen, ReplacementTeacherID: &stored},
		resolved: &models.LeaveRequest{ID: "leave-1", Status: models.LeaveResolved, ReplacementTeacherID: &stored},
	}
	svc := NewLeaveService(repo, &mockLeaveTeacherRepo{}, validator.New(), zap.NewNop())

	resolved, err := svc.Resolve(context.Background(), "leave-1", ResolveLeaveRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.LeaveResolved, resolved.Status)
	require.NotNil(t, repo.lastReplace)
	assert.Equal(t, "t2", *repo.lastReplace)
}

func TestLeaveServiceResolveOverrideWins(t *testing.T) {
	stored := "t2"
	override := "t5"
	repo := &mockLeaveRepo{
		byID:     &models.LeaveRequest{ID: "leave-1", Status: models.LeaveOpen, ReplacementTeacherID: &stored},
		resolved: &models.LeaveRequest{ID: "leave-1", Status: models.LeaveResolved, ReplacementTeacherID: &override},
	}
	svc := NewLeaveService(repo, &mockLeaveTeacherRepo{}, validator.New(), zap.NewNop())

	_, err := svc.Resolve(context.Background(), "leave-1", ResolveLeaveRequest{ReplacementTeacherID: &override})
	require.NoError(t, err)
	require.NotNil(t, repo.lastReplace)
	assert.Equal(t, "t5", *repo.lastReplace)
}

func TestLeaveServiceResolveAlreadyTerminal(t *testing.T) {
	repo := &mockLeaveRepo{
		byID: &models.LeaveRequest{ID: "leave-1", Status: models.LeaveRejected},
	}
	svc := NewLeaveService(repo, &mockLeaveTeacherRepo{}, validator.New(), zap.NewNop())

	_, err := svc.Resolve(context.Background(), "leave-1", ResolveLeaveRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "rejected")
}

func TestLeaveServiceResolveLosesRace(t *testing.T) {
	repo := &mockLeaveRepo{
		byID:       &models.LeaveRequest{ID: "leave-1", Status: models.LeaveOpen},
		resolveErr: sql.ErrNoRows,
	}
	svc := NewLeaveService(repo, &mockLeaveTeacherRepo{}, validator.New(), zap.NewNop())

	_, err := svc.Resolve(context.Background(), "leave-1", ResolveLeaveRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestLeaveServiceRejectOpenRequest(t *testing.T) {
	repo := &mockLeaveRepo{
		byID:     &models.LeaveRequest{ID: "leave-1", Status: models.LeaveOpen},
		rejected: &models.LeaveRequest{ID: "leave-1", Status: models.LeaveRejected},
	}
	svc := NewLeaveService(repo, &mockLeaveTeacherRepo{}, validator.New(), zap.NewNop())

	rejected, err := svc.Reject(context.Background(), "leave-1")
	require.NoError(t, err)
	assert.Equal(t, models.LeaveRejected, rejected.Status)
}

func TestLeaveServiceRejectNotFound(t *testing.T) {
	repo := &mockLeaveRepo{findErr: sql.ErrNoRows}
	svc := NewLeaveService(repo, &mockLeaveTeacherRepo{}, validator.New(), zap.NewNop())

	_, err := svc.Reject(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLeaveServiceListRejectsUnknownStatus(t *testing.T) {
	svc := NewLeaveService(&mockLeaveRepo{}, &mockLeaveTeacherRepo{}, validator.New(), zap.NewNop())

	_, err := svc.List(context.Background(), "pending")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
