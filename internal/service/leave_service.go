package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-face-api/internal/models"
	appErrors "github.com/noah-isme/sma-face-api/pkg/errors"
)

type leaveRepository interface {
	Create(ctx context.Context, request *models.LeaveRequest) error
	FindByID(ctx context.Context, id string) (*models.LeaveRequest, error)
	List(ctx context.Context, status *models.LeaveStatus) ([]models.LeaveRequest, error)
	Resolve(ctx context.Context, id string, replacement *string) (*models.LeaveRequest, error)
	Reject(ctx context.Context, id string) (*models.LeaveRequest, error)
	ListSubstitutions(ctx context.Context) ([]models.Substitution, error)
}

type leaveTeacherRepository interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	FirstOtherTeacher(ctx context.Context, excludeID string) (*models.Teacher, error)
}

// CreateLeaveRequest is the payload for filing a leave request.
type CreateLeaveRequest struct {
	TeacherID            string  `json:"teacher_id" validate:"required"`
	TimetableEntryID     string  `json:"timetable_entry_id" validate:"required"`
	Date                 string  `json:"date" validate:"required,datetime=2006-01-02"`
	ReplacementTeacherID *string `json:"replacement_teacher_id"`
}

// ResolveLeaveRequest optionally overrides the stored replacement.
type ResolveLeaveRequest struct {
	ReplacementTeacherID *string `json:"replacement_teacher_id"`
}

// LeaveService runs the leave → substitution workflow: open requests are
// resolved or rejected exactly once, and a resolved request with a
// replacement yields exactly one substitution.
type LeaveService struct {
	leaves    leaveRepository
	teachers  leaveTeacherRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLeaveService constructs a LeaveService.
func NewLeaveService(leaves leaveRepository, teachers leaveTeacherRepository, validate *validator.Validate, logger *zap.Logger) *LeaveService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaveService{leaves: leaves, teachers: teachers, validator: validate, logger: logger}
}

// Create files a leave request. Without an explicit replacement it
// auto-assigns the first other teacher by id; finding none leaves the
// request without a replacement. The request is created open either way.
func (s *LeaveService) Create(ctx context.Context, req CreateLeaveRequest) (*models.LeaveRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leave payload")
	}

	if _, err := s.teachers.FindByID(ctx, req.TeacherID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	replacement := req.ReplacementTeacherID
	autoAssigned := false
	if replacement == nil {
		candidate, err := s.teachers.FirstOtherTeacher(ctx, req.TeacherID)
		if err != nil {
			if err != sql.ErrNoRows {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to pick replacement")
			}
		} else {
			replacement = &candidate.ID
			autoAssigned = true
		}
	} else if _, err := s.teachers.FindByID(ctx, *replacement); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "replacement teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load replacement teacher")
	}

	request := &models.LeaveRequest{
		TeacherID:            req.TeacherID,
		TimetableEntryID:     req.TimetableEntryID,
		Date:                 req.Date,
		ReplacementTeacherID: replacement,
		AutoAssigned:         autoAssigned,
	}
	if err := s.leaves.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create leave request")
	}

	s.logger.Info("leave request created",
		zap.String("leave_id", request.ID),
		zap.String("teacher_id", request.TeacherID),
		zap.Bool("auto_assigned", autoAssigned),
	)
	return request, nil
}

// List returns leave requests, optionally filtered by status.
func (s *LeaveService) List(ctx context.Context, status string) ([]models.LeaveRequest, error) {
	var filter *models.LeaveStatus
	if status != "" {
		parsed := models.LeaveStatus(status)
		if !parsed.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown leave status")
		}
		filter = &parsed
	}
	requests, err := s.leaves.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list leave requests")
	}
	return requests, nil
}

// Resolve closes an open request as resolved. The override, when present,
// wins over the stored (possibly auto-assigned) replacement; resolving
// with no replacement at all is legitimate and records no substitution.
func (s *LeaveService) Resolve(ctx context.Context, id string, req ResolveLeaveRequest) (*models.LeaveRequest, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "leave request is already "+string(current.Status))
	}

	replacement := current.ReplacementTeacherID
	if req.ReplacementTeacherID != nil {
		replacement = req.ReplacementTeacherID
	}

	resolved, err := s.leaves.Resolve(ctx, id, replacement)
	if err != nil {
		if err == sql.ErrNoRows {
			// Lost the race against a concurrent resolve/reject.
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "leave request is no longer open")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve leave request")
	}

	s.logger.Info("leave request resolved",
		zap.String("leave_id", resolved.ID),
		zap.Bool("has_replacement", replacement != nil),
	)
	return resolved, nil
}

// Reject closes an open request as rejected without a substitution.
func (s *LeaveService) Reject(ctx context.Context, id string) (*models.LeaveRequest, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "leave request is already "+string(current.Status))
	}

	rejected, err := s.leaves.Reject(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "leave request is no longer open")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject leave request")
	}

	s.logger.Info("leave request rejected", zap.String("leave_id", rejected.ID))
	return rejected, nil
}

// Substitutions returns all recorded substitutions.
func (s *LeaveService) Substitutions(ctx context.Context) ([]models.Substitution, error) {
	subs, err := s.leaves.ListSubstitutions(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list substitutions")
	}
	return subs, nil
}

func (s *LeaveService) load(ctx context.Context, id string) (*models.LeaveRequest, error) {
	request, err := s.leaves.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave request")
	}
	return request, nil
}
