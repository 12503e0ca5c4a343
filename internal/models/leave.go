package models

import "time"

// LeaveStatus enumerates the leave request lifecycle. Requests start open
// and end in exactly one of the terminal states.
type LeaveStatus string

const (
	LeaveOpen     LeaveStatus = "open"
	LeaveResolved LeaveStatus = "resolved"
	LeaveRejected LeaveStatus = "rejected"
)

// Valid reports whether the status is a known value.
func (s LeaveStatus) Valid() bool {
	return s == LeaveOpen || s == LeaveResolved || s == LeaveRejected
}

// Terminal reports whether the status permits no further transitions.
func (s LeaveStatus) Terminal() bool {
	return s == LeaveResolved || s == LeaveRejected
}

// LeaveRequest records a teacher asking to be covered for one timetable
// entry on one date. Mutated only through the resolver's guarded
// transitions.
type LeaveRequest struct {
	ID                   string      `db:"id" json:"id"`
	TeacherID            string      `db:"teacher_id" json:"teacher_id"`
	TimetableEntryID     string      `db:"timetable_entry_id" json:"timetable_entry_id"`
	Date                 string      `db:"date" json:"date"`
	ReplacementTeacherID *string     `db:"replacement_teacher_id" json:"replacement_teacher_id,omitempty"`
	AutoAssigned         bool        `db:"auto_assigned" json:"auto_assigned"`
	Status               LeaveStatus `db:"status" json:"status"`
	CreatedAt            time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time   `db:"updated_at" json:"updated_at"`
}

// Substitution is the realized assignment of a replacement teacher,
// created exactly once per resolved request that had a replacement.
type Substitution struct {
	ID                   string    `db:"id" json:"id"`
	TimetableEntryID     string    `db:"timetable_entry_id" json:"timetable_entry_id"`
	Date                 string    `db:"date" json:"date"`
	OriginalTeacherID    string    `db:"original_teacher_id" json:"original_teacher_id"`
	ReplacementTeacherID string    `db:"replacement_teacher_id" json:"replacement_teacher_id"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}
