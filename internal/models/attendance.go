package models

import "time"

// AttendanceStatus enumerates valid attendance states.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
)

// Valid reports whether the status is a known value.
func (s AttendanceStatus) Valid() bool {
	return s == AttendancePresent || s == AttendanceAbsent
}

// Attendance is one attendance fact for a student in a subject time slot
// on a calendar date. At most one row exists per (student, subject,
// class_time, date); re-recognition updates the existing row.
type Attendance struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	SubjectID  string           `db:"subject_id" json:"subject_id"`
	ClassTime  string           `db:"class_time" json:"class_time"`
	Date       time.Time        `db:"date" json:"date"`
	Status     AttendanceStatus `db:"status" json:"status"`
	Confidence *float64         `db:"confidence" json:"confidence,omitempty"`
	RecordedAt time.Time        `db:"recorded_at" json:"recorded_at"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

// AttendanceFilter captures filters for listing attendance rows.
type AttendanceFilter struct {
	StudentID string
	SubjectID string
	ClassTime string
	Status    *AttendanceStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// AttendanceReportRow is a joined row used for subject reports and exports.
type AttendanceReportRow struct {
	StudentID   string           `db:"student_id" json:"student_id"`
	StudentName string           `db:"student_name" json:"student_name"`
	SubjectName string           `db:"subject_name" json:"subject_name"`
	ClassTime   string           `db:"class_time" json:"class_time"`
	Date        time.Time        `db:"date" json:"date"`
	Status      AttendanceStatus `db:"status" json:"status"`
	Confidence  *float64         `db:"confidence" json:"confidence,omitempty"`
}
