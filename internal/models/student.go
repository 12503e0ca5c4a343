package models

import "time"

// Student represents an enrolled learner whose face can be registered
// for recognition-based attendance.
type Student struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	Username  string    `db:"username" json:"username"`
	Course    *string   `db:"course" json:"course,omitempty"`
	Semester  *string   `db:"semester" json:"semester,omitempty"`
	Enrolled  bool      `db:"face_enrolled" json:"face_enrolled"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter captures filtering options for listing students.
type StudentFilter struct {
	Search    string
	Course    string
	Semester  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
