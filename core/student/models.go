package student

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// Categories
const (
	CategoryResident = "resident" // boarding students, eligible for overhead allocation
	CategoryDay      = "day"
)

// Statuses
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusAlumni   = "alumni"
)

type Student struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	FullName  string      `json:"full_name" db:"full_name"`
	Code      string      `json:"code" db:"code"` // registration number
	Category  string      `json:"category" db:"category"`
	Status    string      `json:"status" db:"status"`
	Program   null.String `json:"program" db:"program"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

// IsEligible reports whether the student participates in overhead
// distribution: an active resident.
func (s Student) IsEligible() bool {
	return s.Category == CategoryResident && s.Status == StatusActive
}

type QueryFilter struct {
	Search   string `query:"search"`
	Category string `query:"category"`
	Status   string `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Category == "" && qf.Status == ""
}
