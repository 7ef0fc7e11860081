package models

// Student is a tenant member holding the student role.
type Student struct {
	User
	CohortID   *int64  `db:"cohort_id" json:"cohort_id,omitempty"`
	CohortName *string `db:"cohort_name" json:"cohort_name,omitempty"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search   string
	CohortID *int64
	Page     int
	PageSize int
}

// StudentUpdate carries the editable fields of a student profile.
type StudentUpdate struct {
	FirstName string
	LastName  string
	Email     string
	Suspended bool
	// CohortID nil removes the student from every tenant cohort.
	CohortID *int64
}

// NewStudent is the insert shape used by the bulk importer.
type NewStudent struct {
	Username     string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	CohortID     *int64
}

// Cohort is the class/grade grouping used as the report filter.
type Cohort struct {
	ID       int64  `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	IDNumber string `db:"idnumber" json:"id_number"`
}
