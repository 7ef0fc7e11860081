package models

import "strings"

// Role shortnames resolved through mdl_role_assignments.
const (
	RoleStudent           = "student"
	RoleCompanyManager    = "companymanager"
	RoleDepartmentManager = "companydepartmentmanager"
)

// User mirrors the mdl_user columns the reports read.
type User struct {
	ID           int64  `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	FirstName    string `db:"firstname" json:"first_name"`
	LastName     string `db:"lastname" json:"last_name"`
	Email        string `db:"email" json:"email"`
	Suspended    bool   `db:"suspended" json:"suspended"`
	Picture      int64  `db:"picture" json:"picture"`
	TimeCreated  int64  `db:"timecreated" json:"time_created"`
	TimeModified int64  `db:"timemodified" json:"time_modified"`
	LastAccess   int64  `db:"lastaccess" json:"last_access"`
}

// FullName joins first and last names the way the LMS displays them.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// TotalPages derives the page count for templates.
func (p Pagination) TotalPages() int {
	if p.PageSize <= 0 || p.TotalCount == 0 {
		return 1
	}
	return (p.TotalCount + p.PageSize - 1) / p.PageSize
}
