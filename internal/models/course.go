package models

// Course mirrors the mdl_course columns used by the reports.
type Course struct {
	ID        int64  `db:"id" json:"id"`
	FullName  string `db:"fullname" json:"full_name"`
	ShortName string `db:"shortname" json:"short_name"`
	Visible   bool   `db:"visible" json:"visible"`
	StartDate int64  `db:"startdate" json:"start_date"`
}
