package models

// Tenant is a school (IOMAD company) scoping every report query.
type Tenant struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	ShortName string `db:"shortname" json:"short_name"`
}

// Company membership manager types stored in mdl_company_users.managertype.
const (
	ManagerTypeNone       = 0
	ManagerTypeCompany    = 1
	ManagerTypeDepartment = 2
)
