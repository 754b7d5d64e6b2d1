package models

// UserRole represents the roles recognised by the billing API's RBAC.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleBursar     UserRole = "BURSAR"
	// RoleSystem is carried by service tokens of the enrollment application
	// and the payment webhook relay.
	RoleSystem UserRole = "SYSTEM"
)

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
