package domain

// Token roles.
const (
	RoleVoter = "voter"
	RoleAdmin = "admin"
)
