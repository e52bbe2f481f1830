// internal/service/loyalty/domain/identity.go
package domain

// Role 是调用者的角色，由上游身份服务签发，本服务不再做认证
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// Principal 是已认证的调用者
type Principal struct {
	ID   string
	Role Role
}

func (p Principal) IsAdmin() bool    { return p.Role == RoleAdmin }
func (p Principal) IsCustomer() bool { return p.Role == RoleCustomer }
