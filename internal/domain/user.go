package domain

import "time"

// Role determines what a user may do.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAgent, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// Staff reports whether the role belongs to the support organisation.
func (r Role) Staff() bool {
	return r == RoleAgent || r == RoleManager || r == RoleAdmin
}

// User is any account: customers who submit tickets and the staff that work them.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	IsOnline  bool
	IsAway    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Available reports whether the user can receive new assignments.
func (u *User) Available() bool {
	return u.Role == RoleAgent && u.IsOnline && !u.IsAway
}

// Actor identifies who is performing an operation.
type Actor struct {
	ID   string
	Role Role
}

func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}
