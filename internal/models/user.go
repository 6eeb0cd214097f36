package models

// Roles stored on a user profile. An empty role means RoleUser.
const (
	RoleUser   = "user"
	RoleAdmin  = "admin"
	RoleDoctor = "doctor"
)

// User is the profile stored at users/{uid}. It is separate from the login
// account, which lives in the auth package.
type User struct {
	ID        string `json:"id,omitempty"`
	UID       string `json:"uid"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Role      string `json:"role,omitempty"` // "user", "admin" or "doctor"
	CreatedAt int64  `json:"createdAt,omitempty"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
}

func (u *User) SetID(id string) {
	u.ID = id
	if u.UID == "" {
		u.UID = id
	}
}
