package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the account model. PasswordHash may be empty: accounts created
// through an external login carry no local password until one is added.
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username       string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone          string     `bun:"phone_number" json:"phone_number,omitempty"`
	City           string     `bun:"city" json:"city,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	EmailConfirmed bool       `bun:"is_email_confirmed" json:"is_email_confirmed,omitempty"`
	SecurityStamp  string     `bun:"security_stamp,notnull" json:"-"`
	FailedAttempts int        `bun:"failed_attempts" json:"failed_attempts,omitempty"`
	LockoutEnd     *time.Time `bun:"lockout_end,nullzero" json:"lockout_end,omitempty"`
	LockoutEnabled bool       `bun:"lockout_enabled" json:"lockout_enabled,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// HasPassword reports whether the account has a local password.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != ""
}

// RotateSecurityStamp assigns a fresh stamp. Every credential-affecting
// mutation must go through here so outstanding verification tokens die.
func (u *User) RotateSecurityStamp() {
	u.SecurityStamp = NewSecurityStamp()
}

// NewSecurityStamp returns an opaque stamp value.
func NewSecurityStamp() string {
	return uuid.NewString()
}

// Role is an independently owned named role.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// UserRole joins users to roles (many-to-many).
type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:usrrol"`
	UserID        uuid.UUID `bun:"user_id,pk,type:uuid" json:"user_id"`
	RoleID        uuid.UUID `bun:"role_id,pk,type:uuid" json:"role_id"`
}

// UserClaim is a (type, value) grant held by one user. A user holds at most
// one value per recognized claim type.
type UserClaim struct {
	bun.BaseModel `bun:"table:user_claims,alias:usrclm"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	ClaimType     string    `bun:"claim_type,notnull" json:"claim_type"`
	ClaimValue    string    `bun:"claim_value,notnull" json:"claim_value"`
}

// ExternalLogin links one external identity to exactly one local user.
// (provider, provider_key) is unique across the table.
type ExternalLogin struct {
	bun.BaseModel `bun:"table:external_logins,alias:extlgn"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Provider      string     `bun:"provider,notnull,unique:provider_key" json:"provider"`
	ProviderKey   string     `bun:"provider_key,notnull,unique:provider_key" json:"provider_key"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id"`
	DisplayName   string     `bun:"display_name" json:"display_name,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
