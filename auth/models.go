package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty" yaml:"id"`
	Role           UserRole   `bun:"user_role,notnull" json:"user_role,omitempty" yaml:"role"`
	FirstName      string     `bun:"first_name,notnull" json:"first_name,omitempty" yaml:"first_name"`
	LastName       string     `bun:"last_name,notnull" json:"last_name,omitempty" yaml:"last_name"`
	Username       string     `bun:"username,notnull,unique" json:"username,omitempty" yaml:"username"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty" yaml:"email"`
	PasswordHash   string     `bun:"password_hash" json:"-" yaml:"-"`
	Password       string     `bun:"-" json:"-" yaml:"password"`
	LoginAttempts  int        `bun:"login_attempts" json:"login_attempts,omitempty" yaml:"-"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty" yaml:"-"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty" yaml:"-"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty" yaml:"-"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty" yaml:"-"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty" yaml:"-"`
}

// SessionRecord is a persisted sign in. The token itself is never stored,
// only the JWT id it carries.
type SessionRecord struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	RevokedAt     *time.Time `bun:"revoked_at,nullzero" json:"revoked_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Active reports whether the record can still back a session at t.
func (r *SessionRecord) Active(t time.Time) bool {
	if r == nil || r.RevokedAt != nil {
		return false
	}
	return t.Before(r.ExpiresAt)
}

func sessionFromRecord(record *SessionRecord, user *User, token string) *Session {
	s := &Session{
		ID:        record.ID.String(),
		Token:     token,
		UserID:    record.UserID.String(),
		ExpiresAt: record.ExpiresAt,
		Role:      RoleGuest,
	}
	if user != nil {
		s.Username = user.Username
		s.Email = user.Email
		if user.Role.IsValid() {
			s.Role = user.Role
		}
	}
	return s
}
