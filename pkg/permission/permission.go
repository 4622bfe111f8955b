package permission

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAccessDenied       = errors.New("access denied")
	ErrInvalidGrant       = errors.New("invalid grant")
	ErrPermissionNotFound = errors.New("permission not found")
)

// Role is ordered: None < Viewer < Editor < Owner.
type Role int

const (
	None Role = iota
	Viewer
	Editor
	Owner
)

func (r Role) String() string {
	switch r {
	case Viewer:
		return "viewer"
	case Editor:
		return "editor"
	case Owner:
		return "owner"
	default:
		return "none"
	}
}

func (r Role) AtLeast(required Role) bool {
	return r >= required
}

func ParseRole(value string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "viewer":
		return Viewer, nil
	case "editor":
		return Editor, nil
	case "owner":
		return Owner, nil
	case "none", "":
		return None, nil
	}
	return None, fmt.Errorf("%w: unknown role %q", ErrInvalidGrant, value)
}

// Permission is a role granted on one event. Only Editor and Viewer are ever stored,
// the owner entry returned by List is derived from the event itself.
type Permission struct {
	EventId   uuid.UUID
	UserId    int
	Role      Role
	GrantedBy int
	GrantedAt time.Time
}
