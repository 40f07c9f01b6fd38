package models

import (
	"encoding/json"
	"strings"
)

// Viewer is the identity a grid is rendered for. It is resolved per request
// from the backend profile and passed explicitly to whoever needs it.
type Viewer struct {
	ID           ID       `json:"id,omitempty"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Roles        []string `json:"roles"`
	Permissions  []string `json:"permissions"`
	IsSuperAdmin bool     `json:"is_super_admin"`
}

// Profile is the backend's current-user payload.
type Profile struct {
	ID          ID            `json:"id"`
	Name        string        `json:"name"`
	Email       string        `json:"email"`
	Roles       []NamedEntity `json:"roles"`
	Permissions []NamedEntity `json:"permissions"`
}

// NamedEntity is a role or permission; the backend sends either plain strings or {name} objects.
type NamedEntity struct {
	Name string `json:"name"`
}

// UnmarshalJSON accepts "name" or {"name": "..."}.
func (n *NamedEntity) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &n.Name)
	}
	type plain NamedEntity
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*n = NamedEntity(p)
	return nil
}

// NewViewer builds a viewer from a profile. superAdminRole is compared exactly against role names.
func NewViewer(p Profile, superAdminRole string) Viewer {
	v := Viewer{ID: p.ID, Name: p.Name, Email: p.Email}
	for _, r := range p.Roles {
		v.Roles = append(v.Roles, r.Name)
		if superAdminRole != "" && r.Name == superAdminRole {
			v.IsSuperAdmin = true
		}
	}
	for _, perm := range p.Permissions {
		v.Permissions = append(v.Permissions, perm.Name)
	}
	return v
}

// Can reports whether the viewer holds the permission. Super-admins hold all permissions.
func (v Viewer) Can(permission string) bool {
	if v.IsSuperAdmin {
		return true
	}
	for _, p := range v.Permissions {
		if strings.EqualFold(p, permission) {
			return true
		}
	}
	return false
}

// Sees reports whether a lesson is visible to the viewer. Non super-admins
// only see lessons they teach, matched by name.
func (v Viewer) Sees(l Lesson) bool {
	if v.IsSuperAdmin {
		return true
	}
	return v.Name != "" && l.UserName == v.Name
}

// Permission names guarding console routes.
const (
	PermissionScheduleList   = "schedule-list"
	PermissionScheduleCreate = "schedule-create"
	PermissionScheduleEdit   = "schedule-edit"
	PermissionScheduleDelete = "schedule-delete"
)
