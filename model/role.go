// Package model provides role-based model selection for report generation.
// Pipeline stages ask for a role (director, writer, fact-checker) instead of a
// concrete model name, and the registry resolves the role to an ordered chain
// of endpoints with fallbacks.
package model

// Role represents the job a model call performs in the pipeline.
type Role string

const (
	// RoleDirector makes research decisions and builds the report plan.
	RoleDirector Role = "director"

	// RoleWriter writes report sections and Legion drafts.
	RoleWriter Role = "writer"

	// RoleSynthesizer merges council drafts.
	RoleSynthesizer Role = "synthesizer"

	// RoleFactChecker critiques merged content and flags claims.
	RoleFactChecker Role = "fact-checker"

	// RoleArtisan rewrites content for polish and originality.
	RoleArtisan Role = "artisan"
)

// AllRoles lists every role the pipeline uses.
func AllRoles() []Role {
	return []Role{RoleDirector, RoleWriter, RoleSynthesizer, RoleFactChecker, RoleArtisan}
}

// IsValid checks if a role string is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleDirector, RoleWriter, RoleSynthesizer, RoleFactChecker, RoleArtisan:
		return true
	}
	return false
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// ParseRole converts a string to a Role, returning empty for invalid values.
func ParseRole(s string) Role {
	role := Role(s)
	if role.IsValid() {
		return role
	}
	return ""
}
