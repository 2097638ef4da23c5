// Package directive defines the fixed catalog of configuration edits the
// tool manages and the marker protocol that distinguishes engine-authored
// edits from pre-existing ones.
package directive

import "strings"

// Role identifies which configuration file family a directive belongs to.
type Role string

const (
	// RoleLDAPClient is the OpenLDAP client configuration.
	RoleLDAPClient Role = "ldap-client"
	// RoleNSLCD is the name service lookup daemon configuration.
	RoleNSLCD Role = "nslcd"
	// RoleSLAPD is the directory server configuration.
	RoleSLAPD Role = "slapd"
	// RoleSSSD is the optional identity broker configuration.
	RoleSSSD Role = "sssd"
)

// Directive is a single configuration line the engine ensures is present,
// together with the marker comment that records its provenance.
type Directive struct {
	// Name uniquely identifies the directive within the catalog.
	Name string

	// Role selects the configuration file family.
	Role Role

	// Path is the nominal path of the target file. Symlinks and image
	// roots are resolved by the caller before editing.
	Path string

	// Marker is the comment line written immediately above Line. A
	// directive preceded by the marker is engine-authored; the same
	// line without it is foreign and is never claimed or touched.
	Marker string

	// Line is the exact configuration line to ensure.
	Line string

	// Service is the daemon to restart after the file changes, empty
	// when no restart is needed.
	Service string

	// Optional directives target files that may legitimately be absent
	// (the subsystem is not installed); a missing file is then reported
	// quietly instead of as a warning.
	Optional bool
}

// Classification is the three-way provenance verdict for a directive in a
// file. A boolean cannot represent the foreign case, which the validator
// must keep distinct from both "done" and "needs action".
type Classification int

const (
	// Absent means the directive line is not in the file.
	Absent Classification = iota
	// Ours means the line is present with the marker directly above it.
	Ours
	// Foreign means the line is present but was not written by this
	// tool. It satisfies the goal and must be left byte-identical.
	Foreign
)

func (c Classification) String() string {
	switch c {
	case Absent:
		return "absent"
	case Ours:
		return "ours"
	case Foreign:
		return "foreign"
	default:
		return "unknown"
	}
}

// Classify reports whether the directive is absent from content, present
// with provenance (ours), or present without it (foreign). A directive is
// ours only when the nearest non-blank line above it equals the marker.
func Classify(content []byte, d Directive) Classification {
	lines := strings.Split(string(content), "\n")
	idx := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == d.Line {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Absent
	}
	for i := idx - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if trimmed == d.Marker {
			return Ours
		}
		break
	}
	return Foreign
}

// MarkerPresent reports whether the marker comment appears anywhere in
// content. Rollback uses it to decide whether a heuristic strip applies.
func MarkerPresent(content []byte, d Directive) bool {
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == d.Marker {
			return true
		}
	}
	return false
}
