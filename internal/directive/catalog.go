package directive

// Default file locations per role. A site config can override them when a
// distribution ships the files elsewhere.
const (
	DefaultLDAPClientPath = "/etc/openldap/ldap.conf"
	DefaultNSLCDPath      = "/etc/nslcd.conf"
	DefaultSLAPDPath      = "/cm/local/apps/openldap/etc/slapd.conf"
	DefaultSSSDPath       = "/etc/sssd/sssd.conf"
)

const (
	markerLDAPClient = "# added by certauthctl: client certificate authentication"
	markerNSLCD      = "# added by certauthctl: nslcd certificate authentication"
	markerSLAPD      = "# added by certauthctl: require client certificates"
	markerSSSD       = "# added by certauthctl: sssd certificate authentication"
)

// Catalog returns the fixed set of managed directives. The paths map
// overrides the default file location per role; unknown roles in the map
// are ignored.
//
// The slapd entry changes the value of a single-valued setting. When no
// backup exists, rollback can only strip the engine-authored value, not
// recover whatever value the setting held before; that limitation is
// inherent to the marker-strip fallback and is reported, never guessed
// around.
func Catalog(paths map[Role]string) []Directive {
	path := func(role Role, def string) string {
		if p, ok := paths[role]; ok && p != "" {
			return p
		}
		return def
	}

	return []Directive{
		{
			Name:   "ldap-client-sasl-external",
			Role:   RoleLDAPClient,
			Path:   path(RoleLDAPClient, DefaultLDAPClientPath),
			Marker: markerLDAPClient,
			Line:   "SASL_MECH EXTERNAL",
		},
		{
			Name:    "nslcd-sasl-external",
			Role:    RoleNSLCD,
			Path:    path(RoleNSLCD, DefaultNSLCDPath),
			Marker:  markerNSLCD,
			Line:    "sasl_mech EXTERNAL",
			Service: "nslcd",
		},
		{
			Name:    "nslcd-tls-cert",
			Role:    RoleNSLCD,
			Path:    path(RoleNSLCD, DefaultNSLCDPath),
			Marker:  markerNSLCD,
			Line:    "tls_cert /etc/openldap/certs/client.pem",
			Service: "nslcd",
		},
		{
			Name:    "nslcd-tls-key",
			Role:    RoleNSLCD,
			Path:    path(RoleNSLCD, DefaultNSLCDPath),
			Marker:  markerNSLCD,
			Line:    "tls_key /etc/openldap/certs/client.key",
			Service: "nslcd",
		},
		{
			Name:    "slapd-verify-client",
			Role:    RoleSLAPD,
			Path:    path(RoleSLAPD, DefaultSLAPDPath),
			Marker:  markerSLAPD,
			Line:    "TLSVerifyClient demand",
			Service: "slapd",
		},
		{
			Name:     "sssd-sasl-external",
			Role:     RoleSSSD,
			Path:     path(RoleSSSD, DefaultSSSDPath),
			Marker:   markerSSSD,
			Line:     "ldap_sasl_mech = EXTERNAL",
			Service:  "sssd",
			Optional: true,
		},
	}
}

// ByRoles filters the catalog to the given roles, preserving order.
func ByRoles(catalog []Directive, roles ...Role) []Directive {
	want := make(map[Role]bool, len(roles))
	for _, r := range roles {
		want[r] = true
	}
	var out []Directive
	for _, d := range catalog {
		if want[d.Role] {
			out = append(out, d)
		}
	}
	return out
}

// Services returns the distinct services of the given directives, in
// catalog order.
func Services(ds []Directive) []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range ds {
		if d.Service == "" || seen[d.Service] {
			continue
		}
		seen[d.Service] = true
		out = append(out, d.Service)
	}
	return out
}
