package config

// DefaultDenylistDomains returns domains whose visits are usually not worth
// surfacing in results: banking, password managers, auth providers and
// healthcare portals. A freshly generated config file lists them as
// query_filters; DefaultConfig itself applies none.
func DefaultDenylistDomains() []string {
	return []string{
		// Banking & Financial
		"chase.com",
		"bankofamerica.com",
		"wellsfargo.com",
		"paypal.com",
		// Password Managers
		"1password.com",
		"bitwarden.com",
		"lastpass.com",
		// Auth Providers
		"accounts.google.com",
		"login.microsoftonline.com",
		"okta.com",
		// Healthcare
		"mychart.com",
	}
}

// DenylistFilters turns DefaultDenylistDomains into domain filters.
func DenylistFilters() []FilterConfig {
	domains := DefaultDenylistDomains()
	out := make([]FilterConfig, len(domains))
	for i, d := range domains {
		out[i] = FilterConfig{Type: "domain", Value: d}
	}
	return out
}
