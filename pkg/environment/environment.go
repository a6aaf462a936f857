package environment

import "strings"

// Environment represents the application environment.
type Environment string

const (
	// Development for local development.
	Development Environment = "development"
	// Staging for pre-production.
	Staging Environment = "staging"
	// Production for production.
	Production Environment = "production"
)

// Parse normalizes a raw environment string, accepting common short forms.
// Unknown values fall back to Development so a misconfigured instance stays
// verbose rather than silent.
func Parse(raw string) Environment {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(Production), "prod":
		return Production
	case string(Staging), "stage":
		return Staging
	default:
		return Development
	}
}

// IsProduction reports whether e is the production environment.
func (e Environment) IsProduction() bool { return e == Production }

// IsDevelopment reports whether e is the development environment.
func (e Environment) IsDevelopment() bool { return e == Development }

// String implements fmt.Stringer.
func (e Environment) String() string { return string(e) }
