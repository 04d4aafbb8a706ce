package gateway

import "fmt"

// Environment selects the SlashID deployment the client talks to.
type Environment string

const (
	Production Environment = "production"
	Sandbox    Environment = "sandbox"
)

var baseURLs = map[Environment]string{
	Production: "https://api.slashid.com/",
	Sandbox:    "https://api.sandbox.slashid.com/",
}

// ParseEnvironment validates s against the known environments.
func ParseEnvironment(s string) (Environment, error) {
	env := Environment(s)
	if _, ok := baseURLs[env]; !ok {
		return "", fmt.Errorf("invalid environment %q: valid options are %q or %q", s, Production, Sandbox)
	}
	return env, nil
}

// BaseURL returns the API root for env, with a trailing slash. It is empty for
// unknown environments.
func (env Environment) BaseURL() string { return baseURLs[env] }

// Credentials identify the organization on every request. They are never
// logged or echoed in errors.
type Credentials struct {
	OrganizationID string
	APIKey         string
}

// String keeps the API key out of fmt output.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{OrganizationID: %s, APIKey: <redacted>}", c.OrganizationID)
}
