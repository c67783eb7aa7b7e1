package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version int            `toml:"version"`
	Tenants []tenantSchema `toml:"tenants"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported tenants schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

func (s fileSchema) indexOf(id string) int {
	for i := range s.Tenants {
		if s.Tenants[i].ID == id {
			return i
		}
	}
	return -1
}

type tenantSchema struct {
	ID            string        `toml:"id"`
	Username      string        `toml:"username"`
	CredentialRef string        `toml:"credential_ref,omitempty"`
	Status        string        `toml:"status"`
	Launch        launchSchema  `toml:"launch,omitempty"`
	Session       sessionSchema `toml:"session,omitempty"`
	CreatedAt     string        `toml:"created_at,omitempty"`
	UpdatedAt     string        `toml:"updated_at,omitempty"`
}

type launchSchema struct {
	ProxyEndpoint  string `toml:"proxy_endpoint,omitempty"`
	UserAgent      string `toml:"user_agent,omitempty"`
	ViewportWidth  int    `toml:"viewport_width,omitempty"`
	ViewportHeight int    `toml:"viewport_height,omitempty"`
}

// sessionSchema keeps cookies as an opaque JSON document so the file stays
// readable when a session holds dozens of cookies.
type sessionSchema struct {
	Cookies    string `toml:"cookies,omitempty"`
	CapturedAt string `toml:"captured_at,omitempty"`
}
