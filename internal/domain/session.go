package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// SessionState is the persisted authenticated state of a tenant.
type SessionState struct {
	Cookies    []Cookie
	CapturedAt time.Time
}

func (s SessionState) Empty() bool {
	return len(s.Cookies) == 0
}

func EncodeCookies(cookies []Cookie) (string, error) {
	if len(cookies) == 0 {
		return "", nil
	}

	data, err := json.Marshal(cookies)
	if err != nil {
		return "", fmt.Errorf("encode session cookies: %w", err)
	}

	return string(data), nil
}

func DecodeCookies(raw string) ([]Cookie, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}

	var cookies []Cookie
	if err := json.Unmarshal([]byte(raw), &cookies); err != nil {
		return nil, fmt.Errorf("decode session cookies: %w", err)
	}

	return cookies, nil
}
