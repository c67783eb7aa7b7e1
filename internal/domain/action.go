package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type ActionKind string

const (
	ActionAuthenticate   ActionKind = "authenticate"
	ActionPublish        ActionKind = "publish"
	ActionFollowTarget   ActionKind = "follow-target"
	ActionEndorseContent ActionKind = "endorse-content"
	ActionCommentContent ActionKind = "comment-content"
)

// ActionKinds lists every supported kind in catalog order.
func ActionKinds() []ActionKind {
	return []ActionKind{
		ActionAuthenticate,
		ActionPublish,
		ActionFollowTarget,
		ActionEndorseContent,
		ActionCommentContent,
	}
}

func ParseActionKind(raw string) (ActionKind, error) {
	kind := ActionKind(strings.TrimSpace(raw))
	for _, known := range ActionKinds() {
		if kind == known {
			return kind, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedAction, raw)
}

const (
	ParamUsername       = "username"
	ParamPassword       = "password"
	ParamMediaPath      = "mediaPath"
	ParamTitle          = "title"
	ParamDescription    = "description"
	ParamTargetUsername = "targetUsername"
	ParamContentURL     = "contentUrl"
	ParamText           = "text"
)

type Params map[string]string

func (p Params) Get(key string) string {
	return strings.TrimSpace(p[key])
}

// Check verifies that every required key is present and non-blank and that
// no key outside required and optional is set.
func (p Params) Check(required, optional []string) error {
	allowed := make(map[string]struct{}, len(required)+len(optional))
	var missing []string
	for _, key := range required {
		allowed[key] = struct{}{}
		if p.Get(key) == "" {
			missing = append(missing, key)
		}
	}
	for _, key := range optional {
		allowed[key] = struct{}{}
	}

	var unknown []string
	for key := range p {
		if _, ok := allowed[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	switch {
	case len(missing) > 0:
		return fmt.Errorf("%w: missing %s", ErrInvalidParams, strings.Join(missing, ", "))
	case len(unknown) > 0:
		return fmt.Errorf("%w: unknown %s", ErrInvalidParams, strings.Join(unknown, ", "))
	default:
		return nil
	}
}

type ActionRequest struct {
	TenantID TenantID `json:"tenantId" yaml:"tenantId"`
	Action   string   `json:"action" yaml:"action"`
	Params   Params   `json:"params,omitempty" yaml:"params,omitempty"`
}

type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultFailed  ResultStatus = "failed"
)

// Diagnostic is auxiliary information that never changes a result status.
type Diagnostic struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

type ActionResult struct {
	RunID      string         `json:"runId"`
	TenantID   TenantID       `json:"tenantId"`
	Action     string         `json:"action"`
	Status     ResultStatus   `json:"status"`
	Kind       FailureKind    `json:"kind,omitempty"`
	Message    string         `json:"message"`
	Payload    map[string]any `json:"payload,omitempty"`
	Warnings   []Diagnostic   `json:"warnings,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	DurationMS int64          `json:"durationMs"`
}

func (r ActionResult) Succeeded() bool {
	return r.Status == ResultSuccess
}
