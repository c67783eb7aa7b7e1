package application

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/tenantctl/internal/domain"
	"github.com/bnema/tenantctl/internal/ports"
)

type Requirements struct {
	Required    []string
	Optional    []string
	Credentials bool
}

type Credentials struct {
	Username string
	Password string
}

type ScriptInput struct {
	Tenant      domain.Tenant
	Params      domain.Params
	Credentials Credentials
	// RestoredSession is true when saved cookies were applied at launch.
	RestoredSession bool
}

// Script is the interaction protocol bound to one action kind. A script
// always runs from its first step; any failing step aborts it.
type Script interface {
	Kind() domain.ActionKind
	Requirements() Requirements
	Validate(params domain.Params) error
	Run(ctx context.Context, driver ports.Driver, in ScriptInput) (map[string]any, error)
}

type Markers struct {
	UsernameField       string
	PasswordField       string
	LoginSubmit         string
	AuthenticatedMarker string
	UploadInput         string
	UploadComplete      string
	TitleField          string
	CaptionField        string
	PublishButton       string
	PublishSuccess      string
	FollowButton        string
	EndorseButton       string
	CommentInput        string
	CommentSend         string
}

// Surface describes where and how scripts reach the remote UI.
type Surface struct {
	BaseURL       string
	LoginPath     string
	PublishPath   string
	ProfilePrefix string
	Markers       Markers
}

func DefaultSurface() Surface {
	return Surface{
		BaseURL:       "https://www.tiktok.com",
		LoginPath:     "/login",
		PublishPath:   "/upload",
		ProfilePrefix: "/@",
		Markers: Markers{
			UsernameField:       `input[name="username"]`,
			PasswordField:       `input[name="password"]`,
			LoginSubmit:         `button[type="submit"]`,
			AuthenticatedMarker: `div[data-e2e="user-avatar"]`,
			UploadInput:         `input[type="file"]`,
			UploadComplete:      `div[data-e2e="upload-complete"]`,
			TitleField:          `div[data-e2e="video-title"]`,
			CaptionField:        `div[data-e2e="video-caption"]`,
			PublishButton:       `button[data-e2e="publish-button"]`,
			PublishSuccess:      `div[data-e2e="publish-success"]`,
			FollowButton:        `button[data-e2e="follow-button"]`,
			EndorseButton:       `button[data-e2e="like-button"]`,
			CommentInput:        `div[data-e2e="comment-input"]`,
			CommentSend:         `button[data-e2e="comment-send"]`,
		},
	}
}

func (s Surface) url(path string) string {
	return strings.TrimRight(s.BaseURL, "/") + path
}

func (s Surface) profileURL(username string) string {
	return s.url(s.ProfilePrefix + strings.TrimPrefix(username, "@"))
}

type ScriptTimeouts struct {
	Navigate      time.Duration
	Form          time.Duration
	Authenticated time.Duration
	Verify        time.Duration
	Locate        time.Duration
	Processing    time.Duration
	Confirm       time.Duration
	Settle        time.Duration
}

func DefaultScriptTimeouts() ScriptTimeouts {
	return ScriptTimeouts{
		Navigate:      60 * time.Second,
		Form:          30 * time.Second,
		Authenticated: 30 * time.Second,
		Verify:        10 * time.Second,
		Locate:        10 * time.Second,
		Processing:    120 * time.Second,
		Confirm:       60 * time.Second,
		Settle:        2 * time.Second,
	}
}

type Catalog struct {
	scripts map[domain.ActionKind]Script
	order   []domain.ActionKind
}

func NewCatalog(scripts ...Script) (*Catalog, error) {
	catalog := &Catalog{scripts: make(map[domain.ActionKind]Script, len(scripts))}
	for _, script := range scripts {
		kind := script.Kind()
		if _, err := domain.ParseActionKind(string(kind)); err != nil {
			return nil, fmt.Errorf("register script: %w", err)
		}
		if _, exists := catalog.scripts[kind]; exists {
			return nil, fmt.Errorf("register script: duplicate action %q", kind)
		}
		catalog.scripts[kind] = script
		catalog.order = append(catalog.order, kind)
	}

	return catalog, nil
}

// DefaultCatalog binds every action kind to its script.
func DefaultCatalog(surface Surface, timeouts ScriptTimeouts) *Catalog {
	catalog, err := NewCatalog(
		authenticateScript{surface: surface, timeouts: timeouts},
		publishScript{surface: surface, timeouts: timeouts},
		followTargetScript{surface: surface, timeouts: timeouts},
		endorseContentScript{surface: surface, timeouts: timeouts},
		commentContentScript{surface: surface, timeouts: timeouts},
	)
	if err != nil {
		panic(err)
	}

	return catalog
}

func (c *Catalog) Lookup(action string) (Script, error) {
	kind, err := domain.ParseActionKind(action)
	if err != nil {
		return nil, err
	}

	script, ok := c.scripts[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q has no script", domain.ErrUnsupportedAction, action)
	}

	return script, nil
}

func (c *Catalog) Scripts() []Script {
	scripts := make([]Script, 0, len(c.order))
	for _, kind := range c.order {
		scripts = append(scripts, c.scripts[kind])
	}
	return scripts
}

func checkContentURL(params domain.Params) error {
	raw := params.Get(domain.ParamContentURL)
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%w: contentUrl %q is not an absolute http(s) url", domain.ErrInvalidParams, raw)
	}
	return nil
}
