package application

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bnema/tenantctl/internal/domain"
	"github.com/bnema/tenantctl/internal/ports"
)

var errCredentialsRejected = errors.New("credentials rejected")

type authenticateScript struct {
	surface  Surface
	timeouts ScriptTimeouts
}

func (authenticateScript) Kind() domain.ActionKind { return domain.ActionAuthenticate }

func (authenticateScript) Requirements() Requirements {
	return Requirements{
		Optional:    []string{domain.ParamUsername, domain.ParamPassword},
		Credentials: true,
	}
}

func (s authenticateScript) Validate(params domain.Params) error {
	req := s.Requirements()
	return params.Check(req.Required, req.Optional)
}

func (s authenticateScript) Run(ctx context.Context, driver ports.Driver, in ScriptInput) (map[string]any, error) {
	st := steps{driver: driver, timeouts: s.timeouts}
	m := s.surface.Markers

	if err := st.navigate(ctx, "open login surface", s.surface.url(s.surface.LoginPath)); err != nil {
		return nil, err
	}

	if in.RestoredSession {
		err := driver.WaitFor(ctx, m.AuthenticatedMarker, s.timeouts.Verify)
		if err == nil {
			return map[string]any{"username": in.Credentials.Username, "restored": true}, nil
		}
		if ctx.Err() != nil || !isWaitTimeout(err) {
			return nil, classify(ctx, "verify restored session", err, domain.FailureActionTimeout, domain.FailureResource)
		}
		// The saved session expired; fall through to a credential login.
	}

	if in.Credentials.Password == "" {
		return nil, domain.NewActionError(domain.FailureLogin, "submit credentials", errors.New("no password available"))
	}

	if err := st.locate(ctx, "wait for login form", m.UsernameField, s.timeouts.Form, domain.FailureElementNotFound); err != nil {
		return nil, err
	}
	if err := st.typeText(ctx, "enter username", m.UsernameField, in.Credentials.Username, domain.FailureElementNotFound); err != nil {
		return nil, err
	}
	if err := st.typeText(ctx, "enter password", m.PasswordField, in.Credentials.Password, domain.FailureElementNotFound); err != nil {
		return nil, err
	}
	if err := st.click(ctx, "submit credentials", m.LoginSubmit, domain.FailureElementNotFound); err != nil {
		return nil, err
	}

	if err := driver.WaitFor(ctx, m.AuthenticatedMarker, s.timeouts.Authenticated); err != nil {
		if ctx.Err() == nil && isWaitTimeout(err) {
			if stillOnForm, existsErr := driver.Exists(ctx, m.PasswordField); existsErr == nil && stillOnForm {
				return nil, domain.NewActionError(domain.FailureLogin, "wait for authenticated marker", errCredentialsRejected)
			}
		}
		return nil, classify(ctx, "wait for authenticated marker", err, domain.FailureActionTimeout, domain.FailureResource)
	}

	return map[string]any{"username": in.Credentials.Username, "restored": false}, nil
}

type publishScript struct {
	surface  Surface
	timeouts ScriptTimeouts
}

func (publishScript) Kind() domain.ActionKind { return domain.ActionPublish }

func (publishScript) Requirements() Requirements {
	return Requirements{
		Required: []string{domain.ParamMediaPath},
		Optional: []string{domain.ParamTitle, domain.ParamDescription},
	}
}

func (s publishScript) Validate(params domain.Params) error {
	req := s.Requirements()
	if err := params.Check(req.Required, req.Optional); err != nil {
		return err
	}

	info, err := os.Stat(params.Get(domain.ParamMediaPath))
	if err != nil {
		return fmt.Errorf("%w: mediaPath: %w", domain.ErrInvalidParams, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: mediaPath %q is a directory", domain.ErrInvalidParams, params.Get(domain.ParamMediaPath))
	}

	return nil
}

func (s publishScript) Run(ctx context.Context, driver ports.Driver, in ScriptInput) (map[string]any, error) {
	st := steps{driver: driver, timeouts: s.timeouts}
	m := s.surface.Markers
	mediaPath := in.Params.Get(domain.ParamMediaPath)
	title := in.Params.Get(domain.ParamTitle)
	description := in.Params.Get(domain.ParamDescription)

	if err := st.navigate(ctx, "open publish surface", s.surface.url(s.surface.PublishPath)); err != nil {
		return nil, err
	}
	if err := st.locate(ctx, "locate upload input", m.UploadInput, s.timeouts.Form, domain.FailureElementNotFound); err != nil {
		return nil, err
	}
	if err := st.upload(ctx, "upload media", m.UploadInput, mediaPath); err != nil {
		return nil, err
	}
	if err := st.confirm(ctx, "wait for processed marker", m.UploadComplete, s.timeouts.Processing); err != nil {
		return nil, err
	}

	if title != "" {
		if err := st.locate(ctx, "locate title field", m.TitleField, s.timeouts.Locate, domain.FailureElementNotFound); err != nil {
			return nil, err
		}
		if err := st.typeText(ctx, "fill title", m.TitleField, title, domain.FailureElementNotFound); err != nil {
			return nil, err
		}
	}
	if description != "" {
		if err := st.locate(ctx, "locate description field", m.CaptionField, s.timeouts.Locate, domain.FailureElementNotFound); err != nil {
			return nil, err
		}
		if err := st.typeText(ctx, "fill description", m.CaptionField, description, domain.FailureElementNotFound); err != nil {
			return nil, err
		}
	}

	if err := st.locate(ctx, "locate publish button", m.PublishButton, s.timeouts.Locate, domain.FailureElementNotFound); err != nil {
		return nil, err
	}
	if err := st.click(ctx, "submit publish", m.PublishButton, domain.FailureElementNotFound); err != nil {
		return nil, err
	}
	if err := st.confirm(ctx, "wait for success marker", m.PublishSuccess, s.timeouts.Confirm); err != nil {
		return nil, err
	}

	payload := map[string]any{"mediaPath": mediaPath}
	if title != "" {
		payload["title"] = title
	}
	return payload, nil
}

type followTargetScript struct {
	surface  Surface
	timeouts ScriptTimeouts
}

func (followTargetScript) Kind() domain.ActionKind { return domain.ActionFollowTarget }

func (followTargetScript) Requirements() Requirements {
	return Requirements{Required: []string{domain.ParamTargetUsername}}
}

func (s followTargetScript) Validate(params domain.Params) error {
	req := s.Requirements()
	return params.Check(req.Required, req.Optional)
}

func (s followTargetScript) Run(ctx context.Context, driver ports.Driver, in ScriptInput) (map[string]any, error) {
	st := steps{driver: driver, timeouts: s.timeouts}
	target := in.Params.Get(domain.ParamTargetUsername)

	if err := st.navigate(ctx, "open target profile", s.surface.profileURL(target)); err != nil {
		return nil, err
	}
	// A missing follow control usually means the target is already followed.
	if err := st.locate(ctx, "locate follow control", s.surface.Markers.FollowButton, s.timeouts.Locate, domain.FailureElementNotFound); err != nil {
		return nil, err
	}
	if err := st.click(ctx, "follow target", s.surface.Markers.FollowButton, domain.FailureElementNotFound); err != nil {
		return nil, err
	}
	if err := st.settle(ctx); err != nil {
		return nil, err
	}

	return map[string]any{"targetUsername": target}, nil
}

type endorseContentScript struct {
	surface  Surface
	timeouts ScriptTimeouts
}

func (endorseContentScript) Kind() domain.ActionKind { return domain.ActionEndorseContent }

func (endorseContentScript) Requirements() Requirements {
	return Requirements{Required: []string{domain.ParamContentURL}}
}

func (s endorseContentScript) Validate(params domain.Params) error {
	req := s.Requirements()
	if err := params.Check(req.Required, req.Optional); err != nil {
		return err
	}
	return checkContentURL(params)
}

func (s endorseContentScript) Run(ctx context.Context, driver ports.Driver, in ScriptInput) (map[string]any, error) {
	st := steps{driver: driver, timeouts: s.timeouts}
	contentURL := in.Params.Get(domain.ParamContentURL)

	if err := st.navigate(ctx, "open content", contentURL); err != nil {
		return nil, err
	}
	if err := st.locate(ctx, "locate endorse control", s.surface.Markers.EndorseButton, s.timeouts.Locate, domain.FailureElementNotFound); err != nil {
		return nil, err
	}
	if err := st.click(ctx, "endorse content", s.surface.Markers.EndorseButton, domain.FailureElementNotFound); err != nil {
		return nil, err
	}
	if err := st.settle(ctx); err != nil {
		return nil, err
	}

	return map[string]any{"contentUrl": contentURL}, nil
}

type commentContentScript struct {
	surface  Surface
	timeouts ScriptTimeouts
}

func (commentContentScript) Kind() domain.ActionKind { return domain.ActionCommentContent }

func (commentContentScript) Requirements() Requirements {
	return Requirements{Required: []string{domain.ParamContentURL, domain.ParamText}}
}

func (s commentContentScript) Validate(params domain.Params) error {
	req := s.Requirements()
	if err := params.Check(req.Required, req.Optional); err != nil {
		return err
	}
	return checkContentURL(params)
}

func (s commentContentScript) Run(ctx context.Context, driver ports.Driver, in ScriptInput) (map[string]any, error) {
	st := steps{driver: driver, timeouts: s.timeouts}
	m := s.surface.Markers
	contentURL := in.Params.Get(domain.ParamContentURL)
	text := in.Params.Get(domain.ParamText)

	if err := st.navigate(ctx, "open content", contentURL); err != nil {
		return nil, err
	}
	if err := st.locate(ctx, "locate comment input", m.CommentInput, s.timeouts.Locate, domain.FailureElementNotFound); err != nil {
		return nil, err
	}
	if err := st.typeText(ctx, "type comment", m.CommentInput, text, domain.FailureElementNotFound); err != nil {
		return nil, err
	}
	if err := st.locate(ctx, "locate send control", m.CommentSend, s.timeouts.Locate, domain.FailureSubmit); err != nil {
		return nil, err
	}
	if err := st.click(ctx, "send comment", m.CommentSend, domain.FailureSubmit); err != nil {
		return nil, err
	}
	if err := st.settle(ctx); err != nil {
		return nil, err
	}

	return map[string]any{"contentUrl": contentURL, "text": text}, nil
}
