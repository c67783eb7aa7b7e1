package tenants

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/bnema/tenantctl/internal/application"
	"github.com/bnema/tenantctl/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now time.Time
}

func RenderTenants(tenants []application.TenantView, opts RenderOptions) (string, error) {
	return render(func(s styles) string {
		return tenantsView(tenants, opts, s)
	})
}

func RenderResults(results []domain.ActionResult) (string, error) {
	return render(func(s styles) string {
		return resultsView(results, s)
	})
}

func RenderCatalog(scripts []application.Script) (string, error) {
	return render(func(s styles) string {
		return catalogView(scripts, s)
	})
}

func tenantsView(tenants []application.TenantView, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Tenants"),
		s.header.Render(fmt.Sprintf("tenants: %d", len(tenants))),
	}

	if len(tenants) == 0 {
		lines = append(lines, s.empty.Render("No tenants configured."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, tenant := range tenants {
		lines = append(lines, s.section.Render(tenantBlock(tenant, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func tenantBlock(t application.TenantView, opts RenderOptions, s styles) string {
	status := s.detail.Render(string(t.Status))
	if t.Status == domain.TenantStatusSuspended {
		status = s.warning.Render(string(t.Status))
	}

	parts := []string{
		s.tenant.Render(fmt.Sprintf("%s (%s)", sanitize(t.Username), sanitize(string(t.ID)))),
		field(s, "status", status),
		field(s, "credential", s.detail.Render(orNone(t.CredentialRef))),
		field(s, "session", s.detail.Render(sessionLabel(t, opts.Now))),
		field(s, "viewport", s.detail.Render(fmt.Sprintf("%dx%d", t.ViewportWidth, t.ViewportHeight))),
	}
	if t.ProxyEndpoint != "" {
		parts = append(parts, field(s, "proxy", s.detail.Render(redactProxy(t.ProxyEndpoint))))
	}
	if t.UserAgent != "" {
		parts = append(parts, field(s, "user agent", s.detail.Render(sanitize(t.UserAgent))))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func resultsView(results []domain.ActionResult, s styles) string {
	succeeded := 0
	for _, result := range results {
		if result.Succeeded() {
			succeeded++
		}
	}

	lines := []string{
		s.title.Render("Action results"),
		s.header.Render(fmt.Sprintf("runs: %d, succeeded: %d", len(results), succeeded)),
	}

	if len(results) == 0 {
		lines = append(lines, s.empty.Render("No actions were run."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, result := range results {
		lines = append(lines, s.section.Render(resultBlock(result, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func resultBlock(r domain.ActionResult, s styles) string {
	badge := s.success.Render("ok")
	if !r.Succeeded() {
		badge = s.failure.Render("failed")
		if r.Kind != "" {
			badge = s.failure.Render(fmt.Sprintf("failed [%s]", r.Kind))
		}
	}

	heading := lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.tenant.Render(fmt.Sprintf("%s %s", sanitize(string(r.TenantID)), sanitize(r.Action))),
		" ",
		badge,
		" ",
		s.key.Render(fmt.Sprintf("(%s)", formatDuration(time.Duration(r.DurationMS)*time.Millisecond))),
	)

	parts := []string{heading, s.detail.Render(sanitize(r.Message))}
	for _, key := range sortedKeys(r.Payload) {
		parts = append(parts, field(s, key, s.detail.Render(sanitize(fmt.Sprint(r.Payload[key])))))
	}
	for _, warning := range r.Warnings {
		parts = append(parts, s.warning.Render(fmt.Sprintf("warning: %s: %s", warning.Kind, sanitize(warning.Message))))
	}
	if r.RunID != "" {
		parts = append(parts, field(s, "run", s.key.Render(r.RunID)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func catalogView(scripts []application.Script, s styles) string {
	lines := []string{
		s.title.Render("Actions"),
		s.header.Render(fmt.Sprintf("actions: %d", len(scripts))),
	}

	for _, script := range scripts {
		req := script.Requirements()
		parts := []string{
			s.tenant.Render(string(script.Kind())),
			field(s, "required", s.detail.Render(listOrNone(req.Required))),
			field(s, "optional", s.detail.Render(listOrNone(req.Optional))),
		}
		if req.Credentials {
			parts = append(parts, field(s, "credentials", s.detail.Render("needed without a saved session")))
		}
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, parts...)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func field(s styles, key, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, s.key.Render(key+":"), " ", value)
}

func sessionLabel(t application.TenantView, now time.Time) string {
	if !t.HasSession() {
		return "none"
	}

	cookies := "cookies"
	if t.SessionCookies == 1 {
		cookies = "cookie"
	}
	label := fmt.Sprintf("%d %s", t.SessionCookies, cookies)
	if t.SessionCapturedAt.IsZero() {
		return label
	}

	return label + ", " + formatCapturedRelative(t.SessionCapturedAt, now)
}

func formatCapturedRelative(capturedAt, now time.Time) string {
	if now.IsZero() {
		return "captured " + capturedAt.Format(time.RFC3339)
	}

	elapsed := now.Sub(capturedAt)
	switch {
	case elapsed < time.Minute:
		return "captured just now"
	case elapsed < time.Hour:
		return "captured " + plural(int(elapsed.Minutes()), "minute") + " ago"
	case elapsed < 24*time.Hour:
		return "captured " + plural(int(elapsed.Hours()), "hour") + " ago"
	default:
		days := int(math.Floor(elapsed.Hours() / 24))
		return fmt.Sprintf("captured %s ago (%s)", plural(days, "day"), capturedAt.Format("15:04 on 02 Jan"))
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(100 * time.Millisecond).String()
}

// redactProxy drops userinfo so proxy passwords never reach the terminal.
func redactProxy(endpoint string) string {
	scheme, rest, ok := strings.Cut(endpoint, "://")
	if !ok {
		rest, scheme = endpoint, ""
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = "***@" + rest[at+1:]
	}
	if scheme == "" {
		return sanitize(rest)
	}
	return sanitize(scheme + "://" + rest)
}

func sortedKeys(payload map[string]any) []string {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func listOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}

func orNone(value string) string {
	if strings.TrimSpace(value) == "" {
		return "none"
	}
	return value
}

func sanitize(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
}
