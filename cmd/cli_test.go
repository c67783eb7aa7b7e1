package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bnema/tenantctl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantAddThenListShowsTenant(t *testing.T) {
	home := newHome(t)

	stdout, _, err := executeCLI(t, home, "tenant", "add", "--id", "t1", "--username", "creator", "--password", "hunter2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Added tenant t1")

	stdout, _, err = executeCLI(t, home, "tenant", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "tenants: 1")
	assert.Contains(t, stdout, "creator (t1)")
	assert.Contains(t, stdout, "credential: ***")
	assert.Contains(t, stdout, "session: none")
	assert.NotContains(t, stdout, "hunter2")

	secret, err := os.ReadFile(filepath.Join(home, ".tenantctl", "secrets", "tenantctl", "tenants", "t1", "password"))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", strings.TrimSpace(string(secret)))
}

func TestTenantAddJSONMasksCredential(t *testing.T) {
	home := newHome(t)

	stdout, _, err := executeCLI(t, home, "tenant", "add",
		"--id", "t1",
		"--username", "creator",
		"--credential-ref", "file://social/creator",
		"--password", "hunter2",
		"--viewport-width", "1280",
		"--viewport-height", "720",
		"--json",
	)
	require.NoError(t, err)
	require.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, `"credentialRef": "***"`)
	assert.Contains(t, stdout, `"viewportWidth": 1280`)
	assert.NotContains(t, stdout, "social/creator")
}

func TestTenantAddRequiresUsername(t *testing.T) {
	home := newHome(t)

	_, _, err := executeCLI(t, home, "tenant", "add", "--id", "t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "username" not set`)
}

func TestTenantAddRejectsDuplicate(t *testing.T) {
	home := newHome(t)
	addTenant(t, home, "t1")

	_, _, err := executeCLI(t, home, "tenant", "add", "--id", "t1", "--username", "other")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTenantExists)
}

func TestTenantAddReadsPasswordFromStdin(t *testing.T) {
	home := newHome(t)

	_, _, err := executeCLIWithInput(t, home, "from-stdin\n", "tenant", "add", "--id", "t1", "--username", "creator", "--password-stdin")
	require.NoError(t, err)

	secret, err := os.ReadFile(filepath.Join(home, ".tenantctl", "secrets", "tenantctl", "tenants", "t1", "password"))
	require.NoError(t, err)
	assert.Equal(t, "from-stdin", strings.TrimSpace(string(secret)))
}

func TestTenantUpdateChangesOnlyGivenFields(t *testing.T) {
	home := newHome(t)
	_, _, err := executeCLI(t, home, "tenant", "add", "--id", "t1", "--username", "creator", "--user-agent", "agent/1")
	require.NoError(t, err)

	_, _, err = executeCLI(t, home, "tenant", "update", "t1", "--proxy", "http://proxy.internal:3128")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "tenant", "get", "t1", "--json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"proxyEndpoint": "http://proxy.internal:3128"`)
	assert.Contains(t, stdout, `"userAgent": "agent/1"`)
	assert.Contains(t, stdout, `"username": "creator"`)

	_, _, err = executeCLI(t, home, "tenant", "update", "t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tenant fields to update")
}

func TestTenantSuspendBlocksRun(t *testing.T) {
	home := newHome(t)
	addTenant(t, home, "t1")

	stdout, _, err := executeCLI(t, home, "tenant", "suspend", "t1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Tenant t1 is suspended")

	stdout, _, err = executeCLI(t, home, "run", "--tenant", "t1", "--action", "authenticate", "--json")
	require.Error(t, err)
	assert.ErrorIs(t, err, errActionFailed)

	results := decodeResults(t, stdout)
	require.Len(t, results, 1)
	assert.Equal(t, domain.ResultFailed, results[0].Status)
	assert.Equal(t, domain.FailureConfig, results[0].Kind)

	stdout, _, err = executeCLI(t, home, "tenant", "resume", "t1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Tenant t1 is active")
}

func TestRunRejectsUnsupportedAction(t *testing.T) {
	home := newHome(t)
	addTenant(t, home, "t1")

	stdout, _, err := executeCLI(t, home, "run", "--tenant", "t1", "--action", "dance", "--json")
	require.Error(t, err)

	results := decodeResults(t, stdout)
	require.Len(t, results, 1)
	assert.Equal(t, domain.FailureUnsupportedAction, results[0].Kind)
	assert.Equal(t, "dance", results[0].Action)
	assert.NotEmpty(t, results[0].RunID)
}

func TestRunRendersFailedResult(t *testing.T) {
	home := newHome(t)

	stdout, _, err := executeCLI(t, home, "run", "--tenant", "ghost", "--action", "follow-target", "--param", "targetUsername=friend")
	require.Error(t, err)
	assert.Contains(t, stdout, "runs: 1, succeeded: 0")
	assert.Contains(t, stdout, "ghost follow-target failed [ConfigError]")
}

func TestRunRejectsMalformedParam(t *testing.T) {
	home := newHome(t)

	_, _, err := executeCLI(t, home, "run", "--tenant", "t1", "--action", "publish", "--param", "mediaPath")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid --param "mediaPath": expected key=value`)
}

func TestSetPasswordThenClearSessionAndDelete(t *testing.T) {
	home := newHome(t)
	addTenant(t, home, "t1")

	_, _, err := executeCLIWithInput(t, home, "rotated\n", "tenant", "set-password", "t1", "--password-stdin", "--credential-ref", "file://t1/rotated")
	require.NoError(t, err)

	secret, err := os.ReadFile(filepath.Join(home, ".tenantctl", "secrets", "t1", "rotated"))
	require.NoError(t, err)
	assert.Equal(t, "rotated", strings.TrimSpace(string(secret)))

	stdout, _, err := executeCLI(t, home, "tenant", "clear-session", "t1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Cleared session for tenant t1")

	_, _, err = executeCLI(t, home, "tenant", "delete", "t1")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(home, ".tenantctl", "secrets", "t1", "rotated"))
	assert.True(t, os.IsNotExist(err))

	_, _, err = executeCLI(t, home, "tenant", "get", "t1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
}

func TestSetPasswordRequiresPassword(t *testing.T) {
	home := newHome(t)
	addTenant(t, home, "t1")

	_, _, err := executeCLI(t, home, "tenant", "set-password", "t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a password is required")
}

func TestBatchKeepsInputOrder(t *testing.T) {
	home := newHome(t)
	addTenant(t, home, "t1")

	batch := filepath.Join(t.TempDir(), "requests.yaml")
	require.NoError(t, os.WriteFile(batch, []byte(`
- tenantId: ghost
  action: authenticate
- tenantId: t1
  action: dance
- tenantId: t1
  action: publish
`), 0o600))

	stdout, _, err := executeCLI(t, home, "batch", "--file", batch, "--parallel", "2", "--json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 of 3 requests")

	results := decodeResults(t, stdout)
	require.Len(t, results, 3)
	assert.Equal(t, domain.TenantID("ghost"), results[0].TenantID)
	assert.Equal(t, domain.FailureConfig, results[0].Kind)
	assert.Equal(t, domain.FailureUnsupportedAction, results[1].Kind)
	assert.Equal(t, domain.FailureInvalidParams, results[2].Kind)
}

func TestBatchReadsStdin(t *testing.T) {
	home := newHome(t)

	stdout, _, err := executeCLIWithInput(t, home, `{"requests":[{"tenantId":"ghost","action":"authenticate"}]}`, "batch", "--file", "-", "--json")
	require.Error(t, err)
	results := decodeResults(t, stdout)
	require.Len(t, results, 1)
	assert.Equal(t, domain.FailureConfig, results[0].Kind)
}

func TestActionsListsCatalog(t *testing.T) {
	home := newHome(t)

	stdout, _, err := executeCLI(t, home, "actions", "--json")
	require.NoError(t, err)

	var specs []actionSpec
	require.NoError(t, json.Unmarshal([]byte(stdout), &specs))
	require.Len(t, specs, 5)
	assert.Equal(t, "authenticate", specs[0].Action)
	assert.True(t, specs[0].Credentials)
	assert.Equal(t, []string{"mediaPath"}, specs[1].Required)

	stdout, _, err = executeCLI(t, home, "actions")
	require.NoError(t, err)
	assert.Contains(t, stdout, "actions: 5")
	assert.Contains(t, stdout, "comment-content")
}

func TestSQLiteBackendFromConfigFile(t *testing.T) {
	home := newHome(t)
	configPath := filepath.Join(home, "custom.toml")
	dbPath := filepath.Join(home, "data", "tenants.db")
	require.NoError(t, os.WriteFile(configPath, []byte("[store]\nbackend = \"sqlite\"\npath = \""+filepath.ToSlash(dbPath)+"\"\n"), 0o600))

	_, _, err := executeCLI(t, home, "--config", configPath, "tenant", "add", "--id", "t1", "--username", "creator")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "--config", configPath, "tenant", "list", "--json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"id": "t1"`)

	_, err = os.Stat(dbPath)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(home, ".tenantctl", "tenants.toml"))
	assert.True(t, os.IsNotExist(err))
}

func TestMetricsTextfileWrittenOnExit(t *testing.T) {
	home := newHome(t)
	metricsPath := filepath.Join(home, "tenantctl.prom")
	t.Setenv("TENANTCTL_METRICS_TEXTFILE", metricsPath)

	_, _, err := executeCLI(t, home, "run", "--tenant", "ghost", "--action", "authenticate", "--json")
	require.Error(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `tenantctl_actions_total{action="authenticate",kind="ConfigError",status="failed"} 1`)
}

func TestVersionAndUnknownCommand(t *testing.T) {
	home := newHome(t)

	stdout, _, err := executeCLI(t, home, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", stdout)

	_, _, err = executeCLI(t, home, "account")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "account"`)
}

func TestExplicitMissingConfigFails(t *testing.T) {
	home := newHome(t)

	_, _, err := executeCLI(t, home, "--config", filepath.Join(home, "nope.toml"), "tenant", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func newHome(t *testing.T) string {
	t.Helper()
	t.Setenv("TENANTCTL_SECRETS_BACKEND", "file")
	return t.TempDir()
}

func addTenant(t *testing.T, home string, id string) {
	t.Helper()

	_, _, err := executeCLI(t, home, "tenant", "add", "--id", id, "--username", "creator-"+id, "--password", "hunter2")
	require.NoError(t, err)
}

func decodeResults(t *testing.T, stdout string) []domain.ActionResult {
	t.Helper()

	var results []domain.ActionResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &results), "stdout: %s", stdout)
	return results
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	return executeCLIWithInput(t, home, "", args...)
}

func executeCLIWithInput(t *testing.T, home string, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
