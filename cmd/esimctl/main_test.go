package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/esimctl/internal/esim"
	"github.com/dusk-indust/esimctl/internal/hostrpc"
	"github.com/dusk-indust/esimctl/internal/telephony"
)

func fixture(name string) string {
	abs, _ := filepath.Abs(filepath.Join("..", "..", "testdata", "hosts", name))
	return abs
}

// runCLI runs esimctl with a config dir holding fast verification delays.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "esimctl.yml"), []byte(
		"verification:\n  preferred_data: 400ms\n  switch: 400ms\n  legacy: 200ms\n  enable: 200ms\n",
	), 0o644))

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), append([]string{"--config-dir", dir}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRun_Version(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"version"}, &stdout, &bytes.Buffer{}))
	assert.Equal(t, "dev\n", stdout.String())
}

func TestRun_List(t *testing.T) {
	out, _, err := runCLI(t, "--host", "sim:"+fixture("dual-esim.yml"), "list")
	require.NoError(t, err)

	assert.Contains(t, out, "Acme Mobile")
	assert.Contains(t, out, "Globe Telecom")
	assert.NotContains(t, out, "Contoso")
}

func TestRun_ListJSON(t *testing.T) {
	out, _, err := runCLI(t, "--host", "sim:"+fixture("legacy.yml"), "list", "--json")
	require.NoError(t, err)

	var profiles []esim.Profile
	require.NoError(t, json.Unmarshal([]byte(out), &profiles))
	require.Len(t, profiles, 2)
	assert.Equal(t, 3, profiles[0].SubscriptionID)
	assert.Equal(t, esim.DefaultDisplayName, profiles[1].DisplayName)
}

func TestRun_Active(t *testing.T) {
	out, _, err := runCLI(t, "--host", "sim:"+fixture("dual-esim.yml"), "active")
	require.NoError(t, err)
	assert.Equal(t, "Acme Mobile (Acme, id 10, iccid 8944...4826)\n", out)
}

func TestRun_SwitchLegacy(t *testing.T) {
	out, stderr, err := runCLI(t, "--host", "sim:"+fixture("legacy.yml"), "-v", "switch", "4")
	require.NoError(t, err)

	assert.Contains(t, out, "switched to 4 via legacy-defaults")
	assert.Contains(t, stderr, "skipped strategy=preferred-data")
	assert.Contains(t, stderr, "outcome=confirmed-success")
}

func TestRun_SwitchErrors(t *testing.T) {
	host := "sim:" + fixture("dual-esim.yml")

	_, _, err := runCLI(t, "--host", host, "switch", "abc")
	assert.ErrorContains(t, err, "invalid subscription id")

	_, _, err = runCLI(t, "--host", host, "switch", "1")
	assert.ErrorContains(t, err, "unknown profile")
}

func TestRun_SwitchThroughRemoteHost(t *testing.T) {
	sim, err := telephony.NewSimHostFromFile(fixture("dual-esim.yml"))
	require.NoError(t, err)
	ts := httptest.NewServer(hostrpc.NewServer(sim).Handler())
	defer ts.Close()

	out, _, err := runCLI(t, "--host", ts.URL, "switch", "11")
	require.NoError(t, err)
	assert.Contains(t, out, "switched to 11 via preferred-data")
	assert.Equal(t, 11, sim.PrimaryID())
}

func TestRun_HostFromEnv(t *testing.T) {
	t.Setenv("ESIMCTL_HOST", "sim:"+fixture("legacy.yml"))

	out, _, err := runCLI(t, "active")
	require.NoError(t, err)
	assert.Contains(t, out, "Travel eSIM")
}

func TestRun_BadHost(t *testing.T) {
	_, _, err := runCLI(t, "--host", "bluetooth:phone", "list")
	assert.ErrorContains(t, err, "want sim:<fixture.yml>")
}

func TestRun_DefaultHostOutsideRepoRoot(t *testing.T) {
	t.Setenv("ESIMCTL_HOST", "")

	// Tests run from cmd/esimctl, where the relative development fixture
	// does not resolve.
	_, _, err := runCLI(t, "list")
	require.Error(t, err)
	assert.ErrorContains(t, err, "no host configured")
	assert.ErrorContains(t, err, "--host")
}
