package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"setup-capabilities/internal/errors"
)

func writeCapability(t *testing.T, root, name, descriptor string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "capability.yaml"), []byte(descriptor), 0o644))
	for rel, content := range files {
		full := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	color.NoColor = true

	var stdout, stderr bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func asNonRoot(t *testing.T) {
	t.Helper()
	orig := geteuid
	geteuid = func() int { return 1000 }
	t.Cleanup(func() { geteuid = orig })
}

func TestRootRequiresRoot(t *testing.T) {
	asNonRoot(t)
	root := t.TempDir()
	writeCapability(t, root, "tools", "packages: [curl]\n", nil)

	_, _, err := execute(t, "--root", root)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPrivilege))
	assert.Contains(t, err.Error(), "must be run as root")
}

func TestRootRejectsUnknownLogLevel(t *testing.T) {
	_, _, err := execute(t, "--log-level", "verbose", "list", "--root", t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfig))
	assert.Contains(t, err.Error(), "error, warning, info, debug, trace")
}

func TestLogLevelFromEnvironment(t *testing.T) {
	t.Setenv("SETUP_CAPABILITIES_LOG_LEVEL", "debug")
	root := t.TempDir()

	stdout, _, err := execute(t, "list", "--root", root)
	require.NoError(t, err)
	assert.Contains(t, stdout, "DEBUG: Capability root: "+root)

	// A flag beats the environment.
	stdout, _, err = execute(t, "list", "--root", root, "-l", "error")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "DEBUG:")
}

func TestListDescribesCapabilities(t *testing.T) {
	asNonRoot(t)
	root := t.TempDir()
	writeCapability(t, root, "web", `
packages: [nginx]
services: [nginx]
files:
  etc/nginx/nginx.conf:
    mode: 0644
`, map[string]string{
		"setup.sh":                      "#!/bin/sh\n",
		"config.d/etc/nginx/nginx.conf": "worker_processes 1;\n",
	})
	writeCapability(t, root, "tools", "packages: [curl, jq]\n", nil)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not-a-capability"), 0o755))

	stdout, _, err := execute(t, "list", "--root", root)
	require.NoError(t, err)

	var got []listing
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, []listing{
		{
			Name:     "tools",
			Packages: []string{"curl", "jq"},
		},
		{
			Name:        "web",
			Packages:    []string{"nginx"},
			Services:    []string{"nginx"},
			SetupScript: true,
			ConfigTree:  true,
			Overrides:   1,
		},
	}, got)
}

func TestListSelection(t *testing.T) {
	root := t.TempDir()
	writeCapability(t, root, "a", "", nil)
	writeCapability(t, root, "b", "", nil)

	stdout, _, err := execute(t, "list", "--root", root, "b/")
	require.NoError(t, err)

	var got []listing
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Name)

	_, _, err = execute(t, "list", "--root", root, "c")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrCapabilityNotFound))
}

func TestListFailsOnBadDescriptor(t *testing.T) {
	root := t.TempDir()
	writeCapability(t, root, "good", "packages: [curl]\n", nil)
	writeCapability(t, root, "bad", "packages: curl\n", nil)

	stdout, _, err := execute(t, "list", "--root", root)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrDescriptorParse))
	assert.Empty(t, stdout)
}
