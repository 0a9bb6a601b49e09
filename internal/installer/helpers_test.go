package installer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"setup-capabilities/internal/config"
	"setup-capabilities/internal/errors"
	"setup-capabilities/internal/logger"
)

const capRoot = "/opt/capabilities"

// fakeRunner records every command and fails the ones matched by failOn.
type fakeRunner struct {
	calls  [][]string
	failOn func(cmd []string) bool
	// onRun sees each command before it "runs"; used to inspect temp scripts.
	onRun func(cmd []string)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	cmd := append([]string{name}, args...)
	f.calls = append(f.calls, cmd)
	if f.onRun != nil {
		f.onRun(cmd)
	}
	if f.failOn != nil && f.failOn(cmd) {
		return errors.Wrapf(&CommandError{Command: cmd, ExitCode: 1, Stderr: "boom"}, errors.ErrCommand, "running %s", name)
	}
	return nil
}

func (f *fakeRunner) commands() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = strings.Join(c, " ")
	}
	return out
}

// fakeResolver knows a fixed set of users and groups.
type fakeResolver struct {
	users  map[string]int
	groups map[string]int
}

func (r fakeResolver) LookupUser(name string) (int, error) {
	if id, ok := r.users[name]; ok {
		return id, nil
	}
	return 0, errors.Newf(errors.ErrOwnerLookup, "unknown user %q", name)
}

func (r fakeResolver) LookupGroup(name string) (int, error) {
	if id, ok := r.groups[name]; ok {
		return id, nil
	}
	return 0, errors.Newf(errors.ErrOwnerLookup, "unknown group %q", name)
}

// chownRecorder keeps the uid/gid passed to Chown, which MemMapFs does not
// expose through Stat.
type chownRecorder struct {
	afero.Fs
	owners map[string][2]int
}

func (c *chownRecorder) Chown(name string, uid, gid int) error {
	if err := c.Fs.Chown(name, uid, gid); err != nil {
		return err
	}
	c.owners[name] = [2]int{uid, gid}
	return nil
}

type fixture struct {
	p       *Provisioner
	runner  *fakeRunner
	source  afero.Fs
	target  *chownRecorder
	scratch afero.Fs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		runner:  &fakeRunner{},
		source:  afero.NewMemMapFs(),
		target:  &chownRecorder{Fs: afero.NewMemMapFs(), owners: map[string][2]int{}},
		scratch: afero.NewMemMapFs(),
	}
	f.p = &Provisioner{
		Source:  f.source,
		Target:  f.target,
		Scratch: f.scratch,
		Runner:  f.runner,
		Resolver: fakeResolver{
			users:  map[string]int{"root": 0, "www-data": 33},
			groups: map[string]int{"root": 0, "www-data": 33, "adm": 4},
		},
		Log:            logger.Discard(),
		PackageManager: DefaultPackageManager,
		ServiceManager: DefaultServiceManager,
	}
	return f
}

// capability writes files (relative to the capability dir) into the source fs
// and returns the capability loaded through the real loader.
func (f *fixture) capability(t *testing.T, name, descriptor string, files map[string]string) config.Capability {
	t.Helper()
	dir := filepath.Join(capRoot, name)
	require.NoError(t, f.source.MkdirAll(dir, 0o755))
	require.NoError(t, afero.WriteFile(f.source, filepath.Join(dir, config.DescriptorFile), []byte(descriptor), 0o644))
	for rel, content := range files {
		full := filepath.Join(dir, rel)
		if strings.HasSuffix(rel, "/") {
			require.NoError(t, f.source.MkdirAll(full, 0o755))
			continue
		}
		require.NoError(t, f.source.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, afero.WriteFile(f.source, full, []byte(content), 0o644))
	}

	loader := &config.Loader{Fs: f.source, Root: capRoot, Log: logger.Discard()}
	c, err := loader.Load(name)
	require.NoError(t, err)
	return c
}

func (f *fixture) loader() *config.Loader {
	return &config.Loader{Fs: f.source, Root: capRoot, Log: logger.Discard()}
}

func failWhen(prefix string) func([]string) bool {
	return func(cmd []string) bool {
		return strings.HasPrefix(strings.Join(cmd, " "), prefix)
	}
}

func readTarget(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err, fmt.Sprintf("reading %s", path))
	return string(data)
}
