package installer

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"setup-capabilities/internal/config"
	"setup-capabilities/internal/logger"
	"setup-capabilities/internal/state"
)

// Binaries used when settings leave the managers empty.
const (
	DefaultPackageManager = "apt-get"   // must accept `update` and `install --assume-yes`
	DefaultServiceManager = "systemctl" // must accept `enable`, `restart` and `is-active`
)

// Provisioner applies capabilities to a machine.
// - Source: where capability directories are read from.
// - Target: the filesystem root config.d trees are mirrored onto.
// - Scratch: where temporary setup scripts are written. Scripts are executed
//   by path, so in production this is the OS filesystem.
// - Runner: executes package-manager, setup-script and service-manager commands.
// - Resolver: turns owner user/group names into numeric IDs.
type Provisioner struct {
	Source   afero.Fs
	Target   afero.Fs
	Scratch  afero.Fs
	Runner   Runner
	Resolver IDResolver
	Log      *logger.Logger

	PackageManager string
	ServiceManager string
}

// New wires a Provisioner against the host: OS filesystem, os/exec, the system
// user database. A target other than "/" confines config materialization to
// that directory.
func New(s config.Settings, log *logger.Logger) *Provisioner {
	osFs := afero.NewOsFs()

	// Config trees land on "/" unless a different target root is configured.
	target := afero.Fs(osFs)
	if s.Target != "" && filepath.Clean(s.Target) != string(filepath.Separator) {
		target = afero.NewBasePathFs(osFs, s.Target)
	}

	p := &Provisioner{
		Source:         osFs,
		Target:         target,
		Scratch:        osFs,
		Runner:         NewExecRunner(log),
		Resolver:       SystemResolver{},
		Log:            log,
		PackageManager: s.PackageManager,
		ServiceManager: s.ServiceManager,
	}
	if p.PackageManager == "" {
		p.PackageManager = DefaultPackageManager
	}
	if p.ServiceManager == "" {
		p.ServiceManager = DefaultServiceManager
	}
	return p
}

// Provision loads every capability under the loader's root, keeps the ones
// named (all when names is empty) and applies them. Loading is all-or-nothing:
// a bad descriptor anywhere stops the run before any phase starts.
func (p *Provisioner) Provision(ctx context.Context, loader *config.Loader, names []string) error {
	run := state.NewRun(p.Log)

	// Every descriptor is read and validated before the first phase.
	caps, err := loader.LoadAll()
	if err != nil {
		return run.Fail(fmt.Errorf("%s: %w", state.Loading, err))
	}
	caps, err = config.Select(caps, names) // empty names keeps everything
	if err != nil {
		return run.Fail(fmt.Errorf("%s: %w", state.Loading, err))
	}

	return p.apply(ctx, run, caps)
}

// Apply runs the four phases over caps. Each phase finishes for every
// capability before the next one starts.
func (p *Provisioner) Apply(ctx context.Context, caps []config.Capability) error {
	return p.apply(ctx, state.NewRun(p.Log), caps)
}

func (p *Provisioner) apply(ctx context.Context, run *state.Run, caps []config.Capability) error {
	phases := []struct {
		phase state.Phase
		run   func() error
	}{
		{state.InstallingPackages, func() error { return p.InstallPackages(ctx, caps) }},  // package manager
		{state.RunningSetupScripts, func() error { return p.RunSetupScripts(ctx, caps) }}, // setup.sh
		{state.MaterializingConfig, func() error { return p.MaterializeConfig(caps) }},    // config.d + files
		{state.ActivatingServices, func() error { return p.ActivateServices(ctx, caps) }}, // service manager
	}

	p.Log.Infof("Applying %d capabilities", len(caps))
	for _, ph := range phases {
		if err := run.Advance(ph.phase); err != nil {
			return run.Fail(err)
		}
		// The phase name prefixes the error so the CLI line says where it stopped.
		if err := ph.run(); err != nil {
			return run.Fail(fmt.Errorf("%s: %w", ph.phase, err))
		}
	}
	if err := run.Advance(state.Done); err != nil {
		return run.Fail(err)
	}
	p.Log.Infof("Done")
	return nil
}
