package installer

import (
	"context"
	"strings"

	"setup-capabilities/internal/config"
)

// InstallPackages refreshes the package index exactly once, then installs each
// capability's packages with one package-manager call per capability.
// The first failing call stops the phase; later capabilities are not touched.
func (p *Provisioner) InstallPackages(ctx context.Context, caps []config.Capability) error {
	p.Log.Tracef("install_capabilities_packages")

	// Refresh the index once for the whole run, not per capability.
	p.Log.Infof("Updating package repository...")
	if err := p.Runner.Run(ctx, p.PackageManager, "update"); err != nil {
		return err
	}

	for i := range caps {
		if err := p.installCapabilityPackages(ctx, &caps[i]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provisioner) installCapabilityPackages(ctx context.Context, c *config.Capability) error {
	p.Log.Tracef("install_capability_packages")

	// Nothing to install; no package-manager call at all.
	if len(c.Packages) == 0 {
		p.Log.Debugf("No packages for capability %s", c.Name)
		return nil
	}

	p.Log.Infof("Installing packages(%d) for capability %s...", len(c.Packages), c.Name)
	p.Log.Debugf("Packages for %s: %s", c.Name, strings.Join(c.Packages, " "))

	// One call per capability, non-interactive.
	args := append([]string{"install", "--assume-yes"}, c.Packages...)
	return p.Runner.Run(ctx, p.PackageManager, args...)
}
