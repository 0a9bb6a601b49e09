package installer

import (
	"context"

	"setup-capabilities/internal/config"
)

// ActivateServices enables, restarts and verifies every declared service.
// There is no retry and no rollback: the first failing call ends the phase.
func (p *Provisioner) ActivateServices(ctx context.Context, caps []config.Capability) error {
	p.Log.Tracef("activate_capabilities_services")

	for i := range caps {
		if err := p.activateCapabilityServices(ctx, &caps[i]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provisioner) activateCapabilityServices(ctx context.Context, c *config.Capability) error {
	p.Log.Tracef("activate_capability_services")

	if len(c.Services) == 0 {
		p.Log.Debugf("No services for capability %s", c.Name)
		return nil
	}

	for _, service := range c.Services {
		p.Log.Infof("Activating service %s for capability %s...", service, c.Name)
		// enable: start at boot; restart: pick up new config; is-active: verify it runs.
		for _, verb := range []string{"enable", "restart", "is-active"} {
			if err := p.Runner.Run(ctx, p.ServiceManager, verb, service); err != nil {
				return err
			}
		}
	}
	return nil
}
