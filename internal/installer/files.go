package installer

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"setup-capabilities/internal/config"
	"setup-capabilities/internal/errors"
	"setup-capabilities/internal/render"
)

// Modes for materialized entries before any override applies.
const (
	dirMode  = 0o755 // rwxr-xr-x
	fileMode = 0o644 // rw-r--r--
)

// MaterializeConfig mirrors every capability's config.d tree onto the target
// root and then applies its file overrides.
func (p *Provisioner) MaterializeConfig(caps []config.Capability) error {
	p.Log.Tracef("copy_capabilities_config_files")

	for i := range caps {
		if err := p.materialize(&caps[i]); err != nil {
			return err
		}
	}
	return nil
}

// materialize copies one capability's config.d tree. Directories are created
// (existing ones are fine), files are rendered and overwritten unconditionally.
// Overrides run only after the whole tree is written, so they may point at
// copied files or at files that already existed on the target.
func (p *Provisioner) materialize(c *config.Capability) error {
	p.Log.Tracef("copy_capability_config_files")

	configRoot := c.ConfigRoot()
	if isDir(p.Source, configRoot) {
		p.Log.Infof("Copying config files for capability %s...", c.Name)
		if err := afero.Walk(p.Source, configRoot, func(path string, info os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return errors.Wrapf(walkErr, errors.ErrFilesystem, "walking %s", path)
			}
			// config.d/etc/app.conf lands on /etc/app.conf.
			rel, err := filepath.Rel(configRoot, path)
			if err != nil {
				return errors.Wrapf(err, errors.ErrFilesystem, "resolving %s", path)
			}
			if rel == "." {
				return nil // config.d itself
			}
			// Walk reports links unresolved. Links to directories are created as
			// directories but not descended into; links to files are rendered.
			if info.Mode()&os.ModeSymlink != 0 {
				if info, err = p.Source.Stat(path); err != nil {
					return errors.Wrapf(err, errors.ErrFilesystem, "resolving link %s", path)
				}
			}
			return p.copyEntry(c, path, systemPath(rel), info)
		}); err != nil {
			return err
		}
	} else {
		p.Log.Debugf("No config files for capability %s", c.Name)
	}

	return p.applyOverrides(c)
}

func (p *Provisioner) copyEntry(c *config.Capability, source, target string, info os.FileInfo) error {
	// Directories are reproduced even when empty.
	if info.IsDir() {
		p.Log.Debugf("Creating directory %s", target)
		if err := p.Target.MkdirAll(target, dirMode); err != nil {
			return errors.Wrapf(err, errors.ErrFilesystem, "creating directory %s", target)
		}
		return nil
	}

	// Every file is a template; existing targets are overwritten.
	rendered, err := render.RenderFile(p.Source, source, c.Vars)
	if err != nil {
		return err
	}
	p.Log.Debugf("Creating file %s", target)
	if err := afero.WriteFile(p.Target, target, []byte(rendered), fileMode); err != nil {
		return errors.Wrapf(err, errors.ErrFilesystem, "writing %s", target)
	}
	return nil
}

// applyOverrides sets mode and owner on the paths named in the descriptor's
// files mapping. Keys and owner names are rendered against vars first.
func (p *Provisioner) applyOverrides(c *config.Capability) error {
	for _, key := range c.SortedFileKeys() {
		override := c.Files[key]

		// Keys may be templates, e.g. "/srv/{{name}}/index.html".
		rendered, err := render.Render(key, c.Vars)
		if err != nil {
			return err
		}
		path := systemPath(rendered)

		// The path must exist: copied above or already on the machine.
		if _, err := p.Target.Stat(path); err != nil {
			return errors.Wrapf(err, errors.ErrFilesystem, "file override for capability %s", c.Name)
		}

		if override.Mode != nil {
			p.Log.Debugf("Setting file mode: %s: %s", override.Mode, path)
			if err := p.Target.Chmod(path, override.Mode.OSMode()); err != nil {
				return errors.Wrapf(err, errors.ErrFilesystem, "setting mode %s on %s", override.Mode, path)
			}
		}

		if override.Owner != nil {
			if err := p.applyOwner(c, path, override.Owner); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Provisioner) applyOwner(c *config.Capability, path string, owner *config.Owner) error {
	userName, err := render.Render(owner.User, c.Vars)
	if err != nil {
		return err
	}
	groupName, err := render.Render(owner.Group, c.Vars)
	if err != nil {
		return err
	}

	// Unknown names are fatal rather than silently skipped.
	uid, err := p.Resolver.LookupUser(userName)
	if err != nil {
		return err
	}
	gid, err := p.Resolver.LookupGroup(groupName)
	if err != nil {
		return err
	}

	p.Log.Debugf("Setting file owner: %s:%s: %s", userName, groupName, path)
	if err := p.Target.Chown(path, uid, gid); err != nil {
		return errors.Wrapf(err, errors.ErrFilesystem, "setting owner %s:%s on %s", userName, groupName, path)
	}
	return nil
}

// systemPath roots a config-relative path at "/". Absolute paths are kept.
func systemPath(rel string) string {
	return filepath.Join(string(filepath.Separator), rel)
}
