package installer

import (
	"context"

	"github.com/spf13/afero"

	"setup-capabilities/internal/config"
	"setup-capabilities/internal/errors"
	"setup-capabilities/internal/render"
)

// scriptMode is read, write and execute for the owner only.
const scriptMode = 0o700

// RunSetupScripts renders and runs each capability's setup.sh, in order.
// Capabilities without a setup script are skipped.
func (p *Provisioner) RunSetupScripts(ctx context.Context, caps []config.Capability) error {
	p.Log.Tracef("run_capabilities_setup_script")

	for i := range caps {
		if err := p.runSetupScript(ctx, &caps[i]); err != nil {
			return err
		}
	}
	return nil
}

// runSetupScript writes the rendered script to a fresh temporary file, runs it
// without arguments and always removes the file, whether the script succeeded
// or not.
func (p *Provisioner) runSetupScript(ctx context.Context, c *config.Capability) (err error) {
	p.Log.Tracef("run_capability_setup_script")

	// setup.sh is optional; a directory of that name does not count.
	template := c.SetupScriptPath()
	if !isFile(p.Source, template) {
		p.Log.Debugf("No setup script found for capability %s", c.Name)
		return nil
	}

	p.Log.Debugf("Rendering setup script template for capability %s", c.Name)
	script, err := render.RenderFile(p.Source, template, c.Vars)
	if err != nil {
		return err
	}

	// Unique file per capability, e.g. /tmp/setup-web-123456.sh.
	f, err := afero.TempFile(p.Scratch, "", "setup-"+c.Name+"-*.sh")
	if err != nil {
		return errors.Wrapf(err, errors.ErrFilesystem, "creating temporary setup script for %s", c.Name)
	}
	path := f.Name()

	// Removal runs on every return path, including a failed or cancelled script.
	defer func() {
		if rmErr := p.Scratch.Remove(path); rmErr != nil && err == nil {
			err = errors.Wrapf(rmErr, errors.ErrFilesystem, "removing temporary setup script %s", path)
		}
	}()

	_, writeErr := f.WriteString(script)
	closeErr := f.Close()
	if writeErr != nil {
		return errors.Wrapf(writeErr, errors.ErrFilesystem, "writing temporary setup script %s", path)
	}
	if closeErr != nil {
		return errors.Wrapf(closeErr, errors.ErrFilesystem, "closing temporary setup script %s", path)
	}
	if err := p.Scratch.Chmod(path, scriptMode); err != nil {
		return errors.Wrapf(err, errors.ErrFilesystem, "making %s executable", path)
	}

	// Executed by path with no arguments; the shebang picks the interpreter.
	p.Log.Infof("Running setup script for capability %s...", c.Name)
	return p.Runner.Run(ctx, path)
}

// isFile reports whether path exists and is a regular file (symlinks followed).
func isFile(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// isDir reports whether path exists and is a directory (symlinks followed).
func isDir(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	return err == nil && info.IsDir()
}
