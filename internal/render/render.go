// Package render expands mustache templates against a capability's vars.
//
// Keys missing from the vars render as empty strings. Output is never HTML
// escaped since every rendered artifact is a script, a config file or a path.
package render

import (
	"github.com/cbroglie/mustache"
	"github.com/spf13/afero"

	"setup-capabilities/internal/errors"
)

// Render expands text against vars. A nil vars map behaves like an empty one.
func Render(text string, vars map[string]any) (string, error) {
	tmpl, err := mustache.ParseStringRaw(text, true)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrTemplate, "parsing template")
	}
	out, err := tmpl.Render(context(vars))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrTemplate, "rendering template")
	}
	return out, nil
}

// RenderFile reads path from fs and renders its contents.
func RenderFile(fs afero.Fs, path string, vars map[string]any) (string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFilesystem, "reading template %s", path)
	}
	out, err := Render(string(data), vars)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrTemplate, "template %s", path)
	}
	return out, nil
}

func context(vars map[string]any) map[string]any {
	if vars == nil {
		return map[string]any{}
	}
	return vars
}
