package cmd

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"setup-capabilities/internal/config"
	"setup-capabilities/internal/errors"
)

// listing is what `list` prints for one capability.
type listing struct {
	Name        string   `yaml:"name"`
	Packages    []string `yaml:"packages,omitempty"`
	Services    []string `yaml:"services,omitempty"`
	SetupScript bool     `yaml:"setup_script"`
	ConfigTree  bool     `yaml:"config_tree"`
	Overrides   int      `yaml:"overrides,omitempty"`
}

// newListCmd shows what a run would apply without changing anything.
// Loading is the same all-or-nothing load a real run does, so a bad
// descriptor fails here too.
func newListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list [capability...]",
		Short: "Load capabilities and print what they would apply",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader(c.settings.Root, c.log)

			caps, err := loader.LoadAll()
			if err != nil {
				return err
			}
			caps, err = config.Select(caps, args)
			if err != nil {
				return err
			}

			out := make([]listing, 0, len(caps))
			for _, capability := range caps {
				out = append(out, describe(loader.Fs, capability))
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(out); err != nil {
				return errors.Wrap(err, errors.ErrUnknown, "writing listing")
			}
			return enc.Close()
		},
	}
}

func describe(fs afero.Fs, c config.Capability) listing {
	l := listing{
		Name:      c.Name,
		Packages:  c.Packages,
		Services:  c.Services,
		Overrides: len(c.Files),
	}

	if info, err := fs.Stat(c.SetupScriptPath()); err == nil {
		l.SetupScript = info.Mode().IsRegular()
	}

	if isDir, err := afero.IsDir(fs, c.ConfigRoot()); err == nil {
		l.ConfigTree = isDir
	}
	return l
}
