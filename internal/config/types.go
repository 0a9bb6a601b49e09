package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// File and directory names that make up a capability directory.
const (
	DescriptorFile  = "capability.yaml"
	SetupScriptFile = "setup.sh"
	ConfigDir       = "config.d"
)

// Capability is one provisioning unit, loaded from <root>/<name>/capability.yaml.
// - Name: directory base name, never read from YAML.
// - Dir: the capability directory.
// - Vars: values substituted into setup.sh, config.d files and override paths.
// - Packages: package-manager packages installed in a single call.
// - Services: service units enabled, restarted and verified in order.
// - Files: mode/owner overrides keyed by (templated) config path.
type Capability struct {
	Name     string                  `yaml:"-"`
	Dir      string                  `yaml:"-"`
	Vars     map[string]any          `yaml:"vars"`
	Packages []string                `yaml:"packages"`
	Services []string                `yaml:"services"`
	Files    map[string]FileOverride `yaml:"files"`
}

// FileOverride adjusts a materialized file after the config tree is copied.
// Either field may be omitted.
type FileOverride struct {
	Mode  *FileMode `yaml:"mode"`
	Owner *Owner    `yaml:"owner"`
}

// Owner names the user and group a file should belong to. Both names may be
// templates.
type Owner struct {
	User  string `yaml:"user"`
	Group string `yaml:"group"`
}

// FileMode holds permission bits. In YAML it accepts integers (0600 and 0o600
// are octal, 384 is decimal) or octal strings ("0600", "600").
type FileMode os.FileMode

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *FileMode) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: mode must be a scalar", value.Line)
	}

	var bits uint64
	switch value.ShortTag() {
	case "!!int": // 0600, 0o600 and 384 all resolve here
		var i int64
		if err := value.Decode(&i); err != nil {
			return err
		}
		if i < 0 {
			return fmt.Errorf("line %d: mode %d is negative", value.Line, i)
		}
		bits = uint64(i)
	case "!!str": // quoted: "0600", "600"
		s := strings.TrimPrefix(strings.TrimSpace(value.Value), "0o")
		parsed, err := strconv.ParseUint(s, 8, 32)
		if err != nil {
			return fmt.Errorf("line %d: mode %q is not an octal number", value.Line, value.Value)
		}
		bits = parsed
	default:
		return fmt.Errorf("line %d: mode must be an integer, got %s", value.Line, value.ShortTag())
	}

	// Permission bits plus setuid, setgid and sticky
	if bits > 0o7777 {
		return fmt.Errorf("line %d: mode %#o exceeds 07777", value.Line, bits)
	}
	*m = FileMode(bits)
	return nil
}

// OSMode converts the Unix permission bits into an os.FileMode for Chmod.
// Go keeps setuid, setgid and sticky outside the low bits, so they are
// translated explicitly.
func (m FileMode) OSMode() os.FileMode {
	mode := os.FileMode(m) & os.ModePerm
	if m&0o4000 != 0 {
		mode |= os.ModeSetuid
	}
	if m&0o2000 != 0 {
		mode |= os.ModeSetgid
	}
	if m&0o1000 != 0 {
		mode |= os.ModeSticky
	}
	return mode
}

// String formats the mode in octal, e.g. 0600.
func (m FileMode) String() string {
	return fmt.Sprintf("%#o", uint32(m))
}

// DescriptorPath is the capability.yaml inside the capability directory.
func (c *Capability) DescriptorPath() string {
	return filepath.Join(c.Dir, DescriptorFile)
}

// SetupScriptPath is the optional setup.sh template.
func (c *Capability) SetupScriptPath() string {
	return filepath.Join(c.Dir, SetupScriptFile)
}

// ConfigRoot is the optional config.d tree mirroring the filesystem root.
func (c *Capability) ConfigRoot() string {
	return filepath.Join(c.Dir, ConfigDir)
}

// SortedFileKeys returns the override keys in a stable order.
func (c *Capability) SortedFileKeys() []string {
	keys := make([]string, 0, len(c.Files))
	for k := range c.Files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// validate checks the invariants YAML decoding cannot express.
func (c *Capability) validate() error {
	for i, p := range c.Packages {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("packages[%d] is empty", i)
		}
	}
	for i, s := range c.Services {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("services[%d] is empty", i)
		}
	}
	for _, key := range c.SortedFileKeys() {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("files has an empty path")
		}
		o := c.Files[key].Owner
		if o != nil && (o.User == "" || o.Group == "") {
			return fmt.Errorf("files[%q].owner needs both user and group", key)
		}
	}
	return nil
}
