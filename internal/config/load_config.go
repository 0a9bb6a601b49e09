package config

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"setup-capabilities/internal/errors"
	"setup-capabilities/internal/logger"
)

// Loader discovers and parses capability directories under Root.
type Loader struct {
	Fs   afero.Fs       // filesystem holding Root
	Root string         // directory whose subdirectories are capabilities
	Log  *logger.Logger // skipped entries at debug, unknown keys at warning
}

// NewLoader returns a Loader reading from the real filesystem.
func NewLoader(root string, log *logger.Logger) *Loader {
	return &Loader{Fs: afero.NewOsFs(), Root: root, Log: log}
}

// CapabilityNames lists the immediate subdirectories of Root that hold a
// capability.yaml file. Directory listing order is not meaningful, so names are
// returned sorted. Entries without a descriptor are skipped.
func (l *Loader) CapabilityNames() ([]string, error) {
	l.Log.Tracef("capability_names")

	entries, err := afero.ReadDir(l.Fs, l.Root)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrDescriptorRead, "listing capability root %s", l.Root)
	}

	var names []string
	for _, entry := range entries { // afero.ReadDir sorts by name
		dir := filepath.Join(l.Root, entry.Name())

		// Stat rather than entry.IsDir so symlinked capability dirs count.
		info, err := l.Fs.Stat(dir)
		if err != nil || !info.IsDir() {
			l.Log.Debugf("%s is not a directory", dir)
			continue
		}

		descriptor := filepath.Join(dir, DescriptorFile)
		info, err = l.Fs.Stat(descriptor)
		if err != nil || !info.Mode().IsRegular() {
			l.Log.Debugf("%s is not a file", descriptor)
			continue
		}

		names = append(names, entry.Name())
	}
	return names, nil
}

// Load reads and validates a single capability descriptor. The capability's
// name is the directory name.
func (l *Loader) Load(name string) (Capability, error) {
	l.Log.Tracef("load_capability")

	c := Capability{Name: name, Dir: filepath.Join(l.Root, name)}

	// Read the raw descriptor
	raw, err := afero.ReadFile(l.Fs, c.DescriptorPath())
	if err != nil {
		return Capability{}, errors.Wrapf(err, errors.ErrDescriptorRead, "reading descriptor for capability %s", name)
	}

	unknown, err := decodeDescriptor(raw, &c)
	if err != nil {
		return Capability{}, errors.Wrapf(err, errors.ErrDescriptorParse, "parsing %s", c.DescriptorPath())
	}
	for _, key := range unknown {
		l.Log.Warnf("Ignoring unknown key %s in %s", key, c.DescriptorPath())
	}

	// Decoding never sets these, but be sure a hostile document cannot.
	c.Name = name
	c.Dir = filepath.Join(l.Root, name)
	if c.Vars == nil {
		c.Vars = map[string]any{}
	}

	// Invariants the YAML types cannot express
	if err := c.validate(); err != nil {
		return Capability{}, errors.Wrapf(err, errors.ErrDescriptorInvalid, "capability %s", name)
	}

	l.Log.Debugf("Loaded capability %s: %d packages, %d services, %d file overrides",
		name, len(c.Packages), len(c.Services), len(c.Files))
	return c, nil
}

// LoadAll discovers and loads every capability before anything is applied.
// A single unreadable or invalid descriptor fails the whole load.
func (l *Loader) LoadAll() ([]Capability, error) {
	l.Log.Tracef("load_capabilities")

	names, err := l.CapabilityNames()
	if err != nil {
		return nil, err
	}

	caps := make([]Capability, 0, len(names))
	for _, name := range names {
		c, err := l.Load(name)
		if err != nil {
			return nil, err // nothing is returned when any descriptor is bad
		}
		caps = append(caps, c)
	}
	return caps, nil
}

// Select keeps the capabilities named in names, in discovery order. Trailing
// slashes from shell completion are ignored. Empty names selects everything.
func Select(caps []Capability, names []string) ([]Capability, error) {
	if len(names) == 0 {
		return caps, nil
	}

	// Names still unmatched after the scan are reported together.
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.TrimRight(n, "/")] = true
	}

	var selected []Capability
	for _, c := range caps {
		if wanted[c.Name] {
			selected = append(selected, c)
			delete(wanted, c.Name)
		}
	}

	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for _, n := range names {
			if n = strings.TrimRight(n, "/"); wanted[n] {
				missing = append(missing, n)
				delete(wanted, n)
			}
		}
		return nil, errors.Newf(errors.ErrCapabilityNotFound, "unknown capabilities: %s", strings.Join(missing, ", "))
	}
	return selected, nil
}

// Keys capability.yaml understands, per nesting level.
var (
	descriptorKeys = map[string]bool{"vars": true, "packages": true, "services": true, "files": true}
	overrideKeys   = map[string]bool{"mode": true, "owner": true}
	ownerKeys      = map[string]bool{"user": true, "group": true}
)

// decodeDescriptor decodes a capability.yaml document into c and returns the
// dotted paths of keys it does not understand. Type mismatches are errors;
// unknown keys are not. An empty document leaves c untouched.
func decodeDescriptor(raw []byte, c *Capability) ([]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil // empty or comment-only document
	}

	root := doc.Content[0]
	if err := root.Decode(c); err != nil {
		return nil, err
	}
	return unknownKeys(root), nil
}

// unknownKeys walks the top level, each files entry and each owner mapping.
// vars is free-form and never checked.
func unknownKeys(root *yaml.Node) []string {
	var unknown []string
	eachKey(root, func(key string, value *yaml.Node) {
		if !descriptorKeys[key] {
			unknown = append(unknown, key)
			return
		}
		if key != "files" {
			return
		}
		eachKey(value, func(path string, override *yaml.Node) {
			eachKey(override, func(field string, v *yaml.Node) {
				switch {
				case !overrideKeys[field]:
					unknown = append(unknown, "files."+path+"."+field)
				case field == "owner":
					eachKey(v, func(name string, _ *yaml.Node) {
						if !ownerKeys[name] {
							unknown = append(unknown, "files."+path+".owner."+name)
						}
					})
				}
			})
		})
	})
	return unknown
}

// eachKey calls fn for every key/value pair of a mapping node, in document
// order. Other node kinds are ignored.
func eachKey(n *yaml.Node, fn func(key string, value *yaml.Node)) {
	if n == nil || n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		fn(n.Content[i].Value, n.Content[i+1])
	}
}
