package packager

import (
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// buildNamespace scopes build ids derived by uuid.NewSHA1.
var buildNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://golem.cloud/stubgen"))

// Manifest describes the stubs embedded in a composed artifact. It is
// stored as YAML in the ManifestSection custom section.
type Manifest struct {
	BuildID     string   `yaml:"build_id"`
	World       string   `yaml:"world"`
	HostModule  string   `yaml:"host_module"`
	Entries     []Entry  `yaml:"entries"`
	PassThrough []string `yaml:"pass_through,omitempty"`
}

// Entry maps one stub module to its core module index in the wrapper.
// Implicit entries serve interfaces the world reaches only through use.
type Entry struct {
	Interface string     `yaml:"interface"`
	Imports   []string   `yaml:"imports,omitempty"`
	Module    int        `yaml:"module"`
	GoPackage string     `yaml:"go_package,omitempty"`
	Implicit  bool       `yaml:"implicit,omitempty"`
	Functions []Function `yaml:"functions"`
}

// Function is a stub's identity and flat core signature. Memory marks
// functions lifted and lowered with the allocator's memory.
type Function struct {
	Identity string   `yaml:"identity"`
	Params   []string `yaml:"params,flow"`
	Results  []string `yaml:"results,flow,omitempty"`
	Indirect bool     `yaml:"indirect,omitempty"`
	Memory   bool     `yaml:"memory,omitempty"`
}

// Entry returns the entry for an interface identity.
func (m *Manifest) Entry(iface string) *Entry {
	for i := range m.Entries {
		if m.Entries[i].Interface == iface {
			return &m.Entries[i]
		}
	}
	return nil
}

// Marshal renders the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// ParseManifest decodes a manifest section payload.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func uuidFor(data []byte) uuid.UUID {
	return uuid.NewSHA1(buildNamespace, data)
}
