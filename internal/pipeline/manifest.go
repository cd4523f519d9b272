package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
)

// PairSpec is one manifest entry: a reference image and the distorted
// rendition to score against it.
type PairSpec struct {
	Ref  string `json:"ref"`
	Dist string `json:"dist"`

	// P overrides the norm exponent for this pair. Zero selects the
	// default of 3.
	P float64 `json:"p,omitempty"`
}

// Manifest lists the image pairs of a batch run.
type Manifest struct {
	Pairs []PairSpec `json:"pairs"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save writes the manifest as indented JSON.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Validate checks that every entry can be compared.
func (m *Manifest) Validate() error {
	if len(m.Pairs) == 0 {
		return fmt.Errorf("manifest has no pairs")
	}
	for i, p := range m.Pairs {
		if p.Ref == "" {
			return fmt.Errorf("pair %d: missing ref", i)
		}
		if p.Dist == "" {
			return fmt.Errorf("pair %d: missing dist", i)
		}
		if p.P < 0 {
			return fmt.Errorf("pair %d: negative norm exponent %g", i, p.P)
		}
	}
	return nil
}
