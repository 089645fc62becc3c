package backup

import (
	"time"

	"gopkg.in/yaml.v3"
)

const manifestVersion = "1"

// Manifest describes one backup archive.
type Manifest struct {
	Version     string    `yaml:"version"`
	ID          string    `yaml:"id"`
	CreatedAt   time.Time `yaml:"created_at"`
	File        string    `yaml:"file"`
	Size        int64     `yaml:"size"`
	SHA256      string    `yaml:"sha256"`
	Compression string    `yaml:"compression"`
	Encrypted   bool      `yaml:"encrypted"`
	Recipients  []string  `yaml:"recipients,omitempty"`
	Laptops     int64     `yaml:"laptops"`
	Checkins    int64     `yaml:"checkins"`
}

// Marshal renders the manifest as YAML.
func (m Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// ParseManifest decodes a YAML manifest.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}
