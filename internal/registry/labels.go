// Package registry holds the tunable keyword and label lists the pipeline
// matches against: aggregator domains to reject and the Russian link-label
// variants used to locate About/Catalog/Contacts sections.
package registry

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed labels.yaml
var defaultLabelsYAML []byte

// Labels is the full label registry.
type Labels struct {
	// AggregatorKeywords are hostname substrings that mark marketplaces and
	// aggregators; matching sites never reach the relevance check.
	AggregatorKeywords []string `yaml:"aggregator_keywords"`
	// AboutLabels are link-text variants for the "о компании" section.
	AboutLabels []string `yaml:"about_labels"`
	// CatalogLabels are link-text variants for the catalog/products section.
	CatalogLabels []string `yaml:"catalog_labels"`
	// ContactLabels are link-text variants for the contacts page, tried when
	// the main page yields no emails.
	ContactLabels []string `yaml:"contact_labels"`
}

// Default returns the embedded label registry.
func Default() (*Labels, error) {
	return parse(defaultLabelsYAML)
}

// Load reads a label registry from path, falling back to the embedded
// defaults when path is empty.
func Load(path string) (*Labels, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}
	return parse(data)
}

func parse(data []byte) (*Labels, error) {
	var l Labels
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, eris.Wrap(err, "registry: parse labels")
	}
	if len(l.AggregatorKeywords) == 0 {
		return nil, eris.New("registry: aggregator_keywords must not be empty")
	}
	return &l, nil
}
