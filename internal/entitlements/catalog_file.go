// AngelaMos | 2026
// catalog_file.go

package entitlements

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk form of a catalog. The plans list is in tier
// order, lowest first.
//
//	plans:
//	  - id: free
//	    name: Free
//	    limits: {hooks: 10, abtest: 2, planner: 1, analyses: 3, brand_kits: 0}
//	    flags: {persona_learning: false, ...}
type catalogFile struct {
	Plans []catalogFilePlan `yaml:"plans"`
}

type catalogFilePlan struct {
	ID     string           `yaml:"id"`
	Name   string           `yaml:"name"`
	Limits map[string]int64 `yaml:"limits"`
	Flags  map[string]bool  `yaml:"flags"`
}

// LoadCatalogFile reads and validates a YAML catalog from path.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return ParseCatalog(bytes.NewReader(data))
}

// ParseCatalog decodes a YAML catalog. Unknown top-level keys are rejected
// so typos surface at startup.
func ParseCatalog(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file catalogFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrInvalidCatalog, err)
	}

	plans := make([]PlanDefinition, 0, len(file.Plans))
	for _, fp := range file.Plans {
		p := PlanDefinition{
			ID:     PlanID(fp.ID),
			Name:   fp.Name,
			Limits: make(map[Feature]int64, len(fp.Limits)),
			Flags:  make(map[Flag]bool, len(fp.Flags)),
		}
		for k, v := range fp.Limits {
			p.Limits[Feature(k)] = v
		}
		for k, v := range fp.Flags {
			p.Flags[Flag(k)] = v
		}
		plans = append(plans, p)
	}

	return NewCatalog(plans...)
}

// MarshalCatalog renders c in the file format accepted by ParseCatalog.
func MarshalCatalog(c *Catalog) ([]byte, error) {
	var file catalogFile
	for _, p := range c.Plans() {
		fp := catalogFilePlan{
			ID:     string(p.ID),
			Name:   p.Name,
			Limits: make(map[string]int64, len(p.Limits)),
			Flags:  make(map[string]bool, len(p.Flags)),
		}
		for k, v := range p.Limits {
			fp.Limits[string(k)] = v
		}
		for k, v := range p.Flags {
			fp.Flags[string(k)] = v
		}
		file.Plans = append(file.Plans, fp)
	}

	out, err := yaml.Marshal(file)
	if err != nil {
		return nil, fmt.Errorf("marshal catalog: %w", err)
	}
	return out, nil
}
