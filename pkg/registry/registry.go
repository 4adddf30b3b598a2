// pkg/registry/registry.go
package registry

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const outOfScope = "out_of_scope"

// LoadRegistry reads and validates a YAML registry file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates registry YAML. Slugs are lower-cased.
func Parse(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	for i := range reg.Domains {
		reg.Domains[i].Slug = strings.ToLower(strings.TrimSpace(reg.Domains[i].Slug))
		if reg.Domains[i].Prompt == "" {
			reg.Domains[i].Prompt = reg.Domains[i].Slug
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Validate checks slugs and fact extractor names.
func (r *Registry) Validate() error {
	if len(r.Domains) == 0 {
		return fmt.Errorf("registry has no domains")
	}
	seen := make(map[string]bool, len(r.Domains))
	for _, d := range r.Domains {
		if d.Slug == "" {
			return fmt.Errorf("domain %q has an empty slug", d.Name)
		}
		if d.Slug == outOfScope {
			return fmt.Errorf("slug %q is reserved", outOfScope)
		}
		if seen[d.Slug] {
			return fmt.Errorf("duplicate domain slug %q", d.Slug)
		}
		seen[d.Slug] = true
		for _, f := range d.Search.Facts {
			if f != FactTariffs && f != FactAmounts {
				return fmt.Errorf("domain %q: unknown fact extractor %q", d.Slug, f)
			}
		}
	}
	return nil
}

// Lookup finds a domain by slug, case-insensitively.
func (r *Registry) Lookup(slug string) (Domain, bool) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	for _, d := range r.Domains {
		if d.Slug == slug {
			return d, true
		}
	}
	return Domain{}, false
}

// Slugs returns every slug in file order.
func (r *Registry) Slugs() []string {
	out := make([]string, 0, len(r.Domains))
	for _, d := range r.Domains {
		out = append(out, d.Slug)
	}
	return out
}

// Add appends a domain after normalising its slug and validating the result.
func (r *Registry) Add(d Domain) error {
	d.Slug = strings.ToLower(strings.TrimSpace(d.Slug))
	if d.Prompt == "" {
		d.Prompt = d.Slug
	}
	if _, exists := r.Lookup(d.Slug); exists {
		return fmt.Errorf("domain %q already exists", d.Slug)
	}
	r.Domains = append(r.Domains, d)
	if err := r.Validate(); err != nil {
		r.Domains = r.Domains[:len(r.Domains)-1]
		return err
	}
	return nil
}

// Update sets one field of a domain. List fields take comma-separated values.
func (r *Registry) Update(slug, field, value string) error {
	slug = strings.ToLower(strings.TrimSpace(slug))
	idx := -1
	for i := range r.Domains {
		if r.Domains[i].Slug == slug {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("domain %q not found", slug)
	}

	d := r.Domains[idx]
	switch field {
	case "name":
		d.Name = value
	case "description":
		d.Description = value
	case "prompt":
		d.Prompt = value
	case "temperature":
		t, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid temperature: %w", err)
		}
		d.Temperature = t
	case "include_domains":
		d.Search.IncludeDomains = SplitList(value)
	case "keywords":
		d.Search.Keywords = SplitList(value)
	case "triggers":
		d.Search.Triggers = SplitList(value)
	case "suffix":
		d.Search.Suffix = value
	case "facts":
		d.Search.Facts = SplitList(value)
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	prev := r.Domains[idx]
	r.Domains[idx] = d
	if err := r.Validate(); err != nil {
		r.Domains[idx] = prev
		return err
	}
	return nil
}

// Save writes the registry as YAML.
func Save(r *Registry, path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write registry %s: %w", path, err)
	}
	return nil
}

// SplitList splits a comma-separated flag value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
