package metric

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConditionLink maps a dimension of the condition to a field of the event,
// making the condition sliced.
type ConditionLink struct {
	ConditionField string `yaml:"condition_field" json:"condition_field"`
	EventField     string `yaml:"event_field" json:"event_field"`
}

// Definition describes one value metric.
// Definitions are loaded at startup from YAML files and fingerprinted.
type Definition struct {
	Name           string          `json:"name"`
	What           string          `json:"what"`                  // event tag consumed by the metric
	ValueField     string          `json:"value_field,omitempty"` // empty only for count
	Aggregation    string          `json:"aggregation"`
	BucketSize     time.Duration   `json:"bucket_size_ns"`
	Dimensions     []string        `json:"dimensions,omitempty"`
	Condition      string          `json:"condition,omitempty"` // empty when the metric is not condition-gated
	ConditionLinks []ConditionLink `json:"condition_links,omitempty"`
	Pulled         bool            `json:"pulled"` // values arrive through scheduled pulls
	Fingerprint    string          `json:"fingerprint"`
}

// HasCondition reports whether accumulation is gated by a condition.
func (d Definition) HasCondition() bool { return d.Condition != "" }

// Sliced reports whether the gating condition is evaluated per dimension slice.
func (d Definition) Sliced() bool { return d.HasCondition() && len(d.ConditionLinks) > 0 }

// rawDefinition is the on-disk YAML shape.
type rawDefinition struct {
	Name           string          `yaml:"name"`
	What           string          `yaml:"what"`
	ValueField     string          `yaml:"value_field"`
	Aggregation    string          `yaml:"aggregation"`
	Bucket         string          `yaml:"bucket"`
	Dimensions     []string        `yaml:"dimensions"`
	Condition      string          `yaml:"condition"`
	ConditionLinks []ConditionLink `yaml:"condition_links"`
	Pulled         bool            `yaml:"pulled"`
}

// DefinitionRepository gives access to the configured metric definitions.
type DefinitionRepository interface {
	// Get returns the definition with the given name, or an error if not found.
	Get(ctx context.Context, name string) (*Definition, error)

	// List returns the definitions consuming the given tag, or all when what is empty.
	List(ctx context.Context, what string) ([]Definition, error)

	// All returns every definition sorted by name.
	All() []Definition
}

// FileSystemRepository loads metric definitions from *.yaml files in a directory.
// Each file contains exactly one metric at the top level. Definitions are loaded
// once at startup and cached in memory.
type FileSystemRepository struct {
	dir   string
	defs  map[string]Definition
	names []string
}

// NewFileSystemRepository creates a repository and eagerly loads every
// definition under dir. A missing directory yields an empty repository.
func NewFileSystemRepository(dir string) (*FileSystemRepository, error) {
	repo := &FileSystemRepository{
		dir:  dir,
		defs: make(map[string]Definition),
	}
	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *FileSystemRepository) load() error {
	info, err := os.Stat(r.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("metric config dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("metric config path %q is not a directory", r.dir)
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading metric config dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(r.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading metric file %s: %w", path, err)
		}

		var raw rawDefinition
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parsing metric file %s: %w", path, err)
		}
		if raw.Name == "" {
			continue // comment-only file
		}

		def, err := raw.toDefinition()
		if err != nil {
			return err
		}
		def.Fingerprint = fmt.Sprintf("%x", sha256.Sum256(data))

		if _, exists := r.defs[def.Name]; exists {
			return fmt.Errorf("metric %q: duplicate metric name (check multiple YAML files)", def.Name)
		}
		r.defs[def.Name] = def
		r.names = append(r.names, def.Name)
	}
	sort.Strings(r.names)
	return nil
}

func (raw rawDefinition) toDefinition() (Definition, error) {
	if raw.What == "" {
		return Definition{}, fmt.Errorf("metric %q: what must not be empty", raw.Name)
	}

	agg := raw.Aggregation
	if agg == "" {
		agg = AggSum
	}
	if !ValidAggregation(agg) {
		return Definition{}, fmt.Errorf("metric %q: unsupported aggregation %q", raw.Name, raw.Aggregation)
	}
	if raw.ValueField == "" && agg != AggCount {
		return Definition{}, fmt.Errorf("metric %q: value_field is required for %s", raw.Name, agg)
	}

	bucket := raw.Bucket
	if bucket == "" {
		bucket = "5m"
	}
	size, err := ParseBucketSize(bucket)
	if err != nil {
		return Definition{}, fmt.Errorf("metric %q: %w", raw.Name, err)
	}

	if len(raw.ConditionLinks) > 0 && raw.Condition == "" {
		return Definition{}, fmt.Errorf("metric %q: condition_links require a condition", raw.Name)
	}
	for _, l := range raw.ConditionLinks {
		if l.ConditionField == "" || l.EventField == "" {
			return Definition{}, fmt.Errorf("metric %q: condition link fields must not be empty", raw.Name)
		}
	}
	seen := make(map[string]bool, len(raw.Dimensions))
	for _, dim := range raw.Dimensions {
		if dim == "" || seen[dim] {
			return Definition{}, fmt.Errorf("metric %q: empty or duplicate dimension %q", raw.Name, dim)
		}
		seen[dim] = true
	}

	return Definition{
		Name:           raw.Name,
		What:           raw.What,
		ValueField:     raw.ValueField,
		Aggregation:    agg,
		BucketSize:     size,
		Dimensions:     raw.Dimensions,
		Condition:      raw.Condition,
		ConditionLinks: raw.ConditionLinks,
		Pulled:         raw.Pulled,
	}, nil
}

// Get returns the definition with the given name, or an error if not found.
func (r *FileSystemRepository) Get(_ context.Context, name string) (*Definition, error) {
	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("metric %q not found", name)
	}
	return &def, nil
}

// List returns the definitions consuming the given tag, sorted by name.
func (r *FileSystemRepository) List(_ context.Context, what string) ([]Definition, error) {
	var out []Definition
	for _, name := range r.names {
		def := r.defs[name]
		if what != "" && def.What != what {
			continue
		}
		out = append(out, def)
	}
	return out, nil
}

// All returns every definition sorted by name.
func (r *FileSystemRepository) All() []Definition {
	defs := make([]Definition, 0, len(r.names))
	for _, name := range r.names {
		defs = append(defs, r.defs[name])
	}
	return defs
}
