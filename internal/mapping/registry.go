// Package mapping holds the configured JSONPath selectors for fields and tags.
package mapping

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/ohler55/ojg/jp"

	"github.com/drogue-iot/drogue-postgresql-pusher/internal/models"
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PathSpec is one compiled selector. Name is the target column.
type PathSpec struct {
	Name       string
	Expression string
	Matcher    jp.Expr
	Kind       models.ScalarKind
}

// Registry is built once at start and only read afterwards, so it can be
// shared by concurrent extractions without locking.
type Registry struct {
	fields []PathSpec
	tags   []PathSpec
}

// NewRegistry compiles and validates every configured path. Reserved names
// (the timestamp column) may not be used by any field or tag, and a name may
// not appear both as a field and as a tag since both end up as columns of the
// same row.
func NewRegistry(cfg Config, reserved ...string) (*Registry, error) {
	taken := make(map[string]string)
	for _, name := range reserved {
		taken[strings.ToLower(name)] = "reserved column"
	}

	fields, err := compileAll("field", cfg.Fields, taken)
	if err != nil {
		return nil, err
	}
	tags, err := compileAll("tag", cfg.Tags, taken)
	if err != nil {
		return nil, err
	}

	return &Registry{fields: fields, tags: tags}, nil
}

func compileAll(namespace string, entries []PathConfig, taken map[string]string) ([]PathSpec, error) {
	specs := make([]PathSpec, 0, len(entries))
	for i, entry := range entries {
		name := strings.ToLower(strings.TrimSpace(entry.Name))
		if name == "" {
			return nil, fmt.Errorf("%s #%d: name is required", namespace, i+1)
		}
		if !identifierPattern.MatchString(name) {
			return nil, fmt.Errorf("%s %q: name must be a plain SQL identifier", namespace, entry.Name)
		}
		if owner, ok := taken[name]; ok {
			return nil, fmt.Errorf("%s %q: name already used by %s", namespace, name, owner)
		}

		spec, err := compile(name, entry)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", namespace, name, err)
		}

		log.Printf("Adding %s - %s -> %s (%s)", namespace, name, spec.Expression, spec.Kind)
		taken[name] = namespace
		specs = append(specs, spec)
	}
	return specs, nil
}

func compile(name string, entry PathConfig) (PathSpec, error) {
	expression := strings.TrimSpace(entry.Path)
	if expression == "" {
		return PathSpec{}, fmt.Errorf("path is required")
	}
	matcher, err := jp.ParseString(expression)
	if err != nil {
		return PathSpec{}, fmt.Errorf("failed to parse JSON path %q: %w", expression, err)
	}
	kind, err := models.ParseScalarKind(entry.Type)
	if err != nil {
		return PathSpec{}, err
	}
	return PathSpec{
		Name:       name,
		Expression: expression,
		Matcher:    matcher,
		Kind:       kind,
	}, nil
}

// Fields returns the payload selectors in configuration order. The slice must not be modified.
func (r *Registry) Fields() []PathSpec { return r.fields }

// Tags returns the envelope selectors in configuration order. The slice must not be modified.
func (r *Registry) Tags() []PathSpec { return r.tags }

// Evaluate applies the compiled selector to a document produced by
// coerce.DecodeJSON and returns every match.
func (r *Registry) Evaluate(spec PathSpec, doc interface{}) []interface{} {
	return spec.Matcher.Get(doc)
}
