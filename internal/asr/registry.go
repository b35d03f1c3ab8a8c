package asr

import (
	"fmt"
	"sort"
	"strings"
)

// TypeHTTP is the model type served by HTTPRecognizer.
const TypeHTTP = "http"

// Factory builds a recognizer from its definition.
type Factory func(def Definition) (Recognizer, error)

// Registry maps model names to recognizers. Backends are chosen by the
// definition's type, never by the model name.
type Registry struct {
	factories map[string]Factory
	models    map[string]Recognizer
	order     []string
}

// NewRegistry returns a registry with the built-in backend types.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		models:    make(map[string]Recognizer),
	}
	r.RegisterFactory(TypeHTTP, func(def Definition) (Recognizer, error) {
		rec, err := NewHTTPRecognizer(def)
		if err != nil {
			return nil, err
		}
		return rec, nil
	})
	return r
}

// RegisterFactory adds or replaces the factory for a backend type.
func (r *Registry) RegisterFactory(typ string, f Factory) {
	r.factories[strings.ToLower(typ)] = f
}

// Build instantiates every definition. An empty type means http.
func (r *Registry) Build(defs []Definition) error {
	for _, def := range defs {
		if def.Name == "" {
			return fmt.Errorf("model definition without a name")
		}
		if _, exists := r.models[def.Name]; exists {
			return fmt.Errorf("duplicate model %q", def.Name)
		}

		typ := strings.ToLower(def.Type)
		if typ == "" {
			typ = TypeHTTP
		}
		factory, ok := r.factories[typ]
		if !ok {
			return fmt.Errorf("model %q: unknown type %q (available: %s)", def.Name, def.Type, strings.Join(r.Types(), ", "))
		}

		rec, err := factory(def)
		if err != nil {
			return fmt.Errorf("model %q: %w", def.Name, err)
		}
		r.Add(rec)
	}
	return nil
}

// Add registers an already constructed recognizer under its name.
func (r *Registry) Add(rec Recognizer) {
	if _, exists := r.models[rec.Name()]; !exists {
		r.order = append(r.order, rec.Name())
	}
	r.models[rec.Name()] = rec
}

// Get returns the recognizer for a model name.
func (r *Registry) Get(name string) (Recognizer, error) {
	rec, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %q (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	return rec, nil
}

// Select resolves names in order. An empty selection returns every model.
func (r *Registry) Select(names []string) ([]Recognizer, error) {
	if len(names) == 0 {
		names = r.order
	}
	out := make([]Recognizer, 0, len(names))
	for _, n := range names {
		rec, err := r.Get(n)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Names lists registered models in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Types lists the registered backend types.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
