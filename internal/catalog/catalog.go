// Package catalog loads the exportable column catalog once per session.
package catalog

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/rosterctl/internal/api"
)

// FieldOption is one exportable column.
type FieldOption struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

// Catalog is the immutable list of columns plus the server's default selection.
type Catalog struct {
	Fields  []FieldOption `json:"fields" yaml:"fields"`
	Default []string      `json:"default" yaml:"default"`
}

// Label returns the display label for id, or id itself when unknown.
func (c Catalog) Label(id string) string {
	for _, f := range c.Fields {
		if f.ID == id {
			return f.Label
		}
	}
	return id
}

// Has reports whether id is part of the catalog.
func (c Catalog) Has(id string) bool {
	for _, f := range c.Fields {
		if f.ID == id {
			return true
		}
	}
	return false
}

// IDs returns every field id in catalog order.
func (c Catalog) IDs() []string {
	out := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		out = append(out, f.ID)
	}
	return out
}

// Empty reports whether the catalog has no fields.
func (c Catalog) Empty() bool {
	return len(c.Fields) == 0
}

// Source fetches the raw catalog; *api.Client satisfies it.
type Source interface {
	FetchFields(ctx context.Context) (api.FieldsResponse, error)
}

// Loader performs the one-shot catalog fetch.
type Loader struct {
	src    Source
	logger *zap.Logger

	once sync.Once
	cat  Catalog
	err  error
}

// NewLoader wires a source and logger.
func NewLoader(src Source, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{src: src, logger: logger}
}

// Load fetches the catalog on first use and caches the outcome. On failure the
// error is logged once and an empty catalog is returned together with it, so
// callers may continue with an empty selection.
func (l *Loader) Load(ctx context.Context) (Catalog, error) {
	l.once.Do(func() {
		resp, err := l.src.FetchFields(ctx)
		if err != nil {
			l.err = err
			l.logger.Warn("field catalog unavailable; continuing with an empty selection", zap.Error(err))
			return
		}
		l.cat = fromResponse(resp)
		l.logger.Debug("field catalog loaded", zap.Int("fields", len(l.cat.Fields)))
	})
	return l.cat, l.err
}

func fromResponse(resp api.FieldsResponse) Catalog {
	cat := Catalog{
		Fields:  make([]FieldOption, 0, len(resp.Fields)),
		Default: make([]string, 0, len(resp.Default)),
	}
	seen := make(map[string]struct{}, len(resp.Fields))
	for _, f := range resp.Fields {
		if f.ID == "" {
			continue
		}
		if _, dup := seen[f.ID]; dup {
			continue
		}
		seen[f.ID] = struct{}{}
		label := f.Label
		if label == "" {
			label = f.ID
		}
		cat.Fields = append(cat.Fields, FieldOption{ID: f.ID, Label: label})
	}
	// Defaults outside the catalog are dropped.
	for _, id := range resp.Default {
		if _, ok := seen[id]; !ok {
			continue
		}
		delete(seen, id)
		cat.Default = append(cat.Default, id)
	}
	return cat
}
