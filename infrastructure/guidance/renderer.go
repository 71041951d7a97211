// Package guidance composes gate guidance text for prompt injection.
package guidance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/ahrav/go-gatekeeper/internal/domain"
	"github.com/ahrav/go-gatekeeper/internal/ports"
)

var _ ports.GuidanceRenderer = (*Renderer)(nil)

// DefaultTemplate lays out one section per gate under a shared header.
const DefaultTemplate = `## Quality Requirements{{if .Framework}} ({{.Framework}}){{end}}
{{range .Gates}}
### {{.Name}}
{{trim .Guidance}}
{{end}}`

// Section is one gate's contribution to the rendered guidance.
type Section struct {
	ID       string
	Name     string
	Guidance string
}

// View is the data passed to the guidance template.
type View struct {
	Category  string
	PromptID  string
	Framework string
	Gates     []Section
}

// Renderer renders guidance for gates fetched from a provider.
type Renderer struct {
	provider ports.GateDefinitionProvider
	tmpl     *template.Template
	logger   *zap.Logger
}

// Option configures a Renderer.
type Option func(*Renderer) error

// WithTemplate replaces DefaultTemplate.
func WithTemplate(text string) Option {
	return func(r *Renderer) error {
		t, err := parse(text)
		if err != nil {
			return err
		}
		r.tmpl = t
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Renderer) error {
		r.logger = l
		return nil
	}
}

// NewRenderer creates a Renderer. It fails only on an invalid template.
func NewRenderer(provider ports.GateDefinitionProvider, opts ...Option) (*Renderer, error) {
	t, err := parse(DefaultTemplate)
	if err != nil {
		return nil, err
	}
	r := &Renderer{provider: provider, tmpl: t, logger: zap.NewNop()}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func parse(text string) (*template.Template, error) {
	t, err := template.New("guidance").
		Funcs(template.FuncMap{
			"trim":  strings.TrimSpace,
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
		}).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid guidance template: %w", err)
	}
	return t, nil
}

// RenderGuidance implements ports.GuidanceRenderer. ExplicitGateIDs in
// rctx override gateIDs. Unknown gates and gates without guidance are
// skipped; if nothing remains the result is empty.
func (r *Renderer) RenderGuidance(ctx context.Context, gateIDs []string, rctx domain.RenderContext) (string, error) {
	ids := gateIDs
	if len(rctx.ExplicitGateIDs) > 0 {
		ids = rctx.ExplicitGateIDs
	}

	view := View{Category: rctx.Category, PromptID: rctx.PromptID, Framework: rctx.Framework}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		def, err := r.provider.GetGate(ctx, id)
		if errors.Is(err, domain.ErrGateNotFound) {
			r.logger.Debug("skipping unknown gate", zap.String("gate_id", id))
			continue
		}
		if err != nil {
			return "", domain.NewGateError(id, "RenderGuidance", err)
		}
		if strings.TrimSpace(def.Guidance) == "" {
			continue
		}
		view.Gates = append(view.Gates, Section{ID: def.ID, Name: def.DisplayName(), Guidance: def.Guidance})
	}

	if len(view.Gates) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render guidance: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
