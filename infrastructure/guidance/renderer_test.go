package guidance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-gatekeeper/infrastructure/gatestore"
	"github.com/ahrav/go-gatekeeper/internal/domain"
)

func newStore() *gatestore.MemoryStore {
	return gatestore.NewMemoryStore(
		&domain.GateDefinition{ID: "seo-gate", Name: "SEO Gate", Type: domain.GateTypeValidation, Guidance: "Use descriptive headings.\n"},
		&domain.GateDefinition{ID: "style", Type: domain.GateTypeGuidance, Guidance: "Be concise"},
		&domain.GateDefinition{ID: "silent", Type: domain.GateTypeGuidance},
	)
}

func TestRenderGuidance(t *testing.T) {
	tests := []struct {
		name    string
		gateIDs []string
		rctx    domain.RenderContext
		want    string
	}{
		{
			name:    "single gate",
			gateIDs: []string{"style"},
			want:    "## Quality Requirements\n\n### style\nBe concise",
		},
		{
			name:    "framework header and order kept",
			gateIDs: []string{"seo-gate", "style"},
			rctx:    domain.RenderContext{Framework: "CAGEERF"},
			want:    "## Quality Requirements (CAGEERF)\n\n### SEO Gate\nUse descriptive headings.\n\n### style\nBe concise",
		},
		{
			name:    "explicit ids override",
			gateIDs: []string{"seo-gate"},
			rctx:    domain.RenderContext{ExplicitGateIDs: []string{"style"}},
			want:    "## Quality Requirements\n\n### style\nBe concise",
		},
		{
			name:    "unknown and blank gates skipped",
			gateIDs: []string{"missing", "silent", "style", "style"},
			want:    "## Quality Requirements\n\n### style\nBe concise",
		},
		{
			name:    "nothing to render",
			gateIDs: []string{"missing", "silent"},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRenderer(newStore())
			require.NoError(t, err)

			got, err := r.RenderGuidance(context.Background(), tt.gateIDs, tt.rctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderGuidance_CustomTemplate(t *testing.T) {
	r, err := NewRenderer(newStore(), WithTemplate(`{{range .Gates}}[{{upper .ID}}] {{trim .Guidance}} {{end}}{{.Category}}`))
	require.NoError(t, err)

	got, err := r.RenderGuidance(context.Background(), []string{"seo-gate", "style"}, domain.RenderContext{Category: "blog"})
	require.NoError(t, err)
	assert.Equal(t, "[SEO-GATE] Use descriptive headings. [STYLE] Be concise blog", got)

	_, err = NewRenderer(newStore(), WithTemplate("{{range}}"))
	assert.ErrorContains(t, err, "invalid guidance template")
}

type failingProvider struct{}

func (failingProvider) GetGate(context.Context, string) (*domain.GateDefinition, error) {
	return nil, errors.New("store offline")
}

func TestRenderGuidance_ProviderError(t *testing.T) {
	r, err := NewRenderer(failingProvider{})
	require.NoError(t, err)

	_, err = r.RenderGuidance(context.Background(), []string{"g"}, domain.RenderContext{})
	assert.ErrorContains(t, err, "store offline")
	var gateErr *domain.GateError
	require.ErrorAs(t, err, &gateErr)
	assert.Equal(t, "g", gateErr.GateID)
}
