package widgets_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-dashboard"
	"github.com/goliatone/go-dashboard/auth"
	"github.com/goliatone/go-dashboard/widgets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinRegistry(t *testing.T) {
	registry, err := widgets.NewRegistry()
	require.NoError(t, err)
	assert.Equal(t, len(widgets.Descriptors()), registry.Len())

	def, ok := registry.Default()
	require.True(t, ok)
	assert.Equal(t, widgets.Assessment, def.ID)

	translator, ok := registry.Get(widgets.TechnicalTranslator)
	require.True(t, ok)
	assert.False(t, translator.Available)
	assert.Equal(t, "widgets/technical-translator", translator.Template)
}

func TestBuiltinRegistry_VisibleByRole(t *testing.T) {
	registry, err := widgets.NewRegistry()
	require.NoError(t, err)

	ids := func(ds []dashboard.WidgetDescriptor) []string {
		out := make([]string, 0, len(ds))
		for _, d := range ds {
			out = append(out, d.ID)
		}
		return out
	}

	guest := ids(registry.Visible(context.Background(), auth.RoleGuest))
	assert.NotContains(t, guest, widgets.Recommendations)
	assert.NotContains(t, guest, widgets.TechnicalTranslator)
	assert.Contains(t, guest, widgets.Personas)

	member := ids(registry.Visible(context.Background(), auth.RoleMember))
	assert.Equal(t, []string{
		widgets.Assessment,
		widgets.Research,
		widgets.Overview,
		widgets.Personas,
		widgets.Recommendations,
		widgets.Completeness,
	}, member)
}

func TestBuiltinRegistry_Slots(t *testing.T) {
	registry, err := widgets.NewRegistry()
	require.NoError(t, err)

	for _, d := range registry.All() {
		slot := dashboard.SlotFor(d)
		if d.Category == dashboard.CategoryInput {
			assert.Equal(t, dashboard.SlotPrimary, slot, d.ID)
		} else {
			assert.Equal(t, dashboard.SlotSecondary, slot, d.ID)
		}
	}
}
