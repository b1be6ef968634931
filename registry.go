package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-dashboard/auth"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-featuregate/gate/guard"
)

// Category groups widgets for navigation and layout.
type Category string

const (
	CategoryInput  Category = "input"
	CategoryOutput Category = "output"
)

// Slot is the layout region a widget renders into.
type Slot string

const (
	SlotPrimary   Slot = "primary"
	SlotSecondary Slot = "secondary"
)

var slots = map[Category]Slot{
	CategoryInput:  SlotPrimary,
	CategoryOutput: SlotSecondary,
}

// FeatureKeyPrefix namespaces the feature gate key of every widget.
const FeatureKeyPrefix = "widgets."

// WidgetDescriptor describes one selectable panel. Descriptors are values
// and never change once the registry is built.
type WidgetDescriptor struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Category    Category      `json:"category,omitempty"`
	Available   bool          `json:"available"`
	Template    string        `json:"template"`
	Inputs      []string      `json:"inputs,omitempty"`
	MinRole     auth.UserRole `json:"min_role,omitempty"`
}

// FeatureKey is the gate key that can switch the widget off.
func (d WidgetDescriptor) FeatureKey() string {
	return FeatureKeyPrefix + d.ID
}

// Registry is an ordered, immutable set of widget descriptors.
type Registry struct {
	order []WidgetDescriptor
	index map[string]int
	gate  gate.FeatureGate
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithFeatureGate hides widgets whose "widgets.<id>" key is disabled.
func WithFeatureGate(fg gate.FeatureGate) RegistryOption {
	return func(r *Registry) {
		r.gate = fg
	}
}

// NewRegistry validates descriptors and keeps them in declared order. IDs
// must be unique and non empty.
func NewRegistry(descriptors []WidgetDescriptor, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		order: make([]WidgetDescriptor, 0, len(descriptors)),
		index: make(map[string]int, len(descriptors)),
	}

	for _, d := range descriptors {
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			return nil, ErrInvalidRegistry.Clone().WithMetadata(map[string]any{
				"reason": "empty widget id",
				"title":  d.Title,
			})
		}

		if _, exists := r.index[d.ID]; exists {
			return nil, ErrInvalidRegistry.Clone().WithMetadata(map[string]any{
				"reason": "duplicate widget id",
				"id":     d.ID,
			})
		}

		if d.Template == "" {
			d.Template = "widgets/" + d.ID
		}
		d.Inputs = append([]string(nil), d.Inputs...)

		r.index[d.ID] = len(r.order)
		r.order = append(r.order, d)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r, nil
}

// MustRegistry is NewRegistry that panics on error.
func MustRegistry(descriptors []WidgetDescriptor, opts ...RegistryOption) *Registry {
	r, err := NewRegistry(descriptors, opts...)
	if err != nil {
		panic(fmt.Sprintf("dashboard: %v", err))
	}
	return r
}

func (r *Registry) Len() int {
	return len(r.order)
}

// Get looks up a descriptor by id.
func (r *Registry) Get(id string) (WidgetDescriptor, bool) {
	i, ok := r.index[strings.TrimSpace(id)]
	if !ok {
		return WidgetDescriptor{}, false
	}
	return r.order[i], true
}

// All returns every descriptor, including unavailable ones, in declared
// order.
func (r *Registry) All() []WidgetDescriptor {
	return append([]WidgetDescriptor(nil), r.order...)
}

// Default is the first descriptor in the input category, or the first
// descriptor overall when nothing is categorized as input.
func (r *Registry) Default() (WidgetDescriptor, bool) {
	return defaultOf(r.order)
}

// Visible returns the descriptors role may see right now, in declared order.
func (r *Registry) Visible(ctx context.Context, role auth.UserRole) []WidgetDescriptor {
	out := make([]WidgetDescriptor, 0, len(r.order))
	for _, d := range r.order {
		if r.IsVisible(ctx, d, role) {
			out = append(out, d)
		}
	}
	return out
}

// IsVisible applies the availability flag, the widget feature gate and the
// minimum role.
func (r *Registry) IsVisible(ctx context.Context, d WidgetDescriptor, role auth.UserRole) bool {
	if !d.Available {
		return false
	}

	if d.MinRole != "" && !role.IsAtLeast(d.MinRole) {
		return false
	}

	if r.gate != nil {
		if err := guard.Require(ctx, r.gate, d.FeatureKey(),
			guard.WithDisabledError(ErrWidgetDisabled),
		); err != nil {
			return false
		}
	}

	return true
}

// Resolve returns the visible descriptor for id. Unknown, hidden or empty
// ids resolve to the visible default and report an
// ErrInvalidWidgetSelection, which callers log and otherwise ignore.
func (r *Registry) Resolve(ctx context.Context, id string, role auth.UserRole) (WidgetDescriptor, error) {
	visible := r.Visible(ctx, role)
	id = strings.TrimSpace(id)

	for _, d := range visible {
		if d.ID == id {
			return d, nil
		}
	}

	fallback, ok := defaultOf(visible)
	if !ok {
		return WidgetDescriptor{}, ErrNoWidgets
	}

	if id == "" {
		return fallback, nil
	}

	return fallback, ErrInvalidWidgetSelection.Clone().WithMetadata(map[string]any{
		"requested": id,
		"fallback":  fallback.ID,
	})
}

// SlotFor returns the layout slot of a descriptor.
func SlotFor(d WidgetDescriptor) Slot {
	if slot, ok := slots[d.Category]; ok {
		return slot
	}
	return SlotPrimary
}

func defaultOf(descriptors []WidgetDescriptor) (WidgetDescriptor, bool) {
	for _, d := range descriptors {
		if d.Category == CategoryInput {
			return d, true
		}
	}
	if len(descriptors) > 0 {
		return descriptors[0], true
	}
	return WidgetDescriptor{}, false
}

// IsInvalidWidgetSelection reports whether err is a corrected selection.
func IsInvalidWidgetSelection(err error) bool {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == ErrInvalidWidgetSelection.TextCode
	}
	return false
}
