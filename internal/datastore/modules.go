package datastore

import (
	"context"
	"fmt"
	"sort"

	"ai-list-filter/internal/common/config"
	"ai-list-filter/internal/common/errors"
)

// Module is a feature toggle as exposed by the API.
type Module struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
	Enabled bool   `json:"enabled"`
}

// Modules merges configured toggle defaults with stored overrides. Stored
// rows for unknown modules are ignored.
type Modules struct {
	defaults map[string]config.ModuleConfig
	store    ModuleStore
}

func NewModules(defaults map[string]config.ModuleConfig, store ModuleStore) *Modules {
	return &Modules{defaults: defaults, store: store}
}

func (m *Modules) List(ctx context.Context) ([]Module, error) {
	overrides := map[string]ModuleState{}
	if m.store != nil {
		stored, err := m.store.ModuleStates(ctx)
		if err != nil {
			return nil, err
		}
		overrides = stored
	}

	out := make([]Module, 0, len(m.defaults))
	for id, def := range m.defaults {
		mod := Module{ID: id, Name: def.Name, Visible: def.Visible, Enabled: def.Enabled}
		if o, ok := overrides[id]; ok {
			mod.Visible = o.Visible
			mod.Enabled = o.Enabled
		}
		out = append(out, mod)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Update stores the given toggles and returns the merged list.
func (m *Modules) Update(ctx context.Context, updates []Module) ([]Module, error) {
	for _, u := range updates {
		if _, ok := m.defaults[u.ID]; !ok {
			return nil, errors.NewValidationError("unknown module: " + u.ID)
		}
	}
	if m.store == nil {
		return nil, errors.NewDatabaseConnectionFailedError(fmt.Errorf("module store is not configured"))
	}
	for _, u := range updates {
		if err := m.store.SaveModuleState(ctx, ModuleState{ID: u.ID, Visible: u.Visible, Enabled: u.Enabled}); err != nil {
			return nil, err
		}
	}
	return m.List(ctx)
}

// Enabled reports whether module id exists and is switched on.
func (m *Modules) Enabled(ctx context.Context, id string) (bool, error) {
	modules, err := m.List(ctx)
	if err != nil {
		return false, err
	}
	for _, mod := range modules {
		if mod.ID == id {
			return mod.Enabled, nil
		}
	}
	return false, nil
}
