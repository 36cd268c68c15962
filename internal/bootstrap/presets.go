package bootstrap

import (
	"context"

	"voicetransor/internal/domain"
	"voicetransor/internal/presets"
)

// ListPresets returns built-in presets followed by saved ones.
func (a *App) ListPresets() ([]domain.Preset, error) {
	svc, err := a.svc()
	if err != nil {
		return nil, err
	}
	saved, err := svc.Presets.List(context.Background())
	if err != nil {
		return nil, err
	}
	return append(presets.Builtins(), saved...), nil
}

// CreatePreset saves a new named prompt.
func (a *App) CreatePreset(name, promptText string) (domain.Preset, error) {
	svc, err := a.svc()
	if err != nil {
		return domain.Preset{}, err
	}
	return svc.Presets.Create(context.Background(), name, promptText)
}

// UpdatePreset replaces the prompt of a saved preset.
func (a *App) UpdatePreset(name, promptText string) error {
	svc, err := a.svc()
	if err != nil {
		return err
	}
	return svc.Presets.Update(context.Background(), name, promptText)
}

// DeletePreset removes a saved preset.
func (a *App) DeletePreset(name string) error {
	svc, err := a.svc()
	if err != nil {
		return err
	}
	return svc.Presets.Delete(context.Background(), name)
}
