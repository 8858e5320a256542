package manager

import (
	"context"
	"log/slog"
)

// SyncFacilities pulls the provider's facility catalog and stores it in DB.
// An empty catalog is not stored so a failed fetch never wipes known names.
func (m *Manager) SyncFacilities(ctx context.Context) (int, error) {
	all := m.prov.ListFacilities(ctx, "")
	if len(all) == 0 {
		m.logger.Warn("skip facility sync; catalog empty", slog.String("provider", m.prov.Name()))
		return 0, nil
	}
	if err := m.store.UpsertFacilities(ctx, m.prov.Name(), all); err != nil {
		return 0, err
	}
	m.logger.Debug("synced facilities", slog.String("provider", m.prov.Name()), slog.Int("count", len(all)))
	return len(all), nil
}
