package providers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/snipsyncapp/snipsync-server/internal/config"
	"github.com/snipsyncapp/snipsync-server/internal/logger"
	"github.com/snipsyncapp/snipsync-server/internal/store"
	"github.com/snipsyncapp/snipsync-server/internal/store/memory"
	"github.com/snipsyncapp/snipsync-server/internal/store/sqlite"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the configured persistence backend.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	switch cfg.Store.Backend {
	case config.StoreBackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		st, err := sqlite.Open(cfg.Store.Path, log.Logger)
		if err != nil {
			return nil, err
		}
		log.Info("sqlite store opened", "path", cfg.Store.Path)
		return &StoreHandle{Store: st}, nil
	case config.StoreBackendMemory:
		log.Info("using volatile in-memory store")
		return &StoreHandle{Store: memory.New(log.Logger)}, nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}
