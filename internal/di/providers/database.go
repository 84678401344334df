package providers

import (
	"github.com/samber/do/v2"

	"github.com/Colorex-team/Colorex-System/internal/config"
	"github.com/Colorex-team/Colorex-System/internal/domain"
	"github.com/Colorex-team/Colorex-System/internal/logger"
	"github.com/Colorex-team/Colorex-System/internal/store"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the document store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	opts := append(domain.StoreIndexes(),
		store.WithAggregateCount(cfg.Store.AggregateCount),
		store.WithMaxTxnRetries(uint(cfg.Store.TxnMaxRetries)),
	)
	db, err := store.New(cfg.Store.DataPath, log.Component("store"), opts...)
	if err != nil {
		return nil, err
	}

	if cfg.InMemory() {
		log.Warn("Document store running in memory, data is lost on exit")
	} else {
		log.Info("Document store initialized", "path", cfg.Store.DataPath)
	}

	return &StoreHandle{Store: db}, nil
}
