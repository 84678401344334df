package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/Colorex-team/Colorex-System/internal/config"
	"github.com/Colorex-team/Colorex-System/internal/logger"
	"github.com/Colorex-team/Colorex-System/internal/search"
	"github.com/Colorex-team/Colorex-System/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
// Index is nil when the index is disabled.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	if h.Index == nil {
		return nil
	}
	return h.Close()
}

// ProvideSearchIndex provides the Bleve title index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Search.IndexEnabled {
		log.Info("Search index disabled, title search uses prefix matching")
		return &SearchIndexHandle{}, nil
	}

	index, err := search.Open(search.Options{
		DataPath: cfg.Search.IndexPath,
		Logger:   log.Component("search"),
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount, "path", cfg.Search.IndexPath)

	return &SearchIndexHandle{Index: index}, nil
}

// TriggerSearchReindexIfNeeded rebuilds an empty index from the store in the
// background. A fresh or recreated index starts empty.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	if searchHandle.Index == nil {
		return
	}

	docCount, err := searchHandle.DocumentCount()
	if err != nil || docCount > 0 {
		return
	}

	log := do.MustInvoke[*logger.Logger](i)
	maintenance := do.MustInvoke[*service.MaintenanceService](i)

	go func() {
		log.Info("Search index is empty, reindexing posts")
		n, err := maintenance.ReindexSearch(context.Background())
		if err != nil {
			log.Error("Search reindex failed", logger.Err(err))
			return
		}
		log.Info("Search reindex completed", "posts", n)
	}()
}
