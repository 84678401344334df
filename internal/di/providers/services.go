package providers

import (
	"github.com/samber/do/v2"

	"github.com/Colorex-team/Colorex-System/internal/association"
	"github.com/Colorex-team/Colorex-System/internal/config"
	"github.com/Colorex-team/Colorex-System/internal/fanout"
	"github.com/Colorex-team/Colorex-System/internal/logger"
	"github.com/Colorex-team/Colorex-System/internal/pagination"
	"github.com/Colorex-team/Colorex-System/internal/service"
	"github.com/Colorex-team/Colorex-System/internal/tagindex"
)

// ProvideTagIndex provides the tag index maintainer.
func ProvideTagIndex(i do.Injector) (*tagindex.Maintainer, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return tagindex.New(storeHandle.Store, log.Component("tagindex")), nil
}

// ProvideAssociationRegistry provides the like and follow registry.
func ProvideAssociationRegistry(i do.Injector) (*association.Registry, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return association.NewRegistry(storeHandle.Store, log.Component("association")), nil
}

// ProvidePaginationEngine provides the pagination engine.
func ProvidePaginationEngine(i do.Injector) (*pagination.Engine, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	cacheHandle := do.MustInvoke[*CountCacheHandle](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return pagination.New(storeHandle.Store, pagination.Config{
		DefaultPageSize: cfg.Pagination.DefaultPageSize,
		MaxPageSize:     cfg.Pagination.MaxPageSize,
		CountScanLimit:  cfg.Pagination.CountScanLimit,
	}, cacheHandle.CountCache, searchHandle.Index, log.Component("pagination")), nil
}

// ProvideFanoutAssembler provides the detailed-read assembler.
func ProvideFanoutAssembler(i do.Injector) (*fanout.Assembler, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	return fanout.New(storeHandle.Store, cfg.Fanout.Concurrency, log.Component("fanout")), nil
}

// ProvideContentService provides the content service.
func ProvideContentService(i do.Injector) (*service.ContentService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tags := do.MustInvoke[*tagindex.Maintainer](i)
	pages := do.MustInvoke[*pagination.Engine](i)
	assembler := do.MustInvoke[*fanout.Assembler](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewContentService(storeHandle.Store, tags, pages, assembler, searchHandle.Index, log.Component("content")), nil
}

// ProvideSocialService provides the like, follow and feed service.
func ProvideSocialService(i do.Injector) (*service.SocialService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	registry := do.MustInvoke[*association.Registry](i)
	pages := do.MustInvoke[*pagination.Engine](i)
	dispatcher := do.MustInvoke[*NotifyDispatcherHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSocialService(storeHandle.Store, registry, pages, dispatcher.Dispatcher, log.Component("social")), nil
}

// ProvideUserService provides the user service.
func ProvideUserService(i do.Injector) (*service.UserService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewUserService(storeHandle.Store, log.Component("users")), nil
}

// ProvideSubscriptionService provides the subscription service.
func ProvideSubscriptionService(i do.Injector) (*service.SubscriptionService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewSubscriptionService(storeHandle.Store, log.Component("subscriptions")), nil
}

// ProvideMaintenanceService provides the orphan sweep and recount service.
func ProvideMaintenanceService(i do.Injector) (*service.MaintenanceService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	registry := do.MustInvoke[*association.Registry](i)
	tags := do.MustInvoke[*tagindex.Maintainer](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	subscriptions := do.MustInvoke[*service.SubscriptionService](i)
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewMaintenanceService(
		storeHandle.Store,
		registry,
		tags,
		searchHandle.Index,
		subscriptions,
		cfg.Maintenance.SweepRate,
		log.Component("maintenance"),
	), nil
}
