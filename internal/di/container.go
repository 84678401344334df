// Package di provides dependency injection configuration for the content graph service.
package di

import (
	"github.com/samber/do/v2"

	"github.com/Colorex-team/Colorex-System/internal/association"
	"github.com/Colorex-team/Colorex-System/internal/config"
	"github.com/Colorex-team/Colorex-System/internal/di/providers"
	"github.com/Colorex-team/Colorex-System/internal/fanout"
	"github.com/Colorex-team/Colorex-System/internal/logger"
	"github.com/Colorex-team/Colorex-System/internal/pagination"
	"github.com/Colorex-team/Colorex-System/internal/service"
	"github.com/Colorex-team/Colorex-System/internal/tagindex"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideCountCache)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Consistency layer
	do.Provide(injector, providers.ProvideTagIndex)
	do.Provide(injector, providers.ProvideAssociationRegistry)
	do.Provide(injector, providers.ProvidePaginationEngine)
	do.Provide(injector, providers.ProvideFanoutAssembler)
	do.Provide(injector, providers.ProvideNotifyDispatcher)

	// Business services
	do.Provide(injector, providers.ProvideContentService)
	do.Provide(injector, providers.ProvideSocialService)
	do.Provide(injector, providers.ProvideUserService)
	do.Provide(injector, providers.ProvideSubscriptionService)
	do.Provide(injector, providers.ProvideMaintenanceService)

	// Workers
	do.Provide(injector, providers.ProvideMaintenanceJob)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.CountCacheHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*tagindex.Maintainer](injector)
	_ = do.MustInvoke[*association.Registry](injector)
	_ = do.MustInvoke[*pagination.Engine](injector)
	_ = do.MustInvoke[*fanout.Assembler](injector)
	_ = do.MustInvoke[*providers.NotifyDispatcherHandle](injector)

	// Business services
	_ = do.MustInvoke[*service.ContentService](injector)
	_ = do.MustInvoke[*service.SocialService](injector)
	_ = do.MustInvoke[*service.UserService](injector)
	_ = do.MustInvoke[*service.SubscriptionService](injector)
	_ = do.MustInvoke[*service.MaintenanceService](injector)

	// Workers
	_ = do.MustInvoke[*providers.MaintenanceJob](injector)

	// Trigger search reindex if needed
	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
