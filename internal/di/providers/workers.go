package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/Colorex-team/Colorex-System/internal/config"
	"github.com/Colorex-team/Colorex-System/internal/logger"
	"github.com/Colorex-team/Colorex-System/internal/notify"
	"github.com/Colorex-team/Colorex-System/internal/service"
)

// NotifyDispatcherHandle wraps the notification dispatcher with shutdown capability.
type NotifyDispatcherHandle struct {
	*notify.Dispatcher
}

// Shutdown implements do.Shutdownable. Pending events are delivered until the timeout.
func (h *NotifyDispatcherHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Dispatcher.Shutdown(ctx)
}

// ProvideNotifyDispatcher provides the asynchronous notification dispatcher.
// Delivery goes to the log until a push collaborator is wired in.
func ProvideNotifyDispatcher(i do.Injector) (*NotifyDispatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	notifyLog := log.Component("notify")
	dispatcher := notify.NewDispatcher(notify.LogNotifier{Logger: notifyLog}, cfg.Notify.Buffer, notifyLog)

	log.Info("Notification dispatcher started", "buffer", cfg.Notify.Buffer)

	return &NotifyDispatcherHandle{Dispatcher: dispatcher}, nil
}

// MaintenanceJob runs the periodic orphan sweep and subscription expiry.
type MaintenanceJob struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *MaintenanceJob) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideMaintenanceJob provides the periodic maintenance job.
// A zero sweep interval leaves the job idle.
func ProvideMaintenanceJob(i do.Injector) (*MaintenanceJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	maintenance := do.MustInvoke[*service.MaintenanceService](i)

	ctx, cancel := context.WithCancel(context.Background())

	interval := cfg.Maintenance.SweepInterval
	if interval <= 0 {
		log.Info("Maintenance job disabled")
		return &MaintenanceJob{cancel: cancel}, nil
	}

	run := func() {
		report, err := maintenance.RunOnce(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("Maintenance run failed", logger.Err(err))
			}
			return
		}
		if report.Sweep.Total() > 0 || report.ExpiredSubscriptions > 0 {
			log.Info("Maintenance run completed",
				"orphans_removed", report.Sweep.Total(),
				"subscriptions_expired", report.ExpiredSubscriptions,
			)
		}
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// Initial run on startup
		run()

		for {
			select {
			case <-ticker.C:
				run()
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Maintenance job started", "interval", interval)

	return &MaintenanceJob{cancel: cancel}, nil
}
