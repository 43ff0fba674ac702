package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vlm/flowforge/internal/api"
	"github.com/vlm/flowforge/internal/ctxlog"
	"github.com/vlm/flowforge/internal/events"
	"github.com/vlm/flowforge/internal/scheduler"
)

// Serve runs the long-lived mode: the status API and the socket.io event
// gateway stay up until ctx is cancelled. The target flow is executed once
// with events streaming to connected clients; the API keeps answering status
// queries during and after the run.
func (a *App) Serve(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	flowID, err := a.targetFlow(appConfig)
	if err != nil {
		return err
	}

	gateway := events.NewSocketGateway()
	defer gateway.Close()
	server := api.NewServer(a.manager, a.flows, gateway, a.logger)

	serveErr := make(chan error, 1)
	go func() {
		err := server.Start(fmt.Sprintf(":%d", appConfig.APIPort))
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	runDone := make(chan error, 1)
	go func() {
		title := appConfig.ProjectTitle
		if title == "" {
			title = fmt.Sprintf("run of %s", flowID)
		}
		p, err := a.manager.CreateProject(ctx, "adhoc", title, appConfig.WorkspaceID, flowID)
		if err != nil {
			runDone <- err
			return
		}
		report, runErr := a.manager.RunFlow(ctx, p.ID, scheduler.Options{
			MaxParallel: appConfig.WorkerCount,
			Emitter:     gateway,
		})
		a.printReport(report)
		runDone <- runErr
	}()

	var runErr error
	for {
		select {
		case err := <-serveErr:
			return fmt.Errorf("status API failed: %w", err)
		case err := <-runDone:
			runDone = nil
			runErr = err
			a.logger.Info("Flow run finished; status API stays up.", "error", err)
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("Status API shutdown failed.", "error", err)
			}
			return runErr
		}
	}
}
