package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/vlm/flowforge/internal/ctxlog"
	"github.com/vlm/flowforge/internal/scheduler"
)

// Run executes the one-shot lifecycle: create a project bound to the target
// flow, run the flow to completion, and print the outcome.
func (a *App) Run(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	flowID, err := a.targetFlow(appConfig)
	if err != nil {
		return err
	}

	title := appConfig.ProjectTitle
	if title == "" {
		title = fmt.Sprintf("run of %s", flowID)
	}
	p, err := a.manager.CreateProject(ctx, "adhoc", title, appConfig.WorkspaceID, flowID)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	a.logger.Info("🚀 Starting flow execution.", "flow_id", flowID, "project_id", p.ID)
	report, runErr := a.manager.RunFlow(ctx, p.ID, scheduler.Options{
		MaxParallel: appConfig.WorkerCount,
	})
	a.printReport(report)

	if runErr != nil {
		return fmt.Errorf("execution failed: %w", runErr)
	}
	a.logger.Info("🏁 Execution finished.", "project_id", p.ID)
	return nil
}

// printReport writes the per-node outcome table to the app's output.
func (a *App) printReport(report *scheduler.Report) {
	if report == nil {
		return
	}
	ids := make([]string, 0, len(report.Nodes))
	for id := range report.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintf(a.outW, "flow %s, project %s\n", report.FlowID, report.ProjectID)
	for _, id := range ids {
		ns := report.Nodes[id]
		fmt.Fprintf(a.outW, "  %-20s %s", id, ns.State)
		if ns.Attempts > 1 {
			fmt.Fprintf(a.outW, " (attempts: %d)", ns.Attempts)
		}
		if ns.Error != "" {
			fmt.Fprintf(a.outW, " error: %s", ns.Error)
		}
		fmt.Fprintln(a.outW)
	}
}
