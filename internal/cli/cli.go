package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vlm/flowforge/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("flowforge", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
FlowForge - A project and flow orchestration engine.

Usage:
  flowforge [options] [FLOW_PATH]

Arguments:
  FLOW_PATH
    Path to a single flow file (.hcl, .yaml) or a directory of flow files.

Options:
`)
		flagSet.PrintDefaults()
	}

	flowFlag := flagSet.String("flow", "", "Path to the flow file or directory.")
	fFlag := flagSet.String("f", "", "Path to the flow file or directory (shorthand).")
	flowIDFlag := flagSet.String("flow-id", "", "Flow to run when the path defines more than one.")
	sandboxFlag := flagSet.String("sandbox-root", "sandbox", "Directory the project sandboxes live under.")
	workspaceFlag := flagSet.String("workspace", "default", "Workspace the project is created in.")
	titleFlag := flagSet.String("title", "", "Title for the created project.")
	configFlag := flagSet.String("config", "", "Path to the YAML server config (Postgres DSN etc).")
	serveFlag := flagSet.Bool("serve", false, "Keep the status API and event gateway running after the flow run.")
	portFlag := flagSet.Int("port", 8080, "Port for the status API in serve mode.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 10, "Maximum number of concurrently running nodes. 0 is unbounded.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *flowFlag != "" {
		path = *flowFlag
	} else if *fFlag != "" {
		path = *fFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Flow path determined.", "path", path)

	if path == "" {
		slog.Debug("No flow path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	if *workersFlag < 0 {
		return nil, false, &ExitError{Code: 2, Message: "invalid workers: must be zero or positive"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		FlowPath:     path,
		FlowID:       *flowIDFlag,
		SandboxRoot:  *sandboxFlag,
		ServerPath:   *configFlag,
		ProjectTitle: *titleFlag,
		WorkspaceID:  *workspaceFlag,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
		WorkerCount:  *workersFlag,
		Serve:        *serveFlag,
		APIPort:      *portFlag,
	})

	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
