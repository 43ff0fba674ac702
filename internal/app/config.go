package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	FlowPath    string // .hcl / .yaml flow definition file or directory
	FlowID      string // flow to bind the one-shot project to; defaults to the only loaded flow
	SandboxRoot string // directory the local sandbox nests workspaces under
	ServerPath  string // optional YAML server config (Postgres DSN, API address)

	ProjectTitle string
	WorkspaceID  string

	LogFormat   string
	LogLevel    string
	WorkerCount int

	Serve   bool
	APIPort int
}

// NewConfig validates a Config and applies defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.FlowPath == "" {
		return nil, errors.New("FlowPath is a required configuration field and cannot be empty")
	}
	if cfg.SandboxRoot == "" {
		cfg.SandboxRoot = "sandbox"
	}
	if cfg.WorkspaceID == "" {
		cfg.WorkspaceID = "default"
	}
	if cfg.Serve && cfg.APIPort <= 0 {
		return nil, errors.New("APIPort must be positive in serve mode")
	}
	return &cfg, nil
}
