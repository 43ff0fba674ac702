// Package app contains the core application wiring. It defines the main App
// struct, its configuration, and the two execution lifecycles (one-shot run
// and long-running serve), decoupled from any specific entrypoint like a CLI.
package app
