// Package app contains the core application logic. It wires the workflow
// loader, the scheduler, the history store and the report together behind
// an App value, decoupled from any specific entrypoint like a CLI.
package app
