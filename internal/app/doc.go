// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the headless run lifecycle (load a grid
// document, evaluate it, apply overrides, print the results), decoupled from
// any specific entrypoint like a CLI or server.
package app
