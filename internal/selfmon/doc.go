// Package selfmon describes the running Go process to the engine, so the
// CLI has something to show without a host application: runtime statics
// (goroutines, GOMAXPROCS, uptime, build version) and a sampled memory
// target.
package selfmon
