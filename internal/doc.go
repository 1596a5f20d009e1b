// Package internal contains the implementation packages of ssrgate.
//
// # Package Organization
//
//   - locale: supported-locale registry, Accept-Language matching and
//     per-request locale resolution
//   - renderer: the Renderer contract and the markdown page renderer
//   - pages: the page data source read by the page renderer
//   - document: HTML shell assembly, build manifest and shell reloading
//   - outcome: the once-only request outcome record and its sinks
//   - server: the HTTP boundary and its lifecycle
//   - middleware: request id, recovery, security headers and access log
//   - monitoring: Prometheus metrics and health checks
//   - config: viper-backed configuration and validation
//   - logging: the slog-backed Logger
//   - watcher: fsnotify-based file watching for development reloads
//   - version: build metadata
//
// # Request Flow
//
// A request first goes through locale resolution. Assets, API calls and
// bypassed prefixes are passed through untouched. Unprefixed page paths are
// redirected to their locale-prefixed form. Prefixed page paths are rendered,
// assembled into the shell and answered, and exactly one outcome record is
// emitted for each of them.
package internal
