// Package internal contains the implementation packages of demosnippet.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - types: file descriptors, extensions and the demo.json model
//   - fetch: path cleaning and fetchers for directories, URLs and caches
//   - project: manifest validation and project loading
//   - highlight: syntax highlighting and import path rewriting
//   - layout: tabs, panels and tab selection
//   - preview: template loading and the rendered demo container
//   - script: companion script import and entry point execution
//   - viewer: load generations tying the sections together
//   - render: the HTML page around a view
//   - server: HTTP routes, origin checks and live reload
//   - websocket: the client hub for selection and reload messages
//   - watcher: debounced file system monitoring
//   - config: configuration loading and validation
//   - validation: URL and origin checks used by config
//   - logging, errors, version: ambient support
//
// # Data Flow
//
// A viewer load fetches the manifest through the caching fetcher, fetches
// every accepted entry, highlights it and builds the tab selector. The
// template section is fetched in parallel and parsed into a container that
// the companion script's entry point runs against once the snippets are in
// place. The server renders the settled view and pushes selection and
// reload messages to every open page.
package internal
