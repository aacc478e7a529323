// Package cli provides the interactive EduMarket command-line client.
//
// It wires configuration, the local SQLite store, the API client and the
// session layer, then runs a REPL on top of them. At startup the persisted
// session is restored and validated (refreshing an expired access token),
// the cart watcher and the storage monitor start in the background, and
// metrics are served when an address is configured.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, runREPL and execIface for details.
package cli
