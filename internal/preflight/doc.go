// Package preflight provides readiness checks for the filesystem paths,
// external tools, and API credentials that clipforge depends on.
//
// The daemon runs RunAll before starting the workflow so a misconfigured
// install fails fast instead of failing every queued job. Individual check
// functions are also usable from the CLI to display configuration health.
package preflight
