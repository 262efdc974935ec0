// Package preflight provides readiness checks for the filesystem paths,
// stores, and remote services ferry depends on.
//
// These checks run in two contexts:
//   - "ferry run" and "ferry batch" call RunAll before the first item and
//     refuse to start when a check fails, so a doomed run never downloads.
//   - "ferry doctor" prints every check, including the optional remote
//     ones, as a table.
package preflight
