// Package preflight provides readiness checks for the executables, run
// directory and provider credentials hackreview depends on.
//
// These checks run in two contexts:
//   - "hackreview config validate" runs RunAll and reports every result.
//   - "hackreview status" uses CheckProvidersFromConfig to show which
//     providers are configured.
//
// Stage handlers repeat the checks they need in Prepare, so a failing check
// here never blocks a run whose remaining work does not need it.
package preflight
