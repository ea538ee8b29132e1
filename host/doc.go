// Package host implements the function host: a process that starts generic,
// is specialized at runtime with one artifact, and from then on serves every
// request with that artifact's handler.
//
// A Host moves through four states:
//
//	Unspecialized --Specialize--> Specializing --ok--> Ready
//	                                   |
//	                                   +--error--> Failed
//
// Ready and Failed both accept a new Specialize. A failed specialization
// never replaces the active handler, so a host that was Ready keeps serving
// the previous handler while in the Failed state.
//
// The active handler is published through an atomic pointer. Invoke never
// waits on Specialize, and a superseded handler is closed only after the
// calls already running on it have returned.
package host
