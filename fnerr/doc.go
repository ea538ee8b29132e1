// Package fnerr defines the error taxonomy of the function host.
//
// Every failure of the specialization pipeline and of invocation is reported
// as an [*Error] carrying a [Kind] (what went wrong) and a [Stage] (where it
// happened). Errors of the same kind match with errors.Is against the
// package sentinels:
//
//	if errors.Is(err, fnerr.ErrArtifactNotFound) {
//	    ...
//	}
//
// The underlying cause, when there is one, is reachable through Unwrap.
package fnerr
