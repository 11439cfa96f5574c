package source

import "errors"

// ErrUnavailable marks a source endpoint that could not be reached or that
// answered with a server-side failure. Providers translate it into a
// failed step outcome rather than letting it escape the pipeline.
var ErrUnavailable = errors.New("source unavailable")
