// Package dist provides the deferred distributed-style backend. It models an
// engine with a restricted physical type set: no nullable integers, nullable
// booleans, dedicated strings, dictionary encoding, or durations. Logical
// types whose preferred representation is missing here land on their
// fallback representation; Timedelta has none and is simply unsupported.
//
// Type inference on this backend reads a fixed number of leading rows
// rather than the first partition.
package dist

import (
	"tabular/pkg/backend"
	"tabular/pkg/dtype"
)

// inferenceRows bounds how many leading rows inference may pull in.
const inferenceRows = 100000

func init() {
	backend.Register(backend.Capabilities{
		Kind:          backend.Distributed,
		Deferred:      true,
		InferenceRows: inferenceRows,
		Supported: []dtype.Kind{
			dtype.Int64, dtype.Float64, dtype.Bool, dtype.Object, dtype.Datetime,
		},
	})
}

// New builds a distributed-style frame over the given partitions.
func New(names []string, parts []backend.Partition) (*backend.Deferred, error) {
	return backend.NewDeferred(backend.Distributed, names, parts)
}
