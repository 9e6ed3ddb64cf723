// Package adapter defines the Data-Store Adapter contract (spec §4.I):
// the pluggable boundary between the cycle orchestrator and whatever
// external store holds sensor readings and rule outputs. The core
// never depends on a concrete store — only on this interface.
//
// Grounded on the teacher's internal/storage/filesystem.go FileSystem
// interface + RealFileSystem pair: a narrow interface over the one
// kind of I/O the rest of the package needs, with a real
// implementation and a swappable test double.
package adapter

import (
	"context"

	"github.com/pulsar-beacon/beacon/pkg/model"
)

// Reading is one sensor's value as returned by Read: the stored value
// (numeric or string) and, if the store tracks per-sample time, the
// timestamp it was recorded at.
type Reading struct {
	Value        model.ScalarValue
	TimestampMS  int64
	HasTimestamp bool
}

// Adapter is the read/write/health contract the orchestrator drives
// every cycle (spec §4.I). Unknown sensor names are simply absent from
// Read's result, never an error. All three methods may block and must
// honor ctx cancellation — the orchestrator uses this to abort
// in-flight I/O on shutdown (spec §5).
type Adapter interface {
	Read(ctx context.Context, sensors []string) (map[string]Reading, error)
	Write(ctx context.Context, outputs map[string]model.ScalarValue) error
	Healthy(ctx context.Context) bool
}
