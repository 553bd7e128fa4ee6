// Package progress defines the sink through which providers report download
// progress. Providers call Report synchronously; whoever owns the sink
// decides what to do with the samples.
package progress

// Sink receives progress samples. A total of zero or less means the total
// size is unknown.
type Sink interface {
	Report(done, total int64)
}

// Func adapts a plain function to a Sink.
type Func func(done, total int64)

func (f Func) Report(done, total int64) { f(done, total) }

// Nop discards all samples.
var Nop Sink = Func(func(int64, int64) {})
