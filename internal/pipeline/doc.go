// Package pipeline runs cook transforms behind bounded submit/collect
// queues.
//
// A Pipeline owns a fixed set of worker goroutines fed from a bounded input
// queue. Submit blocks when the queue is full, which is the only
// back-pressure mechanism jobs have. Collect returns results in completion
// order, not submission order. CPU-heavy stages inside the cook functions are
// offloaded to the shared compute pool through PoolRunner.
//
// Panics inside a cook function are converted to failed results carrying a
// diagnostic. They never cross the worker boundary.
//
// Callers must collect every submitted result before calling Close. The
// output buffer is sized for queue depth plus worker count, so delivery never
// blocks under that discipline.
package pipeline
