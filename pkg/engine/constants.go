package engine

// Defaults referenced by the execution cycle (spec.md §4.9).
const (
	// DefaultMaxCycles is used when ExecutionOptions.MaxCycles is zero or
	// negative; Run has no unbounded mode.
	DefaultMaxCycles = 1000

	// DefaultBackwardMaxDepth mirrors the backward engine's own default
	// so a façade wiring both stays consistent without restating it.
	DefaultBackwardMaxDepth = 32
)
