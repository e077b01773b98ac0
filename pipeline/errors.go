package pipeline

import "errors"

var (
	// ErrNoMergeGenerator indicates Advise was called without a merge generator.
	ErrNoMergeGenerator = errors.New("pipeline: no merge generator configured")

	// ErrNoRunStore indicates run listing was requested without a run store.
	ErrNoRunStore = errors.New("pipeline: no run store configured")

	// ErrPruneUnsupported indicates the configured store cannot prune.
	ErrPruneUnsupported = errors.New("pipeline: store does not support pruning")

	// ErrInvalidRetention indicates a non-positive prune age.
	ErrInvalidRetention = errors.New("pipeline: retention must be positive")
)
