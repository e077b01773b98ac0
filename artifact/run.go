package artifact

import "time"

// Run is one top-level pipeline invocation.
type Run struct {
	ID        string     `json:"id"`
	Step      string     `json:"step"`
	Key       RequestKey `json:"key"`
	CreatedAt time.Time  `json:"created_at"`
}

// Merge is the stored output of an advisory's merge step. Merges are run
// history only; no lookup ever returns one.
type Merge struct {
	ID        string     `json:"id"`
	RunID     string     `json:"run_id"`
	Key       RequestKey `json:"key"`
	Payload   string     `json:"payload"`
	CreatedAt time.Time  `json:"created_at"`
}

// Snapshot is what a run produced and what those records were built from.
type Snapshot struct {
	Run Run

	// Records were generated in the run, oldest first.
	Records []Record

	// Linked are records named in the DependencyIDs of Records, followed
	// transitively, that earlier runs produced. Pruned rows are absent.
	Linked []Record

	// Merges produced by the run, oldest first.
	Merges []Merge
}
