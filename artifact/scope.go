package artifact

import "sync"

// Scope holds the records resolved during one top-level pipeline invocation.
//
// Contract:
// - Ownership: a Scope belongs to the invocation that created it and must not
//   be reused across invocations.
// - Concurrency: safe for concurrent use, though the pipeline resolves steps
//   sequentially.
type Scope struct {
	mu      sync.RWMutex
	runID   string
	records map[Kind]Record
}

// NewScope creates an empty scope for the given run id (may be empty).
func NewScope(runID string) *Scope {
	return &Scope{
		runID:   runID,
		records: make(map[Kind]Record),
	}
}

// RunID returns the run this scope belongs to.
func (s *Scope) RunID() string {
	return s.runID
}

// Get returns the record resolved for kind k in this scope.
func (s *Scope) Get(k Kind) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[k]
	return rec, ok
}

// Put stores a record for kind k, replacing any previous one.
func (s *Scope) Put(k Kind, rec Record) {
	s.mu.Lock()
	s.records[k] = rec
	s.mu.Unlock()
}

// Seed stores a caller-supplied value for kind k. Values that are not
// Records are normalized with FromValue and carry no id.
func (s *Scope) Seed(k Kind, v any) {
	s.Put(k, FromValue(k, v))
}

// Payload returns the payload resolved for kind k, or "" when absent.
func (s *Scope) Payload(k Kind) string {
	rec, _ := s.Get(k)
	return rec.Payload
}

// Records returns a copy of every record in the scope.
func (s *Scope) Records() map[Kind]Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Kind]Record, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}

// Len returns the number of resolved kinds.
func (s *Scope) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
