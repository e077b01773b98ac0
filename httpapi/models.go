package httpapi

import (
	"time"

	"github.com/jonwraymond/cropadvisor/artifact"
	"github.com/jonwraymond/cropadvisor/stage"
)

// KeyRequest carries the request key shared by step and advisory calls.
type KeyRequest struct {
	Location   string `json:"location"`
	CropName   string `json:"crop_name"`
	SowingDate string `json:"sowing_date,omitempty"`

	// Seed pre-populates the run's scope with payloads the caller already
	// has, keyed by kind name.
	Seed map[string]string `json:"seed,omitempty"`
}

// Key returns the request key.
func (r KeyRequest) Key() artifact.RequestKey {
	return artifact.RequestKey{
		Location:   r.Location,
		CropName:   r.CropName,
		SowingDate: r.SowingDate,
	}
}

// StageDTO is the JSON form of a current-stage result.
type StageDTO struct {
	Status     string `json:"status"`
	Today      string `json:"today"`
	SowingDate string `json:"sowing_date,omitempty"`
	LastEnd    string `json:"last_end,omitempty"`
	FirstStart string `json:"first_start,omitempty"`

	Stage         *IntervalDTO `json:"stage,omitempty"`
	DaysCompleted int          `json:"days_completed,omitempty"`
	DaysTotal     int          `json:"days_total,omitempty"`
	DaysRemaining int          `json:"days_remaining,omitempty"`
	ProgressPct   float64      `json:"progress_pct,omitempty"`

	// Section is the rendered current-stage text.
	Section string `json:"section"`
}

// IntervalDTO is one growth stage.
type IntervalDTO struct {
	Name  string `json:"name"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// NewStageDTO converts a stage result.
func NewStageDTO(r stage.Result) StageDTO {
	dto := StageDTO{
		Status:  r.Status.String(),
		Today:   formatDate(r.Today),
		Section: stage.Render(r),
	}
	switch r.Status {
	case stage.StatusNotYetSown:
		dto.SowingDate = formatDate(r.SowingDate)
	case stage.StatusHarvested:
		dto.LastEnd = formatDate(r.LastEnd)
	case stage.StatusNotStarted:
		dto.FirstStart = formatDate(r.FirstStart)
	case stage.StatusInStage:
		dto.Stage = &IntervalDTO{
			Name:  r.Stage.Name,
			Start: formatDate(r.Stage.Start),
			End:   formatDate(r.Stage.End),
		}
		dto.DaysCompleted = r.DaysCompleted
		dto.DaysTotal = r.DaysTotal
		dto.DaysRemaining = r.DaysRemaining
		dto.ProgressPct = r.ProgressPct
	}
	return dto
}

// StepResponse is returned by POST /v1/steps/{kind}.
type StepResponse struct {
	RunID  string          `json:"run_id"`
	Record artifact.Record `json:"record"`
	Stage  *StageDTO       `json:"stage,omitempty"`
}

// AdvisoryResponse is returned by POST /v1/advisories.
type AdvisoryResponse struct {
	RunID   string                            `json:"run_id"`
	Records map[artifact.Kind]artifact.Record `json:"records"`
	Stage   StageDTO                          `json:"stage"`
	Merged  string                            `json:"merged"`
	MergeID string                            `json:"merge_id,omitempty"`
}

// StageRequest is the body of POST /v1/stage/current.
type StageRequest struct {
	Text       string `json:"text"`
	SowingDate string `json:"sowing_date,omitempty"`
	// Today overrides the server date, as YYYY-MM-DD.
	Today string `json:"today,omitempty"`
}

// StageResponse is returned by POST /v1/stage/current.
type StageResponse struct {
	StageDTO
	ParseError string `json:"parse_error,omitempty"`
}

// RunsResponse is returned by GET /v1/runs.
type RunsResponse struct {
	Runs []artifact.Run `json:"runs"`
}

// SnapshotResponse is returned by GET /v1/runs/{id}.
type SnapshotResponse struct {
	Run     artifact.Run      `json:"run"`
	Records []artifact.Record `json:"records"`
	Linked  []artifact.Record `json:"linked"`
	Merges  []artifact.Merge  `json:"merges"`
}

// NewSnapshotResponse converts a snapshot, rendering empty lists as [].
func NewSnapshotResponse(snap artifact.Snapshot) SnapshotResponse {
	resp := SnapshotResponse{
		Run:     snap.Run,
		Records: snap.Records,
		Linked:  snap.Linked,
		Merges:  snap.Merges,
	}
	if resp.Records == nil {
		resp.Records = []artifact.Record{}
	}
	if resp.Linked == nil {
		resp.Linked = []artifact.Record{}
	}
	if resp.Merges == nil {
		resp.Merges = []artifact.Merge{}
	}
	return resp
}

// PruneRequest is the body of POST /v1/prune. OlderThan is a Go duration
// string such as "720h".
type PruneRequest struct {
	OlderThan string `json:"older_than"`
}

// PruneResponse is returned by POST /v1/prune.
type PruneResponse struct {
	Deleted map[artifact.Kind]int64 `json:"deleted"`
	Total   int64                   `json:"total"`
}

// ErrorDTO is the body of every error response.
type ErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(stage.DateLayout)
}
