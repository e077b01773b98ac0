package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jonwraymond/cropadvisor/artifact"
	"github.com/jonwraymond/cropadvisor/observe"
	"github.com/jonwraymond/cropadvisor/pipeline"
	"github.com/jonwraymond/cropadvisor/stage"
)

// maxRequestBodySize limits request bodies. Stage plans are the largest
// payloads a caller sends.
const maxRequestBodySize = 1 << 20

// DefaultRunsLimit is used when GET /v1/runs has no limit parameter.
const DefaultRunsLimit = 20

// Handlers holds the HTTP handler methods for the API.
type Handlers struct {
	coord  *pipeline.Coordinator
	logger observe.Logger
	now    func() time.Time
}

// NewHandlers creates handlers over coord.
func NewHandlers(coord *pipeline.Coordinator, logger observe.Logger, now func() time.Time) *Handlers {
	if logger == nil {
		logger = observe.NoopLogger()
	}
	if now == nil {
		now = time.Now
	}
	return &Handlers{coord: coord, logger: logger, now: now}
}

// HandleStep handles POST /v1/steps/{kind}.
func (h *Handlers) HandleStep(w http.ResponseWriter, r *http.Request) {
	kind, err := artifact.ParseKind(r.PathValue("kind"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var body KeyRequest
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := pipelineRequest(body)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.coord.Step(r.Context(), kind, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := StepResponse{RunID: res.RunID, Record: res.Record}
	if res.Stage != nil {
		dto := NewStageDTO(*res.Stage)
		resp.Stage = &dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleAdvise handles POST /v1/advisories.
func (h *Handlers) HandleAdvise(w http.ResponseWriter, r *http.Request) {
	var body KeyRequest
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := pipelineRequest(body)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	adv, err := h.coord.Advise(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AdvisoryResponse{
		RunID:   adv.RunID,
		Records: adv.Records,
		Stage:   NewStageDTO(adv.Stage),
		Merged:  adv.Merged,
		MergeID: adv.MergeID,
	})
}

// HandleStage handles POST /v1/stage/current. A plan with malformed dates
// is not an error: the result is unparseable and the parse error is
// reported beside it.
func (h *Handlers) HandleStage(w http.ResponseWriter, r *http.Request) {
	var body StageRequest
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}

	today := h.now()
	if body.Today != "" {
		t, err := stage.ParseDate(body.Today)
		if err != nil {
			h.fail(w, r, fmt.Errorf("today %q: %w", body.Today, ErrInvalidInput))
			return
		}
		today = t
	}

	result, perr := pipeline.CurrentStage(body.Text, body.SowingDate, today)
	resp := StageResponse{StageDTO: NewStageDTO(result)}
	if perr != nil {
		resp.ParseError = perr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleRuns handles GET /v1/runs.
func (h *Handlers) HandleRuns(w http.ResponseWriter, r *http.Request) {
	limit := DefaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.fail(w, r, fmt.Errorf("limit %q: %w", raw, ErrInvalidInput))
			return
		}
		limit = n
	}

	runs, err := h.coord.Runs(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if runs == nil {
		runs = []artifact.Run{}
	}
	writeJSON(w, http.StatusOK, RunsResponse{Runs: runs})
}

// HandleRun handles GET /v1/runs/{id}.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	snap, err := h.coord.Snapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSnapshotResponse(snap))
}

// HandlePrune handles POST /v1/prune.
func (h *Handlers) HandlePrune(w http.ResponseWriter, r *http.Request) {
	var body PruneRequest
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	olderThan, err := time.ParseDuration(body.OlderThan)
	if err != nil {
		h.fail(w, r, fmt.Errorf("older_than %q: %w", body.OlderThan, ErrInvalidInput))
		return
	}

	deleted, err := h.coord.Prune(r.Context(), olderThan)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var total int64
	for _, n := range deleted {
		total += n
	}
	writeJSON(w, http.StatusOK, PruneResponse{Deleted: deleted, Total: total})
}

// fail writes err and logs server-side failures.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpErr := MapError(err)
	if httpErr.StatusCode >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed",
			observe.Field{Key: "http.method", Value: r.Method},
			observe.Field{Key: "http.path", Value: r.URL.Path},
			observe.Field{Key: "http.status", Value: httpErr.StatusCode},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
	WriteError(w, err)
}

func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		return fmt.Errorf("read body: %w", ErrInvalidInput)
	}
	if len(body) > maxRequestBodySize {
		return fmt.Errorf("request body too large (max %d bytes): %w", maxRequestBodySize, ErrInvalidInput)
	}
	if err := json.Unmarshal(body, v); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || len(body) == 0 {
			return fmt.Errorf("invalid JSON: %w", ErrInvalidInput)
		}
		return fmt.Errorf("%v: %w", err, ErrInvalidInput)
	}
	return nil
}

func pipelineRequest(body KeyRequest) (pipeline.Request, error) {
	req := pipeline.Request{Key: body.Key()}
	if len(body.Seed) == 0 {
		return req, nil
	}
	req.Seed = make(map[artifact.Kind]any, len(body.Seed))
	for name, payload := range body.Seed {
		kind, err := artifact.ParseKind(name)
		if err != nil {
			return req, fmt.Errorf("seed: %w", err)
		}
		req.Seed[kind] = payload
	}
	return req, nil
}
