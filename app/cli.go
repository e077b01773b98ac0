package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jonwraymond/cropadvisor/artifact"
	"github.com/jonwraymond/cropadvisor/config"
	"github.com/jonwraymond/cropadvisor/httpapi"
	"github.com/jonwraymond/cropadvisor/observe"
	"github.com/jonwraymond/cropadvisor/pipeline"
	"github.com/jonwraymond/cropadvisor/stage"
)

// ErrUsage indicates a missing or unknown subcommand or argument.
var ErrUsage = errors.New("usage")

const usage = `usage: cropadvisor <command> [flags]

commands:
  serve                      run the HTTP API
  run <kind|advisory>        resolve one artifact kind, or the full advisory
  stage                      compute the current stage of a stage plan file
  runs [id]                  list recorded runs, or show what one run produced
  prune                      delete stored artifacts older than -older-than
`

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// Run executes the subcommand named by args[0].
func Run(ctx context.Context, args []string, stdout, stderr io.Writer, opts ...Option) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return ErrUsage
	}
	opts = append([]Option{WithLogOutput(stderr)}, opts...)

	switch cmd, rest := args[0], args[1:]; cmd {
	case "serve":
		return runServe(ctx, rest, stderr, opts)
	case "run":
		return runStep(ctx, rest, stdout, stderr, opts)
	case "stage":
		return runStage(rest, stdout, stderr, time.Now)
	case "prune":
		return runPrune(ctx, rest, stdout, stderr, opts)
	case "runs":
		return runRuns(ctx, rest, stdout, stderr, opts)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func runServe(ctx context.Context, args []string, stderr io.Writer, opts []Option) error {
	cfg, err := config.Parse(newFlagSet("serve", stderr), args)
	if err != nil {
		return err
	}
	a, err := New(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer closeApp(a)

	srvOpts := httpapi.Options{
		Authenticator: a.Authenticator(),
		Health:        a.Health,
		Logger:        a.Logger,
	}
	if cfg.GenerateTimeout > 0 {
		// one full advisory: every kind plus the merge
		srvOpts.WriteTimeout = time.Duration(len(artifact.Kinds)+1) * cfg.GenerateTimeout
	}
	srv := httpapi.NewServer(cfg.HTTPAddr, a.Coordinator, srvOpts)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	a.Logger.Info(ctx, "http server listening",
		observe.Field{Key: "addr", Value: cfg.HTTPAddr},
		observe.Field{Key: "auth", Value: cfg.AuthEnabled()},
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.Logger.Info(shutdownCtx, "http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func runStep(ctx context.Context, args []string, stdout, stderr io.Writer, opts []Option) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("%w: run needs a kind or %q", ErrUsage, pipeline.StepAdvisory)
	}
	target := strings.ToLower(args[0])
	var kind artifact.Kind
	if target != pipeline.StepAdvisory {
		k, err := artifact.ParseKind(target)
		if err != nil {
			return err
		}
		kind = k
	}

	fs := newFlagSet("run", stderr)
	location := fs.String("location", "", "Farm location")
	crop := fs.String("crop", "", "Crop name")
	sowing := fs.String("sowing-date", "", "Sowing date (YYYY-MM-DD or DD/MM/YYYY)")
	asJSON := fs.Bool("json", false, "Print the full result as JSON")
	cfg, err := config.Parse(fs, args[1:])
	if err != nil {
		return err
	}

	a, err := New(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer closeApp(a)

	req := pipeline.Request{Key: artifact.RequestKey{
		Location:   *location,
		CropName:   *crop,
		SowingDate: *sowing,
	}}

	if kind == "" {
		adv, err := a.Coordinator.Advise(ctx, req)
		if err != nil {
			return err
		}
		if *asJSON {
			return printJSON(stdout, httpapi.AdvisoryResponse{
				RunID:   adv.RunID,
				Records: adv.Records,
				Stage:   httpapi.NewStageDTO(adv.Stage),
				Merged:  adv.Merged,
				MergeID: adv.MergeID,
			})
		}
		fmt.Fprintln(stdout, adv.Merged)
		fmt.Fprint(stdout, stage.Render(adv.Stage))
		return nil
	}

	res, err := a.Coordinator.Step(ctx, kind, req)
	if err != nil {
		return err
	}
	if *asJSON {
		resp := httpapi.StepResponse{RunID: res.RunID, Record: res.Record}
		if res.Stage != nil {
			dto := httpapi.NewStageDTO(*res.Stage)
			resp.Stage = &dto
		}
		return printJSON(stdout, resp)
	}
	fmt.Fprintln(stdout, res.Record.Payload)
	return nil
}

func runStage(args []string, stdout, stderr io.Writer, now func() time.Time) error {
	fs := newFlagSet("stage", stderr)
	file := fs.String("file", "-", "Stage plan file, or - for stdin")
	sowing := fs.String("sowing-date", "", "Sowing date (YYYY-MM-DD or DD/MM/YYYY)")
	todayFlag := fs.String("today", "", "Evaluate as of this date (YYYY-MM-DD)")
	asJSON := fs.Bool("json", false, "Print the result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	today := now()
	if *todayFlag != "" {
		t, err := stage.ParseDate(*todayFlag)
		if err != nil {
			return fmt.Errorf("%w: -today %q: %v", ErrUsage, *todayFlag, err)
		}
		today = t
	}

	var (
		text []byte
		err  error
	)
	if *file == "-" {
		text, err = io.ReadAll(os.Stdin)
	} else {
		text, err = os.ReadFile(*file)
	}
	if err != nil {
		return fmt.Errorf("read stage plan: %w", err)
	}

	result, perr := pipeline.CurrentStage(string(text), *sowing, today)
	if perr != nil {
		fmt.Fprintf(stderr, "warning: %v\n", perr)
	}
	if *asJSON {
		resp := httpapi.StageResponse{StageDTO: httpapi.NewStageDTO(result)}
		if perr != nil {
			resp.ParseError = perr.Error()
		}
		return printJSON(stdout, resp)
	}
	fmt.Fprintln(stdout, strings.TrimSpace(stage.Render(result)))
	return nil
}

func runPrune(ctx context.Context, args []string, stdout, stderr io.Writer, opts []Option) error {
	fs := newFlagSet("prune", stderr)
	olderThan := fs.Duration("older-than", 30*24*time.Hour, "Delete artifacts created longer ago than this")
	cfg, err := config.Parse(fs, args)
	if err != nil {
		return err
	}

	a, err := New(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer closeApp(a)

	deleted, err := a.Coordinator.Prune(ctx, *olderThan)
	if err != nil {
		return err
	}

	kinds := make([]string, 0, len(deleted))
	var total int64
	for kind, n := range deleted {
		kinds = append(kinds, string(kind))
		total += n
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(stdout, "%s\t%d\n", kind, deleted[artifact.Kind(kind)])
	}
	fmt.Fprintf(stdout, "total\t%d\n", total)
	return nil
}

func runRuns(ctx context.Context, args []string, stdout, stderr io.Writer, opts []Option) error {
	var id string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		id, args = args[0], args[1:]
	}

	fs := newFlagSet("runs", stderr)
	limit := fs.Int("limit", httpapi.DefaultRunsLimit, "Maximum runs to list")
	asJSON := fs.Bool("json", false, "Print the result as JSON")
	cfg, err := config.Parse(fs, args)
	if err != nil {
		return err
	}
	if *limit <= 0 {
		return fmt.Errorf("%w: -limit must be positive", ErrUsage)
	}

	a, err := New(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if id == "" {
		runs, err := a.Coordinator.Runs(ctx, *limit)
		if err != nil {
			return err
		}
		if *asJSON {
			if runs == nil {
				runs = []artifact.Run{}
			}
			return printJSON(stdout, httpapi.RunsResponse{Runs: runs})
		}
		for _, run := range runs {
			fmt.Fprintf(stdout, "%s\t%s\t%s\t%s\n", run.ID, run.Step, run.CreatedAt.Format(time.RFC3339), formatKey(run.Key))
		}
		return nil
	}

	snap, err := a.Coordinator.Snapshot(ctx, id)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(stdout, httpapi.NewSnapshotResponse(snap))
	}
	fmt.Fprintf(stdout, "run\t%s\t%s\t%s\t%s\n", snap.Run.ID, snap.Run.Step, snap.Run.CreatedAt.Format(time.RFC3339), formatKey(snap.Run.Key))
	for _, rec := range snap.Records {
		fmt.Fprintf(stdout, "record\t%s\t%s\t%s\n", rec.Kind, rec.ID, rec.CreatedAt.Format(time.RFC3339))
	}
	for _, rec := range snap.Linked {
		fmt.Fprintf(stdout, "linked\t%s\t%s\t%s\trun %s\n", rec.Kind, rec.ID, rec.CreatedAt.Format(time.RFC3339), rec.RunID)
	}
	for _, m := range snap.Merges {
		fmt.Fprintf(stdout, "merge\t%s\t%s\n%s\n", m.ID, m.CreatedAt.Format(time.RFC3339), strings.TrimSpace(m.Payload))
	}
	return nil
}

func formatKey(key artifact.RequestKey) string {
	parts := []string{key.Location, key.CropName}
	if key.SowingDate != "" {
		parts = append(parts, key.SowingDate)
	}
	return strings.Join(parts, "/")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func closeApp(a *App) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		a.Logger.Warn(ctx, "shutdown incomplete", observe.Field{Key: "error", Value: err.Error()})
	}
}
