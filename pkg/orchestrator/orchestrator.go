package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/user/compliance-radar/pkg/engine"
	"github.com/user/compliance-radar/pkg/scanners"
)

// ErrInvalidRequest is returned when the request list cannot be dispatched.
var ErrInvalidRequest = errors.New("invalid scan request")

// Request pairs a scanner with what it should scan.
type Request struct {
	Scanner scanners.Kind   `json:"scanner" yaml:"scanner"`
	Target  scanners.Target `json:"target" yaml:"target"`
}

// Orchestrator fans scan requests out to adapters and joins their outcomes.
// It holds no per-scan state and may serve concurrent RunScan calls.
type Orchestrator struct {
	adapters map[scanners.Kind]scanners.Adapter

	// MaxParallel caps concurrently running scanners. Zero or less means no limit.
	MaxParallel int
	Logger      *slog.Logger
}

// New registers the given adapters by name. A later adapter replaces an earlier one of the same kind.
func New(adapters ...scanners.Adapter) *Orchestrator {
	o := &Orchestrator{adapters: make(map[scanners.Kind]scanners.Adapter, len(adapters))}
	for _, a := range adapters {
		o.adapters[a.Name()] = a
	}
	return o
}

// NewDefault registers every built-in adapter, configured by opts.
func NewDefault(opts func(scanners.Kind) scanners.Options) (*Orchestrator, error) {
	var adapters []scanners.Adapter
	for _, kind := range scanners.Kinds() {
		a, err := scanners.New(kind, opts(kind))
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return New(adapters...), nil
}

// Adapter returns the registered adapter for kind.
func (o *Orchestrator) Adapter(kind scanners.Kind) (scanners.Adapter, bool) {
	a, ok := o.adapters[kind]
	return a, ok
}

// RunScan runs every request concurrently and returns one outcome per request, in request order.
// Scanner failures are reported inside the outcomes; the only error is ErrInvalidRequest.
func (o *Orchestrator) RunScan(ctx context.Context, environment string, reqs []Request) (*engine.ScanReport, error) {
	if err := o.validate(reqs); err != nil {
		return nil, err
	}

	log := o.logger()
	report := &engine.ScanReport{
		ID:          uuid.NewString(),
		Environment: environment,
		Outcomes:    make([]engine.ScanOutcome, len(reqs)),
		StartedAt:   time.Now().UTC(),
	}
	log.Info("scan started", "scan_id", report.ID, "environment", environment, "scanners", len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	if o.MaxParallel > 0 {
		g.SetLimit(o.MaxParallel)
	}
	for i, req := range reqs {
		adapter := o.adapters[req.Scanner]
		g.Go(func() error {
			report.Outcomes[i] = o.dispatch(gctx, log, adapter, req.Target)
			return nil
		})
	}
	// dispatch never returns an error; Wait is only the join.
	_ = g.Wait()

	report.CompletedAt = time.Now().UTC()
	sum := report.Summary()
	log.Info("scan completed",
		"scan_id", report.ID,
		"findings", sum.TotalChecks,
		"failed_scanners", sum.FailedScanners,
		"skipped_scanners", sum.SkippedScanners,
		"duration_ms", sum.DurationMs)
	return report, nil
}

func (o *Orchestrator) validate(reqs []Request) error {
	if len(reqs) == 0 {
		return fmt.Errorf("%w: no scanners requested", ErrInvalidRequest)
	}
	for i, req := range reqs {
		if _, ok := o.adapters[req.Scanner]; !ok {
			return fmt.Errorf("%w: request %d: unknown scanner %q", ErrInvalidRequest, i, req.Scanner)
		}
	}
	return nil
}

func (o *Orchestrator) dispatch(ctx context.Context, log *slog.Logger, adapter scanners.Adapter, target scanners.Target) engine.ScanOutcome {
	name := string(adapter.Name())
	outcome := engine.ScanOutcome{Scanner: name, TargetKind: target.Kind}

	if !adapter.CanRun(target) {
		outcome.Skipped = true
		outcome.SkipReason = fmt.Sprintf("target kind %q is not supported by %s", target.Kind, name)
		outcome.Findings = []engine.Finding{}
		log.Warn("scanner skipped", "scanner", name, "reason", outcome.SkipReason)
		return outcome
	}

	outcome.Version = adapter.Version(ctx)
	log.Debug("scanner dispatched", "scanner", name, "version", outcome.Version, "target_kind", target.Kind)

	start := time.Now()
	outcome.Findings = adapter.Run(ctx, target)
	outcome.DurationMs = time.Since(start).Milliseconds()
	if outcome.Findings == nil {
		outcome.Findings = []engine.Finding{}
	}

	if len(outcome.Findings) == 1 && outcome.Findings[0].IsError() {
		outcome.Error = outcome.Findings[0].ErrorMessage()
		log.Error("scanner failed", "scanner", name, "error", outcome.Error, "duration_ms", outcome.DurationMs)
		return outcome
	}
	log.Debug("scanner finished", "scanner", name, "findings", len(outcome.Findings), "duration_ms", outcome.DurationMs)
	return outcome
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
