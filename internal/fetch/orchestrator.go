package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/joeblew999/plat-overlay/internal/catalog"
	"github.com/joeblew999/plat-overlay/pkg/logger"
	"github.com/joeblew999/plat-overlay/pkg/metrics"
)

// SettleFunc runs once per outcome, before progress is reported for it.
// Calls for different descriptors may run concurrently.
type SettleFunc func(ctx context.Context, d catalog.Descriptor, o *Outcome)

// Reporter is told once per settled retrieval.
type Reporter interface {
	Report() int
}

// Orchestrator fans out one retrieval per descriptor and joins on all of them.
type Orchestrator struct {
	retriever Retriever
	reporter  Reporter
	log       logger.Logger
	metrics   *metrics.Manager
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithReporter sets the progress reporter.
func WithReporter(r Reporter) Option {
	return func(o *Orchestrator) { o.reporter = r }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an orchestrator over r.
func New(r Retriever, opts ...Option) *Orchestrator {
	o := &Orchestrator{retriever: r, log: logger.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run starts every retrieval at once and returns when all have settled.
// Outcomes are returned in catalog order; settle and progress callbacks
// happen in completion order. Run never fails as a whole.
func (o *Orchestrator) Run(ctx context.Context, cat catalog.Catalog, onSettle SettleFunc) []Outcome {
	outcomes := make([]Outcome, len(cat))

	// Tasks never return an error, so Wait is a plain join.
	var g errgroup.Group
	for i, d := range cat {
		g.Go(func() error {
			defer func() {
				if o.reporter != nil {
					o.reporter.Report()
				}
			}()

			outcomes[i] = o.safeFetch(ctx, d)
			o.settle(ctx, d, &outcomes[i], onSettle)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (o *Orchestrator) settle(ctx context.Context, d catalog.Descriptor, out *Outcome, onSettle SettleFunc) {
	if onSettle == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.log.Error(ctx, "settle handler panicked",
				logger.String("layer", d.Name), logger.Any("panic", r))
		}
	}()
	onSettle(ctx, d, out)
}

// safeFetch turns a panicking retriever into a Failure for that descriptor.
func (o *Orchestrator) safeFetch(ctx context.Context, d catalog.Descriptor) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error(ctx, "retriever panicked",
				logger.String("layer", d.Name), logger.Any("panic", r))
			o.metrics.RecordFetch(false, 0)
			out = Outcome{
				Name:   d.Name,
				Status: Failure,
				Err:    &RetrievalError{Name: d.Name, URL: d.URL, Err: fmt.Errorf("panic: %v", r)},
			}
		}
	}()
	return o.fetchOne(ctx, d)
}

func (o *Orchestrator) fetchOne(ctx context.Context, d catalog.Descriptor) Outcome {
	start := time.Now()
	out := Outcome{Name: d.Name}

	fc, err := o.retrieve(ctx, d)
	out.Took = time.Since(start)
	if err != nil {
		out.Status = Failure
		out.Err = err
		o.metrics.RecordFetch(false, out.Took)
		o.log.Warn(ctx, "layer failed to load",
			logger.String("layer", d.Name), logger.String("url", d.URL), logger.Error(err))
		return out
	}

	out.Status = Success
	out.Collection = fc
	out.FeatureCount = len(fc.Features)
	out.GeometryKinds = KindsOf(fc)
	o.metrics.RecordFetch(true, out.Took)
	o.log.Debug(ctx, "layer loaded",
		logger.String("layer", d.Name),
		logger.Int("features", out.FeatureCount),
		logger.Any("kinds", out.GeometryKinds.Sorted()))
	return out
}

func (o *Orchestrator) retrieve(ctx context.Context, d catalog.Descriptor) (*geojson.FeatureCollection, error) {
	raw, err := o.retriever.Retrieve(ctx, d.URL)
	if err != nil {
		re := &RetrievalError{Name: d.Name, URL: d.URL, Err: err}
		var se *StatusError
		if errors.As(err, &se) {
			re.Status = se.Code
		}
		return nil, re
	}
	fc, err := Decode(raw)
	if err != nil {
		return nil, &DecodeError{Name: d.Name, Err: err}
	}
	return fc, nil
}

// Decode parses raw as a GeoJSON FeatureCollection. A null entry in the
// features array makes the whole payload malformed.
func Decode(raw []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, err
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("type %q is not a FeatureCollection", fc.Type)
	}
	for i, f := range fc.Features {
		if f == nil {
			return nil, fmt.Errorf("feature %d is null", i)
		}
	}
	return fc, nil
}
