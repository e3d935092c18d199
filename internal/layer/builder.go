package layer

import (
	"context"
	"errors"
	"fmt"

	"github.com/joeblew999/plat-overlay/internal/catalog"
	"github.com/joeblew999/plat-overlay/internal/fetch"
	"github.com/joeblew999/plat-overlay/pkg/logger"
	"github.com/joeblew999/plat-overlay/pkg/metrics"
)

var (
	// ErrClusteringUnavailable means no clusterer is configured. Point layers
	// fall back to plain rendering.
	ErrClusteringUnavailable = errors.New("clustering unavailable")

	// ErrNotLoaded is returned when building from a failed outcome.
	ErrNotLoaded = errors.New("outcome has no feature collection")
)

// IsPointLike reports whether any feature is a Point or MultiPoint.
func IsPointLike(kinds fetch.KindSet) bool {
	return kinds.Has(fetch.KindPoint) || kinds.Has(fetch.KindMultiPoint)
}

// Builder turns successful outcomes into renderables.
type Builder struct {
	clusterer Clusterer
	fallback  string
	log       logger.Logger
	metrics   *metrics.Manager
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithClusterer sets the clusterer for point layers. A nil clusterer makes
// every point layer degrade to plain.
func WithClusterer(c Clusterer) BuilderOption {
	return func(b *Builder) { b.clusterer = c }
}

// WithFallbackColor overrides FallbackColor.
func WithFallbackColor(c string) BuilderOption {
	return func(b *Builder) {
		if hex, err := catalog.ParseColor(c); err == nil {
			b.fallback = hex
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.log = l
		}
	}
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) BuilderOption {
	return func(b *Builder) { b.metrics = m }
}

// NewBuilder creates a builder using a GridClusterer unless told otherwise.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		clusterer: NewGridClusterer(),
		fallback:  FallbackColor,
		log:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build classifies a successful outcome and returns its renderable.
// Clustering problems never fail the build.
func (b *Builder) Build(ctx context.Context, d catalog.Descriptor, out *fetch.Outcome) (*Renderable, error) {
	if out == nil || !out.OK() || out.Collection == nil {
		return nil, fmt.Errorf("building %s: %w", d.Name, ErrNotLoaded)
	}

	color := resolveColor(d.Color, b.fallback)
	r := &Renderable{
		Name:       d.Name,
		Kind:       Plain,
		PointLike:  IsPointLike(out.GeometryKinds),
		collection: out.Collection,
	}

	if !r.PointLike {
		r.Style = ShapeStyle(color)
		return r, nil
	}

	r.Style = PointStyle(color)
	c, err := b.clusterGroup()
	if err != nil {
		b.metrics.RecordClusteringDegraded()
		b.log.Warn(ctx, "clustering unavailable, drawing points individually",
			logger.String("layer", d.Name), logger.Error(err))
		return r, nil
	}
	r.Kind = Clustered
	r.clusterer = c
	return r, nil
}

func (b *Builder) clusterGroup() (Clusterer, error) {
	if b.clusterer == nil {
		return nil, ErrClusteringUnavailable
	}
	return b.clusterer, nil
}
