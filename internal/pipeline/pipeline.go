package pipeline

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ironsheep/contour-mcp/internal/config"
	"github.com/ironsheep/contour-mcp/internal/detection"
	"github.com/ironsheep/contour-mcp/internal/raster"
)

// Step names, in execution order.
const (
	StepIsolate   = "isolate"
	StepMask      = "mask"
	StepComposite = "composite"
	StepExtract   = "extract"
	StepSelect    = "select"
	StepRender    = "render"
	StepVerify    = "verify"
)

// StepError reports which step aborted a run. It unwraps to the underlying
// error kind (raster.ErrInvalidChannel, detection.ErrNotFound, ...).
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Options are the tunable inputs of a run.
type Options struct {
	// Channel is the plane thresholded into the foreground mask (3 = alpha).
	Channel int `json:"channel" yaml:"channel"`

	// AlphaCutoff thresholds the chosen channel: samples > cutoff are kept.
	AlphaCutoff uint8 `json:"alpha_cutoff" yaml:"alpha_cutoff"`

	// GrayCutoff thresholds the masked grayscale image.
	GrayCutoff uint8 `json:"gray_cutoff" yaml:"gray_cutoff"`

	// MinArea is the smallest contour area (shoelace, in pixels) kept alive.
	MinArea float64 `json:"min_area" yaml:"min_area"`

	// Approx selects the contour point approximation.
	Approx detection.Approx `json:"approx" yaml:"approx"`

	// Rect is the reference rectangle that must lie inside the region.
	Rect raster.Rect `json:"rect" yaml:"rect"`
}

// DefaultOptions returns the thresholds and reference rectangle of the
// square fixture: alpha channel, cutoffs 230, min area 10000.
func DefaultOptions() Options {
	return Options{
		Channel:     3,
		AlphaCutoff: 230,
		GrayCutoff:  230,
		MinArea:     10000,
		Approx:      detection.ApproxSimple,
		Rect:        raster.Rect{Top: 77, Left: 217, Bottom: 191, Right: 585},
	}
}

// OptionsFromConfig converts validated configuration into run options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	approx, err := detection.ParseApprox(cfg.Pipeline.Approx)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Channel:     cfg.Pipeline.Channel,
		AlphaCutoff: uint8(cfg.Pipeline.AlphaCutoff),
		GrayCutoff:  uint8(cfg.Pipeline.GrayCutoff),
		MinArea:     cfg.Pipeline.MinArea,
		Approx:      approx,
		Rect:        cfg.Reference,
	}, nil
}

// Key returns a stable cache key for running opts over src: the md5 of the
// raster geometry, its pixels and every option.
func Key(src *raster.Raster, opts Options) string {
	h := md5.New()
	var buf [8]byte
	for _, v := range []int{
		src.Width, src.Height, src.Channels,
		opts.Channel, int(opts.AlphaCutoff), int(opts.GrayCutoff), int(opts.Approx),
		opts.Rect.Top, opts.Rect.Left, opts.Rect.Bottom, opts.Rect.Right,
	} {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(opts.MinArea))
	h.Write(buf[:])
	h.Write(src.Pix)
	return hex.EncodeToString(h.Sum(nil))
}

// ContourSummary describes one extracted contour.
type ContourSummary struct {
	Index    int              `json:"index" yaml:"index"`
	Parent   int              `json:"parent" yaml:"parent"`
	Children []int            `json:"children" yaml:"children"`
	Depth    int              `json:"depth" yaml:"depth"`
	Hole     bool             `json:"hole" yaml:"hole"`
	Area     float64          `json:"area" yaml:"area"`
	Alive    bool             `json:"alive" yaml:"alive"`
	Points   int              `json:"points" yaml:"points"`
	Bounds   detection.Bounds `json:"bounds" yaml:"bounds"`
}

// Summarize lists every contour of set with its hierarchy links, nesting
// depth (0 for an outermost border), area and alive tag under minArea.
func Summarize(set *detection.ContourSet, minArea float64) []ContourSummary {
	alive := detection.Alive(set.Contours, minArea)
	out := make([]ContourSummary, set.Len())
	for i, c := range set.Contours {
		children := set.Forest.Children(i)
		if children == nil {
			children = []int{}
		}
		out[i] = ContourSummary{
			Index:    i,
			Parent:   set.Forest.Parent(i),
			Children: children,
			Depth:    set.Forest.Depth(i),
			Hole:     set.Holes[i],
			Area:     detection.Area(c),
			Alive:    alive[i],
			Points:   len(c),
			Bounds:   detection.BoundingBox(c),
		}
	}
	return out
}

// Report is the outcome of a successful run.
type Report struct {
	Width             int              `json:"width" yaml:"width"`
	Height            int              `json:"height" yaml:"height"`
	Options           Options          `json:"options" yaml:"options"`
	ContourCount      int              `json:"contour_count" yaml:"contour_count"`
	SelectedIndex     int              `json:"selected_index" yaml:"selected_index"`
	SelectedArea      float64          `json:"selected_area" yaml:"selected_area"`
	SelectedBounds    detection.Bounds `json:"selected_bounds" yaml:"selected_bounds"`
	IntersectionCount int              `json:"intersection_count" yaml:"intersection_count"`
	RectCount         int              `json:"rect_count" yaml:"rect_count"`
	Contained         bool             `json:"contained" yaml:"contained"`
	Contours          []ContourSummary `json:"contours" yaml:"contours"`

	// Region is the filled mask of the selected contour. Not serialized, so
	// cached reports come back without it.
	Region *raster.Raster `json:"-" yaml:"-"`
}

// Pipeline runs the extraction-and-verification steps and records logs and
// metrics for each run.
type Pipeline struct {
	logger  *zap.Logger
	metrics *Metrics
}

// New creates a pipeline. A nil logger disables logging; nil metrics disable
// instrumentation.
func New(logger *zap.Logger, metrics *Metrics) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{logger: logger, metrics: metrics}
}

// Run executes the pipeline over src, a raster with at least opts.Channel+1
// channels.
//
// Steps run strictly in order, each consuming the previous step's output:
//
//  1. isolate: split src into single-channel planes
//  2. mask: threshold plane opts.Channel with AlphaCutoff
//  3. composite: AND src with the mask, reduce to gray, threshold with GrayCutoff
//  4. extract: trace contours and the nesting tree
//  5. select: first alive contour with no alive children
//  6. render: fill the selected contour into a blank mask
//  7. verify: check opts.Rect lies entirely inside the filled region
//
// Any failure aborts the run with a *StepError naming the step. A run that
// completes returns a Report whether or not the rectangle is contained.
func (p *Pipeline) Run(src *raster.Raster, opts Options) (*Report, error) {
	start := time.Now()
	report, err := p.run(src, opts)
	outcome := "contained"
	switch {
	case err != nil:
		outcome = "error"
		var se *StepError
		if errors.As(err, &se) {
			p.logger.Warn("pipeline aborted", zap.String("step", se.Step), zap.Error(se.Err))
		}
	case !report.Contained:
		outcome = "not_contained"
	}
	if p.metrics != nil {
		p.metrics.runs.WithLabelValues(outcome).Inc()
		p.metrics.runDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}

	p.logger.Info("pipeline finished",
		zap.Int("selected", report.SelectedIndex),
		zap.Int("intersection_count", report.IntersectionCount),
		zap.Int("rect_count", report.RectCount),
		zap.Bool("contained", report.Contained),
		zap.Duration("elapsed", time.Since(start)))
	return report, nil
}

// Extract runs steps 1 to 4 (isolate, mask, composite, extract) and returns
// every contour with its hierarchy. Errors are *StepError values.
func (p *Pipeline) Extract(src *raster.Raster, opts Options) (*detection.ContourSet, error) {
	if opts.Channel < 0 || opts.Channel >= src.Channels {
		return nil, &StepError{Step: StepIsolate, Err: fmt.Errorf("%w: channel %d of a %d-channel raster",
			raster.ErrInvalidChannel, opts.Channel, src.Channels)}
	}

	var planes []*raster.Raster
	if err := p.step(StepIsolate, func() (err error) {
		planes, err = raster.Split(src)
		return err
	}); err != nil {
		return nil, err
	}

	var mask *raster.Raster
	if err := p.step(StepMask, func() (err error) {
		mask, err = raster.BuildMask(planes[opts.Channel], opts.AlphaCutoff)
		return err
	}); err != nil {
		return nil, err
	}

	var thresholded *raster.Raster
	if err := p.step(StepComposite, func() (err error) {
		thresholded, err = raster.Composite(src, mask, opts.GrayCutoff)
		return err
	}); err != nil {
		return nil, err
	}

	var set *detection.ContourSet
	if err := p.step(StepExtract, func() (err error) {
		set, err = detection.FindContours(thresholded, opts.Approx)
		return err
	}); err != nil {
		return nil, err
	}
	p.logger.Debug("contours extracted", zap.Int("count", set.Len()))
	return set, nil
}

func (p *Pipeline) run(src *raster.Raster, opts Options) (*Report, error) {
	set, err := p.Extract(src, opts)
	if err != nil {
		return nil, err
	}

	var idx int
	if err := p.step(StepSelect, func() (err error) {
		idx, err = detection.SelectLeaf(set, opts.MinArea)
		return err
	}); err != nil {
		return nil, err
	}

	var region *raster.Raster
	if err := p.step(StepRender, func() (err error) {
		region, err = detection.RenderFilled(set.Contours[idx], src.Width, src.Height)
		return err
	}); err != nil {
		return nil, err
	}

	var res *detection.Containment
	if err := p.step(StepVerify, func() (err error) {
		res, err = detection.VerifyContainment(region, opts.Rect)
		return err
	}); err != nil {
		return nil, err
	}

	return &Report{
		Width:             src.Width,
		Height:            src.Height,
		Options:           opts,
		ContourCount:      set.Len(),
		SelectedIndex:     idx,
		SelectedArea:      detection.Area(set.Contours[idx]),
		SelectedBounds:    detection.BoundingBox(set.Contours[idx]),
		IntersectionCount: res.IntersectionCount,
		RectCount:         res.RectCount,
		Contained:         res.Contained,
		Contours:          Summarize(set, opts.MinArea),
		Region:            region,
	}, nil
}

// step times fn, logs it at debug and wraps any error in a StepError.
func (p *Pipeline) step(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	if p.metrics != nil {
		p.metrics.stepDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	}
	p.logger.Debug("pipeline step", zap.String("step", name), zap.Duration("elapsed", elapsed), zap.Error(err))
	if err != nil {
		return &StepError{Step: name, Err: err}
	}
	return nil
}
