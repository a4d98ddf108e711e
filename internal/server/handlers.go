package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ironsheep/contour-mcp/internal/cache"
	"github.com/ironsheep/contour-mcp/internal/detection"
	"github.com/ironsheep/contour-mcp/internal/imaging"
	"github.com/ironsheep/contour-mcp/internal/pipeline"
	"github.com/ironsheep/contour-mcp/internal/raster"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "region_verify_containment").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// errInvalidArgs marks argument errors, reported as -32602 rather than as a
// tool failure.
var errInvalidArgs = errors.New("invalid arguments")

func invalidArgs(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", errInvalidArgs, fmt.Sprintf(format, a...))
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Bad arguments return -32602; tool execution errors return -32000 with the
// error string (including the failing pipeline step) as data.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	s.logger.Debug("tool call", zap.String("tool", params.Name))
	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		if errors.Is(err, errInvalidArgs) {
			return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
		}
		s.logger.Info("tool failed", zap.String("tool", params.Name), zap.Error(err))
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals and validates arguments, filling defaults
//  2. Loads the raster from cache
//  3. Runs the pipeline (or the prefix of it the tool needs)
//  4. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_load":
		return s.handleImageLoad(args)
	case "mask_build":
		return s.handleMaskBuild(args)
	case "contour_extract":
		return s.handleContourExtract(args)
	case "region_select":
		return s.handleRegionSelect(args)
	case "region_verify_containment":
		return s.handleRegionVerify(ctx, args)
	case "region_overlay":
		return s.handleRegionOverlay(args)
	default:
		return nil, invalidArgs("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return invalidArgs("missing arguments")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return invalidArgs("%v", err)
	}
	return nil
}

// pipelineArgs are the options shared by every pipeline tool. Omitted fields
// take the server defaults.
type pipelineArgs struct {
	Path        string       `json:"path"`
	Channel     *int         `json:"channel"`
	AlphaCutoff *int         `json:"alpha_cutoff"`
	GrayCutoff  *int         `json:"gray_cutoff"`
	MinArea     *float64     `json:"min_area"`
	Approx      string       `json:"approx"`
	Rect        *raster.Rect `json:"rect"`
}

func (a *pipelineArgs) options(defaults pipeline.Options) (pipeline.Options, error) {
	opts := defaults
	if a.Path == "" {
		return opts, invalidArgs("path is required")
	}
	if a.Channel != nil {
		if *a.Channel < 0 || *a.Channel > 3 {
			return opts, invalidArgs("channel must be 0-3, got %d", *a.Channel)
		}
		opts.Channel = *a.Channel
	}
	for _, c := range []struct {
		name string
		v    *int
		dst  *uint8
	}{
		{"alpha_cutoff", a.AlphaCutoff, &opts.AlphaCutoff},
		{"gray_cutoff", a.GrayCutoff, &opts.GrayCutoff},
	} {
		if c.v == nil {
			continue
		}
		if *c.v < 0 || *c.v > 255 {
			return opts, invalidArgs("%s must be 0-255, got %d", c.name, *c.v)
		}
		*c.dst = uint8(*c.v)
	}
	if a.MinArea != nil {
		if *a.MinArea < 0 {
			return opts, invalidArgs("min_area must be >= 0, got %v", *a.MinArea)
		}
		opts.MinArea = *a.MinArea
	}
	if a.Approx != "" {
		approx, err := detection.ParseApprox(a.Approx)
		if err != nil {
			return opts, invalidArgs("%v", err)
		}
		opts.Approx = approx
	}
	if a.Rect != nil {
		if a.Rect.Empty() {
			return opts, invalidArgs("rect %s is empty", a.Rect)
		}
		opts.Rect = *a.Rect
	}
	return opts, nil
}

// load decodes the common arguments and returns the cached raster.
func (s *Server) load(a *pipelineArgs) (*raster.Raster, pipeline.Options, error) {
	opts, err := a.options(s.defaults)
	if err != nil {
		return nil, opts, err
	}
	src, err := s.images.Load(a.Path)
	if err != nil {
		return nil, opts, err
	}
	return src, opts, nil
}

// === Image Information ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, invalidArgs("path is required")
	}
	return imaging.LoadImageInfo(s.images, a.Path)
}

// === Mask ===

type maskBuildArgs struct {
	pipelineArgs
	IncludeImage bool `json:"include_image"`
}

type maskBuildResult struct {
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	Channel          int    `json:"channel"`
	Cutoff           uint8  `json:"cutoff"`
	ForegroundPixels int    `json:"foreground_pixels"`
	ImageBase64      string `json:"image_base64,omitempty"`
	MimeType         string `json:"mime_type,omitempty"`
}

func (s *Server) handleMaskBuild(args json.RawMessage) (interface{}, error) {
	var a maskBuildArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	src, opts, err := s.load(&a.pipelineArgs)
	if err != nil {
		return nil, err
	}

	planes, err := raster.Split(src)
	if err != nil {
		return nil, err
	}
	mask, err := raster.BuildMask(planes[opts.Channel], opts.AlphaCutoff)
	if err != nil {
		return nil, err
	}
	n, err := raster.CountNonZero(mask)
	if err != nil {
		return nil, err
	}

	result := &maskBuildResult{
		Width:            mask.Width,
		Height:           mask.Height,
		Channel:          opts.Channel,
		Cutoff:           opts.AlphaCutoff,
		ForegroundPixels: n,
	}
	if a.IncludeImage {
		png, err := imaging.EncodePNG(mask.Image())
		if err != nil {
			return nil, err
		}
		result.ImageBase64 = png.ImageBase64
		result.MimeType = png.MimeType
	}
	return result, nil
}

// === Contours ===

type contourExtractArgs struct {
	pipelineArgs
	IncludePoints bool `json:"include_points"`
}

type contourExtractResult struct {
	Width    int                       `json:"width"`
	Height   int                       `json:"height"`
	Count    int                       `json:"count"`
	Approx   detection.Approx          `json:"approx"`
	Roots    []int                     `json:"roots"`
	Contours []pipeline.ContourSummary `json:"contours"`
	Points   []detection.Contour       `json:"points,omitempty"`
}

func (s *Server) handleContourExtract(args json.RawMessage) (interface{}, error) {
	var a contourExtractArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	src, opts, err := s.load(&a.pipelineArgs)
	if err != nil {
		return nil, err
	}

	set, err := s.pipeline.Extract(src, opts)
	if err != nil {
		return nil, err
	}
	result := &contourExtractResult{
		Width:    src.Width,
		Height:   src.Height,
		Count:    set.Len(),
		Approx:   opts.Approx,
		Roots:    set.Forest.Roots(),
		Contours: pipeline.Summarize(set, opts.MinArea),
	}
	if result.Roots == nil {
		result.Roots = []int{}
	}
	if a.IncludePoints {
		result.Points = set.Contours
	}
	return result, nil
}

type regionSelectResult struct {
	SelectedIndex int                     `json:"selected_index"`
	MinArea       float64                 `json:"min_area"`
	Contour       pipeline.ContourSummary `json:"contour"`
	Points        detection.Contour       `json:"points,omitempty"`
}

func (s *Server) handleRegionSelect(args json.RawMessage) (interface{}, error) {
	var a contourExtractArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	src, opts, err := s.load(&a.pipelineArgs)
	if err != nil {
		return nil, err
	}

	set, err := s.pipeline.Extract(src, opts)
	if err != nil {
		return nil, err
	}
	idx, err := detection.SelectLeaf(set, opts.MinArea)
	if err != nil {
		return nil, &pipeline.StepError{Step: pipeline.StepSelect, Err: err}
	}
	result := &regionSelectResult{
		SelectedIndex: idx,
		MinArea:       opts.MinArea,
		Contour:       pipeline.Summarize(set, opts.MinArea)[idx],
	}
	if a.IncludePoints {
		result.Points = set.Contours[idx]
	}
	return result, nil
}

// === Containment ===

type regionVerifyResult struct {
	*pipeline.Report
	Cached bool `json:"cached"`
}

func (s *Server) handleRegionVerify(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a pipelineArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	src, opts, err := s.load(&a)
	if err != nil {
		return nil, err
	}

	report, hit, err := cache.Run(ctx, s.reports, s.pipeline, s.logger, src, opts)
	if err != nil {
		return nil, err
	}
	return &regionVerifyResult{Report: report, Cached: hit}, nil
}

type regionOverlayArgs struct {
	pipelineArgs
	RegionColor string       `json:"region_color"`
	RectColor   string       `json:"rect_color"`
	Opacity     *float64     `json:"opacity"`
	Crop        *raster.Rect `json:"crop"`
	Scale       float64      `json:"scale"`
}

type regionOverlayResult struct {
	*imaging.OverlayResult
	Contained         bool `json:"contained"`
	IntersectionCount int  `json:"intersection_count"`
	RectCount         int  `json:"rect_count"`
}

func (s *Server) handleRegionOverlay(args json.RawMessage) (interface{}, error) {
	var a regionOverlayArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	src, opts, err := s.load(&a.pipelineArgs)
	if err != nil {
		return nil, err
	}
	if a.Scale < 0 {
		return nil, invalidArgs("scale must be positive, got %v", a.Scale)
	}

	// The overlay needs the rendered region, which cached reports drop.
	report, err := s.pipeline.Run(src, opts)
	if err != nil {
		return nil, err
	}

	o := imaging.DefaultOverlayOptions()
	if a.RegionColor != "" {
		o.RegionColor = a.RegionColor
	}
	if a.RectColor != "" {
		o.RectColor = a.RectColor
	}
	if a.Opacity != nil {
		o.Opacity = *a.Opacity
	}
	if a.Scale > 0 {
		o.Scale = a.Scale
	}
	o.Crop = a.Crop

	img, err := imaging.Overlay(src, report.Region, opts.Rect, o)
	if err != nil {
		return nil, err
	}
	return &regionOverlayResult{
		OverlayResult:     img,
		Contained:         report.Contained,
		IntersectionCount: report.IntersectionCount,
		RectCount:         report.RectCount,
	}, nil
}
