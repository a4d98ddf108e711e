package server

import (
	"fmt"

	"github.com/ironsheep/contour-mcp/internal/pipeline"
)

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Path to the image: .rgba with a sibling ImageMagick .json, or PNG/JPEG/GIF",
	}
}

func rectProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": description,
		"properties": map[string]interface{}{
			"top":    map[string]interface{}{"type": "integer"},
			"left":   map[string]interface{}{"type": "integer"},
			"bottom": map[string]interface{}{"type": "integer"},
			"right":  map[string]interface{}{"type": "integer"},
		},
		"required": []string{"top", "left", "bottom", "right"},
	}
}

// pipelineProperties returns the schema of the options every pipeline tool
// accepts, plus extra. Descriptions quote the server's configured defaults.
func pipelineProperties(defaults pipeline.Options, extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"path": pathProperty(),
		"channel": map[string]interface{}{
			"type":        "integer",
			"description": fmt.Sprintf("Channel thresholded into the foreground mask: 0=R 1=G 2=B 3=A. Default %d", defaults.Channel),
			"minimum":     0,
			"maximum":     3,
		},
		"alpha_cutoff": map[string]interface{}{
			"type":        "integer",
			"description": fmt.Sprintf("Mask threshold; samples strictly above it are foreground. Default %d", defaults.AlphaCutoff),
			"minimum":     0,
			"maximum":     255,
		},
		"gray_cutoff": map[string]interface{}{
			"type":        "integer",
			"description": fmt.Sprintf("Threshold applied to the masked grayscale image. Default %d", defaults.GrayCutoff),
			"minimum":     0,
			"maximum":     255,
		},
		"min_area": map[string]interface{}{
			"type":        "number",
			"description": fmt.Sprintf("Contours enclosing less area (in pixels) are ignored. Default %g", defaults.MinArea),
			"minimum":     0,
		},
		"approx": map[string]interface{}{
			"type":        "string",
			"description": fmt.Sprintf("Contour point approximation. Default %s", defaults.Approx),
			"enum":        []string{"none", "simple"},
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// GetToolDefinitions returns all available tools, documenting defaults as the
// values omitted arguments take.
func GetToolDefinitions(defaults pipeline.Options) []Tool {
	rectDescription := fmt.Sprintf("Reference rectangle, inclusive bounds. Default {%s}", defaults.Rect)
	return []Tool{
		{
			Name:        "image_load",
			Description: "Load an image and return its dimensions, format and alpha coverage. The decoded raster is cached for later calls.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "mask_build",
			Description: "Threshold one channel of the image into a binary mask and count its foreground pixels. Optionally returns the mask as base64 PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": pipelineProperties(defaults, map[string]interface{}{
					"include_image": map[string]interface{}{
						"type":        "boolean",
						"description": "Return the mask as a base64-encoded PNG. Default false",
						"default":     false,
					},
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "contour_extract",
			Description: "Mask, composite and trace the image into contours with their nesting hierarchy (roots, parent, children, depth, hole flag), area and bounding box.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": pipelineProperties(defaults, map[string]interface{}{
					"include_points": map[string]interface{}{
						"type":        "boolean",
						"description": "Include every contour's points. Default false",
						"default":     false,
					},
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "region_select",
			Description: "Select the first contour whose area reaches min_area and none of whose children do. Fails when no contour qualifies.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": pipelineProperties(defaults, map[string]interface{}{
					"include_points": map[string]interface{}{
						"type":        "boolean",
						"description": "Include the selected contour's points. Default false",
						"default":     false,
					},
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "region_verify_containment",
			Description: "Run the full pipeline and check that the reference rectangle lies entirely inside the selected region. Results are cached by image content and options.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": pipelineProperties(defaults, map[string]interface{}{
					"rect": rectProperty(rectDescription),
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "region_overlay",
			Description: "Render the source with the selected region tinted and the reference rectangle outlined, as base64 PNG. Use this to see why containment failed.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": pipelineProperties(defaults, map[string]interface{}{
					"rect": rectProperty(rectDescription),
					"region_color": map[string]interface{}{
						"type":        "string",
						"description": "Region tint as #RRGGBB. Default #00FF00",
					},
					"rect_color": map[string]interface{}{
						"type":        "string",
						"description": "Rectangle outline as #RRGGBB. Default #FF0000",
					},
					"opacity": map[string]interface{}{
						"type":        "number",
						"description": "Region tint opacity, 0 to 1. Default 0.4",
						"minimum":     0,
						"maximum":     1,
					},
					"crop": rectProperty("Optional area of the output to keep"),
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor for the output. Default 1.0",
						"default":     1.0,
					},
				}),
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(s.defaults),
		},
	}
}
