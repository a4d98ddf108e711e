package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/contour-mcp/internal/detection"
	"github.com/ironsheep/contour-mcp/internal/imaging"
	"github.com/ironsheep/contour-mcp/internal/logging"
	"github.com/ironsheep/contour-mcp/internal/pipeline"
	"github.com/ironsheep/contour-mcp/internal/raster"
)

// errNotContained makes verify exit 1 without printing an error; the report
// already says why.
var errNotContained = errors.New("rectangle not contained in region")

type verifyFlags struct {
	rect    string
	minArea float64
	channel int
	approx  string
	output  string
	overlay string
}

var vf verifyFlags

var verifyCmd = &cobra.Command{
	Use:   "verify <image>",
	Short: "Check that the reference rectangle lies inside the image's region",
	Long: `Runs the full pipeline on one image and prints the report.

The image is a .rgba file with a sibling ImageMagick .json, or any PNG, JPEG or
GIF. Exit status is 0 when the rectangle is contained, 1 when it is not or
when the pipeline fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logging.Sync(logger)

		opts, err := pipeline.OptionsFromConfig(cfg)
		if err != nil {
			return err
		}
		if err := applyVerifyFlags(cmd, &opts); err != nil {
			return err
		}

		contained, err := runVerify(cmd.OutOrStdout(), args[0], opts, vf.output, vf.overlay, logger)
		if err != nil {
			return err
		}
		if !contained {
			return errNotContained
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	f := verifyCmd.Flags()
	// Unset pipeline flags fall back to the configuration, so they carry no
	// default of their own.
	f.StringVar(&vf.rect, "rect", "", "Reference rectangle as top,left,bottom,right, inclusive (default from config reference)")
	f.Float64Var(&vf.minArea, "min-area", 0, "Minimum contour area (default from config pipeline.min_area)")
	f.IntVar(&vf.channel, "channel", 0, "Channel used for the mask, 0=R 1=G 2=B 3=A (default from config pipeline.channel)")
	f.StringVar(&vf.approx, "approx", "", "Contour approximation, none or simple (default from config pipeline.approx)")
	f.StringVarP(&vf.output, "output", "o", "json", "Report format: json or yaml")
	f.StringVar(&vf.overlay, "overlay", "", "Write a debug overlay PNG to this path")
}

// applyVerifyFlags overrides configured options with the flags the user set.
func applyVerifyFlags(cmd *cobra.Command, opts *pipeline.Options) error {
	flags := cmd.Flags()
	if flags.Changed("rect") {
		r, err := raster.ParseRect(vf.rect)
		if err != nil {
			return err
		}
		opts.Rect = r
	}
	if flags.Changed("min-area") {
		if vf.minArea < 0 {
			return fmt.Errorf("--min-area must be >= 0, got %v", vf.minArea)
		}
		opts.MinArea = vf.minArea
	}
	if flags.Changed("channel") {
		if vf.channel < 0 || vf.channel > 3 {
			return fmt.Errorf("--channel must be 0-3, got %d", vf.channel)
		}
		opts.Channel = vf.channel
	}
	if flags.Changed("approx") {
		a, err := detection.ParseApprox(vf.approx)
		if err != nil {
			return err
		}
		opts.Approx = a
	}
	return nil
}

// runVerify runs the pipeline on path, writes the report to out in format and
// optionally saves an overlay. It reports whether the rectangle is contained.
func runVerify(out io.Writer, path string, opts pipeline.Options, format, overlayPath string,
	logger *zap.Logger) (bool, error) {
	if format != "json" && format != "yaml" {
		return false, fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}

	src, err := imaging.LoadFile(path)
	if err != nil {
		return false, err
	}
	report, err := pipeline.New(logger, nil).Run(src, opts)
	if err != nil {
		return false, err
	}

	if overlayPath != "" {
		img, err := imaging.RenderOverlay(src, report.Region, opts.Rect, imaging.DefaultOverlayOptions())
		if err != nil {
			return false, err
		}
		if err := imaging.Save(img, overlayPath); err != nil {
			return false, err
		}
		logger.Info("overlay written", zap.String("path", overlayPath))
	}

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return false, err
		}
		if err := enc.Close(); err != nil {
			return false, err
		}
	default:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return false, err
		}
	}
	return report.Contained, nil
}
