package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/contour-mcp/internal/pipeline"
)

// writeSquareFixture writes the 701x375 square as raw RGBA plus ImageMagick
// metadata and returns the .rgba path.
func writeSquareFixture(t *testing.T) string {
	t.Helper()
	const w, h = 701, 375
	pix := make([]byte, w*h*4)
	for y := 10; y <= 276; y++ {
		for x := 114; x <= 689; x++ {
			i := (y*w + x) * 4
			pix[i], pix[i+1], pix[i+2], pix[i+3] = 255, 255, 255, 255
		}
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "square.rgba")
	require.NoError(t, os.WriteFile(path, pix, 0o644))
	meta := `[{"image":{"name":"square.png","geometry":{"width":701,"height":375,"x":0,"y":0}}}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "square.json"), []byte(meta), 0o644))
	return path
}

func TestRunVerify_JSON(t *testing.T) {
	var out bytes.Buffer
	overlay := filepath.Join(t.TempDir(), "overlay.png")

	contained, err := runVerify(&out, writeSquareFixture(t), pipeline.DefaultOptions(), "json", overlay, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, contained)

	var report pipeline.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 42435, report.RectCount)
	assert.Equal(t, 42435, report.IntersectionCount)
	assert.Equal(t, 701, report.Width)

	info, err := os.Stat(overlay)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRunVerify_YAML(t *testing.T) {
	var out bytes.Buffer
	opts := pipeline.DefaultOptions()
	opts.Rect.Top = 5

	contained, err := runVerify(&out, writeSquareFixture(t), opts, "yaml", "", zap.NewNop())
	require.NoError(t, err)
	assert.False(t, contained)

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, false, decoded["contained"])
	assert.Equal(t, "simple", decoded["options"].(map[string]interface{})["approx"])
}

func TestRunVerify_Errors(t *testing.T) {
	path := writeSquareFixture(t)

	_, err := runVerify(&bytes.Buffer{}, path, pipeline.DefaultOptions(), "xml", "", zap.NewNop())
	assert.Error(t, err)

	_, err = runVerify(&bytes.Buffer{}, filepath.Join(t.TempDir(), "missing.rgba"), pipeline.DefaultOptions(), "json", "", zap.NewNop())
	assert.Error(t, err)

	opts := pipeline.DefaultOptions()
	opts.MinArea = 1e9
	_, err = runVerify(&bytes.Buffer{}, path, opts, "json", "", zap.NewNop())
	var se *pipeline.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, pipeline.StepSelect, se.Step)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "contour-mcp "+Version)
}

func TestVerifyFlags_DefaultFromConfig(t *testing.T) {
	for _, name := range []string{"rect", "min-area", "channel", "approx"} {
		f := verifyCmd.Flags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Contains(t, f.Usage, "default from config", name)
		assert.Contains(t, []string{"", "0"}, f.DefValue, "%s must not advertise its own default", name)
	}

	// Options loaded from configuration survive when no flag is set.
	opts := pipeline.DefaultOptions()
	opts.Channel = 2
	opts.MinArea = 500
	want := opts
	require.NoError(t, applyVerifyFlags(verifyCmd, &opts))
	assert.Equal(t, want, opts)

	f := verifyCmd.Flags().Lookup("min-area")
	t.Cleanup(func() {
		f.Changed = false
		vf = verifyFlags{output: "json"}
	})
	require.NoError(t, verifyCmd.Flags().Set("min-area", "750"))
	require.NoError(t, applyVerifyFlags(verifyCmd, &opts))
	assert.Equal(t, 750.0, opts.MinArea)
	assert.Equal(t, 2, opts.Channel)
}
