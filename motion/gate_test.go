package motion

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// scene returns a black BGR frame, optionally with a filled white square at x.
func scene(t *testing.T, x int) gocv.Mat {
	t.Helper()

	m := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	if x >= 0 {
		gocv.Rectangle(&m, image.Rect(x, 40, x+40, 80), color.RGBA{255, 255, 255, 0}, -1)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func testConfig() Config {
	return Config{
		MinContourArea:      50,
		DifferenceThreshold: 30,
		BlurKernelSize:      5,
		MinScore:            0.01,
		HoldFrames:          2,
	}
}

// TestGateOpensOnMotion opens on the first frame and on changed frames, then holds open
// for HoldFrames static frames.
func TestGateOpensOnMotion(t *testing.T) {
	g, err := New(testConfig())
	require.NoError(t, err)
	defer g.Close()

	empty := scene(t, -1)
	square := scene(t, 20)

	steps := []struct {
		name  string
		frame gocv.Mat
		open  bool
		moved bool
	}{
		{name: "first frame", frame: empty, open: true},
		{name: "static", frame: empty, open: false},
		{name: "object appears", frame: square, open: true, moved: true},
		{name: "hold 1", frame: square, open: true},
		{name: "hold 2", frame: square, open: true},
		{name: "closed", frame: square, open: false},
	}

	for _, s := range steps {
		open, score, err := g.Open(s.frame)
		require.NoError(t, err, s.name)
		assert.Equal(t, s.open, open, s.name)
		if s.moved {
			assert.Greater(t, score, 0.01, s.name)
		} else {
			assert.Zero(t, score, s.name)
		}
	}

	g.Reset()
	open, _, err := g.Open(square)
	require.NoError(t, err)
	assert.True(t, open, "reset reopens on the next frame")
}

// TestGateIgnoresSmallChanges keeps the gate closed when the changed area is below
// MinContourArea.
func TestGateIgnoresSmallChanges(t *testing.T) {
	cfg := testConfig()
	cfg.MinContourArea = 5000

	g, err := New(cfg)
	require.NoError(t, err)
	defer g.Close()

	_, _, err = g.Open(scene(t, -1))
	require.NoError(t, err)

	open, score, err := g.Open(scene(t, 20))
	require.NoError(t, err)
	assert.False(t, open)
	assert.Zero(t, score)
}

// TestGateErrors rejects invalid configurations and empty frames.
func TestGateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "even kernel", mutate: func(c *Config) { c.BlurKernelSize = 4 }},
		{name: "zero kernel", mutate: func(c *Config) { c.BlurKernelSize = 0 }},
		{name: "score above one", mutate: func(c *Config) { c.MinScore = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}

	g, err := New(DefaultConfig())
	require.NoError(t, err)
	defer g.Close()

	empty := gocv.NewMat()
	defer empty.Close()
	_, _, err = g.Open(empty)
	assert.Error(t, err)
}
