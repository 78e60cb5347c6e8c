// Package motion - Frame differencing gate that skips detection on static camera frames.
package motion

import (
	"image"
	"math"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Config contains configuration parameters for motion gating.
type Config struct {
	// MinContourArea is the minimum area, in pixels, of a changed region.
	MinContourArea float64 `json:"min_contour_area" yaml:"min_contour_area"`
	// DifferenceThreshold is the per-pixel gray level change that counts as motion.
	DifferenceThreshold float32 `json:"difference_threshold" yaml:"difference_threshold"`
	// BlurKernelSize controls noise reduction and must be odd.
	BlurKernelSize int `json:"blur_kernel_size" yaml:"blur_kernel_size"`
	// MinScore is the fraction of the frame that must change to open the gate.
	MinScore float64 `json:"min_score" yaml:"min_score"`
	// HoldFrames keeps the gate open for this many frames after motion stops.
	HoldFrames int `json:"hold_frames" yaml:"hold_frames"`
	// BackgroundSubtraction compares against a MOG2 background model instead of the
	// previous frame.
	BackgroundSubtraction bool `json:"background_subtraction" yaml:"background_subtraction"`
}

// DefaultConfig returns a default configuration for motion gating.
func DefaultConfig() Config {
	return Config{
		MinContourArea:      500,
		DifferenceThreshold: 30,
		BlurKernelSize:      21,
		MinScore:            0.005,
		HoldFrames:          15,
	}
}

// Gate decides which frames of a static camera are worth running detection on.
// It is safe for concurrent use.
type Gate struct {
	config Config

	mu          sync.Mutex
	previous    gocv.Mat
	background  gocv.BackgroundSubtractorMOG2
	initialized bool
	hold        int
}

// New creates a motion gate.
//
// Arguments:
//   - config: The gate configuration.
//
// Returns:
//   - *Gate: The gate. Call Close to release its OpenCV resources.
//   - error: If the configuration is invalid.
func New(config Config) (*Gate, error) {
	if config.BlurKernelSize < 1 || config.BlurKernelSize%2 == 0 {
		return nil, errors.Errorf("blur kernel size must be a positive odd number, got %d", config.BlurKernelSize)
	}
	if config.MinScore < 0 || config.MinScore > 1 {
		return nil, errors.Errorf("min score %v outside [0,1]", config.MinScore)
	}

	g := &Gate{config: config, previous: gocv.NewMat()}
	if config.BackgroundSubtraction {
		g.background = gocv.NewBackgroundSubtractorMOG2WithParams(500, 16, false)
	}
	return g, nil
}

// Open reports whether a frame should be passed on to detection. The first frame
// always opens the gate.
//
// Arguments:
//   - frame: A BGR or grayscale 8-bit frame. It is not modified.
//
// Returns:
//   - bool: Whether the frame shows motion, or follows motion within HoldFrames.
//   - float64: The changed fraction of the frame in [0,1].
//   - error: If the frame is empty.
func (g *Gate) Open(frame gocv.Mat) (bool, float64, error) {
	if frame.Empty() {
		return false, 0, errors.New("empty frame")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	blurred := g.prepare(frame)
	defer blurred.Close()

	if !g.initialized {
		blurred.CopyTo(&g.previous)
		g.initialized = true
		return true, 0, nil
	}

	mask := gocv.NewMat()
	defer mask.Close()
	if g.config.BackgroundSubtraction {
		g.background.Apply(blurred, &mask)
	} else {
		diff := gocv.NewMat()
		defer diff.Close()
		gocv.AbsDiff(blurred, g.previous, &diff)
		gocv.Threshold(diff, &mask, g.config.DifferenceThreshold, 255, gocv.ThresholdBinary)
	}
	blurred.CopyTo(&g.previous)

	score := g.score(mask)
	if score >= g.config.MinScore && score > 0 {
		g.hold = g.config.HoldFrames
		return true, score, nil
	}
	if g.hold > 0 {
		g.hold--
		return true, score, nil
	}
	return false, score, nil
}

// prepare converts to gray and blurs.
func (g *Gate) prepare(frame gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if frame.Channels() == 1 {
		frame.CopyTo(&gray)
	} else {
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	}

	k := g.config.BlurKernelSize
	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Pt(k, k), 0, 0, gocv.BorderDefault)
	gray.Close()

	return blurred
}

// score sums the contour areas of the motion mask relative to the frame area.
func (g *Gate) score(mask gocv.Mat) float64 {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	total := 0.0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area >= g.config.MinContourArea {
			total += area
		}
	}

	return math.Min(total/float64(mask.Rows()*mask.Cols()), 1)
}

// Reset forgets the reference frame, for example after the camera moved.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.initialized = false
	g.hold = 0
}

// Close releases the OpenCV resources.
func (g *Gate) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.config.BackgroundSubtraction {
		if err := g.background.Close(); err != nil {
			return err
		}
	}
	return g.previous.Close()
}
