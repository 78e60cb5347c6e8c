// Package main streams a camera or video file through a detector and draws the latest
// detections over the live picture.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/motion"
	"github.com/nvr-ai/go-detect/profiler"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

var (
	boxColor  = color.RGBA{0, 255, 0, 0}
	textColor = color.RGBA{255, 255, 255, 0}
)

// overlay holds the most recent result for drawing.
type overlay struct {
	mu     sync.Mutex
	result *detector.Result
	err    error
}

func (o *overlay) OnDetect(res *detector.Result) {
	o.mu.Lock()
	o.result, o.err = res, nil
	o.mu.Unlock()
}

func (o *overlay) OnEmpty(res *detector.Result) {
	o.OnDetect(res)
}

func (o *overlay) OnError(err error) {
	o.mu.Lock()
	o.err = err
	o.mu.Unlock()
}

func (o *overlay) draw(img *gocv.Mat) {
	o.mu.Lock()
	res, err := o.result, o.err
	o.mu.Unlock()

	if err != nil {
		gocv.PutText(img, err.Error(), image.Pt(10, 30), gocv.FontHersheyPlain, 1.2, color.RGBA{255, 0, 0, 0}, 2)
		return
	}
	if res == nil {
		return
	}

	for _, d := range res.Detections {
		r := d.Box.Image()
		gocv.Rectangle(img, r, boxColor, 2)
		label := fmt.Sprintf("%s %.0f%%", d.Name, d.Confidence*100)
		gocv.PutText(img, label, image.Pt(r.Min.X, r.Min.Y-4), gocv.FontHersheyPlain, 1.2, boxColor, 2)
	}

	pre, inf, post := res.Timings.Millis()
	status := fmt.Sprintf("#%d pre %dms inf %dms post %dms", res.Seq, pre, inf, post)
	gocv.PutText(img, status, image.Pt(10, 30), gocv.FontHersheyPlain, 1.2, textColor, 2)
}

func main() {
	var (
		configPath string
		source     string
		show       bool
		gated      bool
	)
	flag.StringVar(&configPath, "config", "detector.yaml", "YAML detector config")
	flag.StringVar(&source, "source", "0", "camera device id or video file")
	flag.BoolVar(&show, "show-window", true, "show the annotated stream")
	flag.BoolVar(&gated, "motion", false, "only submit frames that show motion")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(configPath, source, show, gated, logger); err != nil {
		logger.Fatal("webcam", zap.Error(err))
	}
}

func run(configPath, source string, show, gated bool, logger *zap.Logger) (err error) {
	cfg, err := detector.LoadConfig(configPath)
	if err != nil {
		return err
	}

	m, err := providers.Open(cfg.Model, logger)
	if err != nil {
		return err
	}
	det, err := detector.New(m, cfg, detector.WithLogger(logger))
	if err != nil {
		return err
	}

	prof := profiler.New(profiler.Options{}, logger)
	view := &overlay{}
	stream := detector.NewStream(det, view,
		detector.WithProfiler(prof),
		detector.WithStreamLogger(logger),
	)
	defer stream.Stop()

	var device interface{} = source
	if id, convErr := strconv.Atoi(source); convErr == nil {
		device = id
	}
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, capture.Close()) }()

	var window *gocv.Window
	if show {
		window = gocv.NewWindow("detect")
		defer func() { err = multierr.Append(err, window.Close()) }()
	}

	var gate *motion.Gate
	if gated {
		if gate, err = motion.New(motion.DefaultConfig()); err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, gate.Close()) }()
	}
	var skipped uint64

	img := gocv.NewMat()
	defer func() { err = multierr.Append(err, img.Close()) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prof.Start(ctx)
	defer prof.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("reading frames", zap.String("source", source))
		for ctx.Err() == nil {
			if ok := capture.Read(&img); !ok {
				logger.Info("source ended", zap.String("source", source))
				return nil
			}
			if img.Empty() {
				continue
			}

			submit := true
			if gate != nil {
				open, _, err := gate.Open(img)
				if err != nil {
					return err
				}
				if !open {
					skipped++
				}
				submit = open
			}

			if submit {
				frame, err := img.ToImage()
				if err != nil {
					return err
				}
				if err := stream.Submit(frame); err != nil {
					return err
				}
			}

			if window != nil {
				view.draw(&img)
				window.IMShow(img)
				if window.WaitKey(1) == 27 {
					return context.Canceled
				}
			} else {
				time.Sleep(time.Millisecond)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	stats := stream.Stats()
	logger.Info("done",
		zap.Uint64("submitted", stats.Submitted),
		zap.Uint64("processed", stats.Processed),
		zap.Uint64("dropped", stats.Dropped),
		zap.Uint64("static", skipped),
	)

	return nil
}
