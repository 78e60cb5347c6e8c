package detector

import (
	"testing"
	"time"

	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/model/preprocess"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingDetector returns a detector whose inference waits for release, and a channel
// that receives once per started inference.
func blockingDetector(t *testing.T) (*Detector, *fakeEngine, chan struct{}, chan struct{}) {
	m, e := rankedModel(make([]float32, 18), nil)
	infer := e.infer

	started := make(chan struct{}, 8)
	release := make(chan struct{})
	e.infer = func(in *preprocess.Tensor) (model.Tensors, error) {
		started <- struct{}{}
		<-release
		return infer(in)
	}

	det, err := New(m, DefaultConfig())
	require.NoError(t, err)

	return det, e, started, release
}

func widthListener(widths chan<- int) Listener {
	return ListenerFuncs{
		Empty:  func(res *Result) { widths <- res.Width },
		Detect: func(res *Result) { widths <- res.Width },
	}
}

// TestStreamKeepsLatestFrame drops frames replaced while the detector is busy and
// delivers results in submission order.
func TestStreamKeepsLatestFrame(t *testing.T) {
	det, _, started, release := blockingDetector(t)

	widths := make(chan int, 4)
	s := NewStream(det, widthListener(widths))
	defer s.Stop()

	require.NoError(t, s.Submit(frame(10, 10)))
	<-started

	for _, w := range []int{20, 30, 40} {
		require.NoError(t, s.Submit(frame(w, w)))
	}
	close(release)

	assert.Equal(t, 10, <-widths)
	assert.Equal(t, 40, <-widths)

	require.Eventually(t, func() bool { return s.Stats().Processed == 2 }, time.Second, time.Millisecond)
	stats := s.Stats()
	assert.Equal(t, uint64(4), stats.Submitted)
	assert.Equal(t, uint64(2), stats.Dropped)
	assert.Equal(t, uint64(0), stats.Failed)
	assert.Len(t, stats.Stages, 3)
	assert.Empty(t, widths)
}

// TestStreamStop finishes the in-flight frame, discards the waiting one and closes the
// detector exactly once.
func TestStreamStop(t *testing.T) {
	det, e, started, release := blockingDetector(t)

	widths := make(chan int, 4)
	s := NewStream(det, widthListener(widths))

	require.NoError(t, s.Submit(frame(10, 10)))
	<-started
	require.NoError(t, s.Submit(frame(20, 20)))

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.stopped
	}, time.Second, time.Millisecond)

	close(release)
	<-stopped
	s.Stop()

	assert.Equal(t, 10, <-widths)
	assert.Empty(t, widths)
	assert.Equal(t, uint64(1), s.Stats().Processed)
	assert.Equal(t, uint64(1), s.Stats().Dropped)
	assert.Equal(t, int32(1), e.closes.Load())

	assert.ErrorIs(t, s.Submit(frame(10, 10)), ErrClosed)
}

// TestStreamRejectsNilFrame refuses nil frames without counting them.
func TestStreamRejectsNilFrame(t *testing.T) {
	m, _ := rankedModel(make([]float32, 18), nil)
	det, err := New(m, DefaultConfig())
	require.NoError(t, err)

	s := NewStream(det, ListenerFuncs{})
	defer s.Stop()

	assert.ErrorIs(t, s.Submit(nil), ErrNilFrame)
	assert.Zero(t, s.Stats().Submitted)
	assert.Zero(t, s.Stats().Dropped)
}

// TestStreamRoutesOutcomes calls the listener method matching each frame outcome.
func TestStreamRoutesOutcomes(t *testing.T) {
	m, e := rankedModel([]float32{
		0.1, 0.1, 0.5, 0.5, 0.9, 0,
		0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0,
	}, nil)
	detect := e.infer

	calls := 0
	e.infer = func(in *preprocess.Tensor) (model.Tensors, error) {
		calls++
		switch calls {
		case 1:
			return detect(in)
		case 2:
			return nil, errors.New("boom")
		}
		return dense(make([]float32, 18), 1, 3, 6), nil
	}

	det, err := New(m, DefaultConfig())
	require.NoError(t, err)

	events := make(chan string, 3)
	s := NewStream(det, ListenerFuncs{
		Detect: func(res *Result) { events <- "detect:" + res.Detections[0].Name },
		Empty:  func(*Result) { events <- "empty" },
		Error: func(err error) {
			var frameErr *FrameError
			if errors.As(err, &frameErr) {
				events <- "error:" + frameErr.Stage.String()
			}
		},
	})
	defer s.Stop()

	for _, want := range []string{"detect:person", "error:inferring", "empty"} {
		require.NoError(t, s.Submit(frame(8, 8)))
		select {
		case got := <-events:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("no event for %s", want)
		}
	}

	assert.Equal(t, uint64(1), s.Stats().Failed)
}
