// Package tflite - TensorFlow Lite inference engine.
package tflite

import (
	"os"
	"runtime"
	"strconv"

	tflite "github.com/mattn/go-tflite"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/metadata"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/model/preprocess"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorgonia.org/tensor"
)

// Backend is the backend name reported in inference.Model.
const Backend = "tflite"

// DefaultThreads is the interpreter thread count used when none is configured.
const DefaultThreads = 4

// Config configures the TensorFlow Lite engine.
type Config struct {
	// Threads is the interpreter thread count. Zero selects DefaultThreads, negative
	// values select runtime.NumCPU.
	Threads int
}

// Open loads a TensorFlow Lite model, allocates its tensors and reads the class names
// packed into the model file.
//
// Arguments:
//   - path: The .tflite model file.
//   - cfg: The engine configuration.
//   - logger: The logger. Interpreter error reports are forwarded to it.
//
// Returns:
//   - *inference.Model: The loaded model.
//   - error: A *model.LoadError if any step fails.
func Open(path string, cfg Config, logger *zap.Logger) (*inference.Model, error) {
	fail := func(op string, err error) (*inference.Model, error) {
		return nil, &model.LoadError{Path: path, Op: op, Err: err}
	}

	if _, err := os.Stat(path); err != nil {
		return fail("open", err)
	}

	threads := cfg.Threads
	switch {
	case threads == 0:
		threads = DefaultThreads
	case threads < 0:
		threads = runtime.NumCPU()
	}

	e := &engine{}

	e.model = tflite.NewModelFromFile(path)
	if e.model == nil {
		return fail("open", errors.New("failed to create model"))
	}

	e.options = tflite.NewInterpreterOptions()
	if e.options == nil {
		e.release()
		return fail("interpreter", errors.New("interpreter options failed to be created"))
	}
	e.options.SetNumThread(threads)
	e.options.SetErrorReporter(func(msg string, _ interface{}) {
		logger.Warn("tflite", zap.String("model", path), zap.String("message", msg))
	}, nil)

	e.interpreter = tflite.NewInterpreter(e.model, e.options)
	if e.interpreter == nil {
		e.release()
		return fail("interpreter", errors.New("failed to create interpreter"))
	}
	if status := e.interpreter.AllocateTensors(); status != tflite.OK {
		e.release()
		return fail("interpreter", errors.Errorf("failed to allocate tensors: %v", status))
	}

	if n := e.interpreter.GetInputTensorCount(); n != 1 {
		e.release()
		return fail("introspect", errors.Errorf("want 1 input, model has %d", n))
	}

	m := &inference.Model{
		Path:    path,
		Backend: Backend,
		Engine:  e,
		Input:   tensorInfo(e.interpreter.GetInputTensor(0), 0),
		Names:   metadata.ReadAppendedNames(path),
	}
	for i := 0; i < e.interpreter.GetOutputTensorCount(); i++ {
		m.Outputs = append(m.Outputs, tensorInfo(e.interpreter.GetOutputTensor(i), i))
	}
	if len(m.Outputs) == 0 {
		e.release()
		return fail("introspect", errors.New("model has no outputs"))
	}

	logger.Info("loaded tflite model",
		zap.String("model", path),
		zap.Stringer("input", m.Input),
		zap.String("output_type", string(m.Outputs[0].Type)),
		zap.Int("threads", threads),
		zap.Int("names", len(m.Names)),
	)

	return m, nil
}

func tensorInfo(t *tflite.Tensor, index int) model.TensorInfo {
	dims := make([]int64, t.NumDims())
	for i := range dims {
		dims[i] = int64(t.Dim(i))
	}

	name := t.Name()
	if name == "" {
		name = strconv.Itoa(index)
	}

	return model.TensorInfo{Name: name, Dims: dims, Type: dataType(t.Type())}
}

func dataType(t tflite.TensorType) model.DataType {
	switch t {
	case tflite.Float32:
		return model.DataTypeFloat32
	case tflite.UInt8:
		return model.DataTypeUint8
	}
	return model.DataTypeOther
}

type engine struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
}

func (e *engine) Infer(input *preprocess.Tensor) (model.Tensors, error) {
	in := e.interpreter.GetInputTensor(0)

	var status tflite.Status
	if input.Uint8 != nil {
		status = in.CopyFromBuffer(input.Uint8)
	} else {
		status = in.CopyFromBuffer(input.Float32)
	}
	if status != tflite.OK {
		return nil, errors.Errorf("copying input to interpreter: %v", status)
	}

	if status := e.interpreter.Invoke(); status != tflite.OK {
		return nil, errors.Errorf("invoke failed: %v", status)
	}

	n := e.interpreter.GetOutputTensorCount()
	result := make(model.Tensors, n)
	for i := 0; i < n; i++ {
		out, err := toDense(e.interpreter.GetOutputTensor(i))
		if err != nil {
			return nil, errors.Wrapf(err, "output %d", i)
		}
		result[i] = out
	}

	return result, nil
}

// toDense copies an output into a float32 tensor, dequantizing uint8 outputs.
func toDense(t *tflite.Tensor) (*tensor.Dense, error) {
	var data []float32

	switch t.Type() {
	case tflite.Float32:
		data = append([]float32(nil), t.Float32s()...)
	case tflite.UInt8:
		raw := t.UInt8s()
		q := t.QuantizationParams()
		scale, zero := float32(q.Scale), float32(q.ZeroPoint)
		if scale == 0 {
			scale, zero = 1, 0
		}
		data = make([]float32, len(raw))
		for i, u := range raw {
			data[i] = (float32(u) - zero) * scale
		}
	default:
		return nil, errors.Errorf("unsupported output type %v", t.Type())
	}

	dims := make([]int, t.NumDims())
	for i := range dims {
		dims[i] = t.Dim(i)
	}
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(data)), nil
}

// release deletes whatever was created, in reverse order.
func (e *engine) release() {
	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
	if e.options != nil {
		e.options.Delete()
		e.options = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
}

func (e *engine) Close() error {
	if e.interpreter == nil {
		return errors.New("interpreter already released")
	}
	e.release()
	return nil
}
