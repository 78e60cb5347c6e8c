// Package onnx - ONNX Runtime inference engine.
package onnx

import (
	"os"
	"sync"

	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/model/preprocess"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"gorgonia.org/tensor"
)

// Backend is the backend name reported in inference.Model.
const Backend = "onnx"

// Config configures the ONNX Runtime engine.
type Config struct {
	// LibraryPath is the onnxruntime shared library. Empty uses the runtime's default search.
	LibraryPath string
	// Threads is the intra-op thread count. Zero lets the runtime decide.
	Threads int
}

var envMu sync.Mutex

// initEnvironment loads the shared library and initializes the process-wide runtime once.
func initEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libPath != "" {
		if _, err := os.Stat(libPath); err != nil {
			return errors.Wrapf(err, "onnxruntime library %s", libPath)
		}
		ort.SetSharedLibraryPath(libPath)
	}
	return errors.Wrap(ort.InitializeEnvironment(), "initializing onnxruntime")
}

// Open loads an ONNX model and introspects its tensors and class name metadata.
//
// Order of operations:
//  1. Environment setup: loads the native library once per process.
//  2. Introspection: reads input/output names, shapes and element types.
//  3. Metadata: reads the "names" custom metadata written by Ultralytics exporters.
//  4. Session creation: binds the model with dynamic input/output allocation.
//
// Arguments:
//   - path: The .onnx model file.
//   - cfg: The engine configuration.
//   - logger: The logger.
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
	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return fail("runtime", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return fail("introspect", err)
	}
	if len(inputs) != 1 {
		return fail("introspect", errors.Errorf("want 1 input, model has %d", len(inputs)))
	}

	m := &inference.Model{
		Path:    path,
		Backend: Backend,
		Input:   tensorInfo(inputs[0]),
		Outputs: make([]model.TensorInfo, len(outputs)),
		Names:   readNames(path, logger),
	}
	outNames := make([]string, len(outputs))
	for i, o := range outputs {
		m.Outputs[i] = tensorInfo(o)
		outNames[i] = o.Name
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return fail("session", err)
	}
	defer opts.Destroy()

	if cfg.Threads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.Threads); err != nil {
			return fail("session", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(path, []string{inputs[0].Name}, outNames, opts)
	if err != nil {
		return fail("session", err)
	}

	m.Engine = &engine{session: session, outputs: len(outputs)}

	logger.Info("loaded onnx model",
		zap.String("model", path),
		zap.Stringer("input", m.Input),
		zap.Int("outputs", len(m.Outputs)),
		zap.Int("names", len(m.Names)),
	)

	return m, nil
}

// readNames returns the class names from model metadata, or nil when absent.
func readNames(path string, logger *zap.Logger) []string {
	md, err := ort.GetModelMetadata(path)
	if err != nil {
		logger.Debug("model metadata unavailable", zap.String("model", path), zap.Error(err))
		return nil
	}
	defer md.Destroy()

	raw, ok, err := md.LookupCustomMetadataMap("names")
	if err != nil || !ok {
		return nil
	}
	return models.ParseNames(raw)
}

func tensorInfo(info ort.InputOutputInfo) model.TensorInfo {
	return model.TensorInfo{
		Name: info.Name,
		Dims: append([]int64(nil), info.Dimensions...),
		Type: dataType(info.DataType),
	}
}

func dataType(t ort.TensorElementDataType) model.DataType {
	switch t {
	case ort.TensorElementDataTypeFloat:
		return model.DataTypeFloat32
	case ort.TensorElementDataTypeUint8:
		return model.DataTypeUint8
	}
	return model.DataTypeOther
}

type engine struct {
	session *ort.DynamicAdvancedSession
	outputs int
}

func (e *engine) Infer(input *preprocess.Tensor) (model.Tensors, error) {
	shape := make([]int64, len(input.Shape))
	for i, d := range input.Shape {
		shape[i] = int64(d)
	}

	var (
		in  ort.Value
		err error
	)
	if input.Uint8 != nil {
		in, err = ort.NewTensor(ort.NewShape(shape...), input.Uint8)
	} else {
		in, err = ort.NewTensor(ort.NewShape(shape...), input.Float32)
	}
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}
	defer in.Destroy()

	outs := make([]ort.Value, e.outputs)
	if err := e.session.Run([]ort.Value{in}, outs); err != nil {
		return nil, errors.Wrap(err, "running session")
	}
	defer func() {
		for _, o := range outs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	result := make(model.Tensors, len(outs))
	for i, o := range outs {
		dense, err := toDense(o)
		if err != nil {
			return nil, errors.Wrapf(err, "output %d", i)
		}
		result[i] = dense
	}

	return result, nil
}

// toDense copies a runtime-owned output into a float32 tensor.
func toDense(v ort.Value) (*tensor.Dense, error) {
	var data []float32
	var shape ort.Shape

	switch t := v.(type) {
	case *ort.Tensor[float32]:
		data = append([]float32(nil), t.GetData()...)
		shape = t.GetShape()
	case *ort.Tensor[uint8]:
		raw := t.GetData()
		data = make([]float32, len(raw))
		for i, u := range raw {
			data[i] = float32(u)
		}
		shape = t.GetShape()
	default:
		return nil, errors.Errorf("unsupported output value %T", v)
	}

	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(data)), nil
}

func (e *engine) Close() error {
	return errors.Wrap(e.session.Destroy(), "destroying onnx session")
}
