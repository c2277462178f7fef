//go:build tflite

package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/tphakala/go-tflite"

	"github.com/desertthunder/visionary/internal/shared"
)

// TFLiteOracle implements [Oracle] with an in-process TensorFlow Lite image classifier.
//
// The model takes one [1, height, width, 3] float32 or uint8 input and produces one score per label.
// The interpreter is not reentrant, so calls to Predict are serialised.
type TFLiteOracle struct {
	mu           sync.Mutex
	model        *tflite.Model
	options      *tflite.InterpreterOptions
	interpreter  *tflite.Interpreter
	labels       []string
	width        int
	height       int
	mean         float32
	std          float32
	applySoftmax bool
}

// NewTFLiteOracle loads the model and labels named by cfg and allocates the interpreter.
func NewTFLiteOracle(cfg shared.TFLiteOracle, logger *log.Logger) (*TFLiteOracle, error) {
	labels, err := LoadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, err
	}

	model := tflite.NewModelFromFile(cfg.ModelPath)
	if model == nil {
		return nil, fmt.Errorf("cannot load model from %s", cfg.ModelPath)
	}

	options := tflite.NewInterpreterOptions()
	if cfg.Threads > 0 {
		options.SetNumThread(cfg.Threads)
	}
	options.SetErrorReporter(func(msg string, _ any) {
		if logger != nil {
			logger.Error("tflite", "message", msg)
		}
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("cannot create interpreter")
	}

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("tensor allocation failed")
	}

	input := interpreter.GetInputTensor(0)
	if input == nil || input.NumDims() != 4 || input.Dim(3) != 3 {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("model input must be [1, height, width, 3]")
	}

	return &TFLiteOracle{
		model:        model,
		options:      options,
		interpreter:  interpreter,
		labels:       labels,
		height:       input.Dim(1),
		width:        input.Dim(2),
		mean:         cfg.InputMean,
		std:          cfg.InputStd,
		applySoftmax: cfg.ApplySoftmax,
	}, nil
}

// Name implements [Oracle].
func (o *TFLiteOracle) Name() string { return shared.BackendTFLite }

// Predict implements [Oracle].
func (o *TFLiteOracle) Predict(ctx context.Context, in Input) ([]Prediction, error) {
	if in.Image == nil {
		return nil, fmt.Errorf("tflite oracle requires a decoded image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	input := o.interpreter.GetInputTensor(0)
	if input == nil {
		return nil, fmt.Errorf("cannot get input tensor")
	}

	switch input.Type() {
	case tflite.Float32:
		copy(input.Float32s(), Float32Tensor(in.Image, o.width, o.height, o.mean, o.std))
	case tflite.UInt8:
		copy(input.UInt8s(), Uint8Tensor(in.Image, o.width, o.height))
	default:
		return nil, fmt.Errorf("unsupported input tensor type %v", input.Type())
	}

	if status := o.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed")
	}

	output := o.interpreter.GetOutputTensor(0)
	if output == nil {
		return nil, fmt.Errorf("cannot get output tensor")
	}
	size := output.Dim(output.NumDims() - 1)

	scores := make([]float32, size)
	switch output.Type() {
	case tflite.Float32:
		copy(scores, output.Float32s())
	case tflite.UInt8:
		for i, v := range output.UInt8s()[:size] {
			scores[i] = float32(v) / 255
		}
	default:
		return nil, fmt.Errorf("unsupported output tensor type %v", output.Type())
	}

	if o.applySoftmax && !Probabilities(scores) {
		scores = Softmax(scores)
	}

	return Rank(o.labels, scores), nil
}

// Close releases the interpreter and model.
func (o *TFLiteOracle) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.interpreter.Delete()
	o.options.Delete()
	o.model.Delete()
	return nil
}
