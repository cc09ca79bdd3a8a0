package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"gopkg.in/yaml.v3"
)

// ONNXOracle runs the exported classifier through onnxruntime. Tensors are
// allocated once at load time; Score serializes access with a mutex so a
// single session can serve concurrent requests.
type ONNXOracle struct {
	session *ort.AdvancedSession
	columns []string
	mapping map[string]string

	input  *ort.Tensor[float32]
	output *ort.Tensor[float32]

	mu sync.Mutex
}

// LoadONNX initializes the ONNX session from a model bundle directory.
// The bundle holds nids_rf.onnx plus the sidecar metadata describing the
// model feature namespace and the input-name mapping.
func LoadONNX(bundleDir string) (*ONNXOracle, error) {
	if bundleDir == "" {
		return nil, errors.New("bundleDir is empty")
	}

	libPath := resolveSharedLibraryPath(bundleDir)
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	} else {
		return nil, fmt.Errorf("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or install the runtime")
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	modelPath := filepath.Join(bundleDir, "nids_rf.onnx")
	columnsPath := filepath.Join(bundleDir, "feature_columns.json")
	mappingPath := filepath.Join(bundleDir, "feature_mapping.yaml")

	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", modelPath, err)
	}

	columns, err := loadColumns(columnsPath)
	if err != nil {
		return nil, fmt.Errorf("load feature columns: %w", err)
	}

	mapping, err := loadMapping(mappingPath)
	if err != nil {
		return nil, fmt.Errorf("load feature mapping: %w", err)
	}

	inputShape := ort.NewShape(1, int64(len(columns)))
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	outputShape := ort.NewShape(1, 2)
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"float_input"},
		[]string{"probabilities"},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &ONNXOracle{
		session: session,
		columns: columns,
		mapping: mapping,
		input:   input,
		output:  output,
	}, nil
}

func (o *ONNXOracle) Features() []string { return o.columns }
func (o *ONNXOracle) Mapping() map[string]string { return o.mapping }

// Score runs the model on one normalized vector and returns the
// (normal, attack) probability pair.
func (o *ONNXOracle) Score(ctx context.Context, vec []float32) (float64, float64, error) {
	if o == nil || o.session == nil {
		return 0, 0, errors.New("model not initialized")
	}
	if len(vec) != len(o.columns) {
		return 0, 0, fmt.Errorf("vector has %d features, model expects %d", len(vec), len(o.columns))
	}
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	copy(o.input.GetData(), vec)

	if err := o.session.Run(); err != nil {
		return 0, 0, fmt.Errorf("onnx run: %w", err)
	}

	raw := o.output.GetData()
	if len(raw) < 2 {
		return 0, 0, fmt.Errorf("model returned %d outputs, expected 2", len(raw))
	}
	normal := float64(raw[0])
	attack := float64(raw[1])
	if math.IsNaN(normal) || math.IsNaN(attack) || math.IsInf(normal, 0) || math.IsInf(attack, 0) {
		return 0, 0, fmt.Errorf("model returned non-finite probabilities (%v, %v)", normal, attack)
	}
	return normal, attack, nil
}

// Close releases the session and its tensors.
func (o *ONNXOracle) Close() error {
	if o == nil || o.session == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.session.Destroy(); err != nil {
		return err
	}
	o.session = nil
	_ = o.input.Destroy()
	_ = o.output.Destroy()
	return nil
}

func loadColumns(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cols []string
	if err := json.Unmarshal(data, &cols); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, errors.New("feature column list is empty")
	}
	return cols, nil
}

func loadMapping(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Mapping map[string]string `yaml:"mapping"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, err
	}
	if len(wrapper.Mapping) == 0 {
		return nil, errors.New("feature mapping is empty")
	}
	return wrapper.Mapping, nil
}

// resolveSharedLibraryPath attempts to locate a platform-specific onnxruntime shared library.
// If ONNXRUNTIME_SHARED_LIBRARY_PATH is set, it wins; otherwise we probe common names/locations.
func resolveSharedLibraryPath(bundleDir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"libonnxruntime.so",
		"onnxruntime.so",
		"onnxruntime.dll",
	}
	dirs := []string{
		bundleDir,
		filepath.Join(bundleDir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}

	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
