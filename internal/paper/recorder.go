package paper

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/shreyas-sha3/zen-trade/internal/execution"
)

// FillRecorder captures paper fills for later inspection.
type FillRecorder interface {
	Record(execution.Fill)
}

// JSONLRecorder appends fills as JSON lines for later analysis.
type JSONLRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLRecorder creates/opens the target file and returns a recorder.
func NewJSONLRecorder(path string) (*JSONLRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLRecorder{
		file: file,
		enc:  json.NewEncoder(file),
	}, nil
}

// Record writes a single fill to the underlying JSONL file. Writes after Close are dropped.
func (r *JSONLRecorder) Record(fill execution.Fill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return
	}
	_ = r.enc.Encode(fill)
}

// Tee fans fills out to several recorders.
type Tee []FillRecorder

// Record forwards the fill to every recorder.
func (t Tee) Record(fill execution.Fill) {
	for _, r := range t {
		r.Record(fill)
	}
}

// Close flushes and closes the file handle.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
