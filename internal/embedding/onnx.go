package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// MiniLMDim is the hidden size of all-MiniLM-L6-v2.
const MiniLMDim = 384

// ONNXConfig locates the exported sentence encoder.
type ONNXConfig struct {
	ModelPath         string // model.onnx exported with input_ids/attention_mask/token_type_ids
	VocabPath         string // vocab.txt of the same checkpoint
	SharedLibraryPath string // optional libonnxruntime override
	MaxTokens         int    // sequence cap including [CLS]/[SEP]
	Dim               int    // hidden size; defaults to MiniLMDim
}

// ONNX embeds text with a BERT-style encoder: WordPiece ids in, last hidden state
// out, mean-pooled over the attention mask and L2-normalized.
type ONNX struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	tok     *WordPiece
	dim     int
}

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// NewONNX loads the tokenizer and creates the runtime session. The ONNX Runtime
// environment is process-global and initialized on first use.
func NewONNX(cfg ONNXConfig) (*ONNX, error) {
	if cfg.ModelPath == "" || cfg.VocabPath == "" {
		return nil, errors.New("embedding: onnx model and vocab paths are required")
	}
	if cfg.Dim <= 0 {
		cfg.Dim = MiniLMDim
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 256
	}

	tok, err := LoadWordPiece(cfg.VocabPath, cfg.MaxTokens)
	if err != nil {
		return nil, err
	}

	if p := sharedLibraryPath(cfg.SharedLibraryPath); p != "" {
		ort.SetSharedLibraryPath(p)
	}
	ortInitOnce.Do(func() {
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("failed to init ort: %w", ortInitErr)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer options.Destroy()
	_ = options.SetIntraOpNumThreads(1)
	_ = options.SetInterOpNumThreads(1)

	inputs := []string{"input_ids", "attention_mask", "token_type_ids"}
	outputs := []string{"last_hidden_state"}
	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputs, outputs, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &ONNX{session: session, tok: tok, dim: cfg.Dim}, nil
}

// sharedLibraryPath prefers an explicit path, then ORT_SHARED_LIBRARY_PATH, then a
// libonnxruntime next to the working directory.
func sharedLibraryPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("ORT_SHARED_LIBRARY_PATH"); p != "" {
		return p
	}
	if runtime.GOOS != "linux" {
		return ""
	}
	cwd, _ := os.Getwd()
	for _, name := range []string{"libonnxruntime.so", "libonnxruntime.so.1"} {
		abs := filepath.Join(cwd, name)
		if _, err := os.Stat(abs); err == nil {
			return abs
		}
	}
	return ""
}

func (o *ONNX) Close() error {
	return o.session.Destroy()
}

func (o *ONNX) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := o.tok.Encode(text)
	n := int64(len(ids))
	mask := make([]int64, n)
	types := make([]int64, n)
	for i := range mask {
		mask[i] = 1
	}

	shape := ort.NewShape(1, n)
	idsT, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, err
	}
	defer idsT.Destroy()
	maskT, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, err
	}
	defer maskT.Destroy()
	typesT, err := ort.NewTensor(shape, types)
	if err != nil {
		return nil, err
	}
	defer typesT.Destroy()

	hidden, err := ort.NewEmptyTensor[float32](ort.NewShape(1, n, int64(o.dim)))
	if err != nil {
		return nil, err
	}
	defer hidden.Destroy()

	o.mu.Lock()
	err = o.session.Run([]ort.Value{idsT, maskT, typesT}, []ort.Value{hidden})
	o.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	vec := meanPool(hidden.GetData(), mask, o.dim)
	if !normalize(vec) {
		return nil, errors.New("embedding: zero vector")
	}
	return vec, nil
}

// meanPool averages token vectors of a [1, seq, dim] tensor over unmasked positions.
func meanPool(data []float32, mask []int64, dim int) []float32 {
	out := make([]float32, dim)
	var count float32
	for t, m := range mask {
		if m == 0 {
			continue
		}
		row := data[t*dim : (t+1)*dim]
		for i, v := range row {
			out[i] += v
		}
		count++
	}
	if count > 0 {
		for i := range out {
			out[i] /= count
		}
	}
	return out
}
