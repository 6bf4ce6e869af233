package embedding

import (
	"context"
	"math"
	"os"
	"testing"
)

func TestMeanPoolSkipsMaskedTokens(t *testing.T) {
	data := []float32{
		1, 2,
		3, 4,
		100, 100,
	}
	got := meanPool(data, []int64{1, 1, 0}, 2)
	if got[0] != 2 || got[1] != 3 {
		t.Fatalf("meanPool = %v, want [2 3]", got)
	}
}

func TestNewONNXRequiresPaths(t *testing.T) {
	if _, err := NewONNX(ONNXConfig{}); err == nil {
		t.Fatalf("expected error without model paths")
	}
}

// TestONNXMiniLM runs only when a model export is available locally.
func TestONNXMiniLM(t *testing.T) {
	model, vocab := os.Getenv("ONNX_MODEL_PATH"), os.Getenv("ONNX_VOCAB_PATH")
	if model == "" || vocab == "" {
		t.Skip("ONNX_MODEL_PATH / ONNX_VOCAB_PATH not set")
	}
	e, err := NewONNX(ONNXConfig{ModelPath: model, VocabPath: vocab})
	if err != nil {
		t.Fatalf("NewONNX: %v", err)
	}
	defer e.Close()

	ctx := context.Background()
	apple, err := e.Embed(ctx, "apple")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(apple) != MiniLMDim {
		t.Fatalf("dim = %d", len(apple))
	}
	again, _ := e.Embed(ctx, "apple")
	if s := Similarity(apple, again); math.Abs(s-1) > 1e-5 {
		t.Fatalf("repeat embedding scored %v", s)
	}
	fruit, _ := e.Embed(ctx, "fruit")
	volcano, _ := e.Embed(ctx, "volcano")
	if Similarity(apple, fruit) <= Similarity(apple, volcano) {
		t.Fatalf("expected fruit closer to apple than volcano")
	}
}
