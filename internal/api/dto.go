package api

// MatMulRequest asks for C = A·B with A supplied transposed (K-major).
// AT must hold K*M values and B K*N; M and N must be multiples of 16.
type MatMulRequest struct {
	M int `json:"m"`
	N int `json:"n"`
	K int `json:"k"`

	AT []float32 `json:"at"`
	B  []float32 `json:"b"`

	// BlockSize overrides the cache block edge; zero selects the default.
	BlockSize int `json:"block_size,omitempty"`
	// Workers caps parallelism; zero selects GOMAXPROCS.
	Workers int `json:"workers,omitempty"`
}

// MatMulResponse carries the M×N row-major product.
type MatMulResponse struct {
	ID string    `json:"id"`
	C  []float32 `json:"c"`
}

// AttentionRequest asks for O = softmax(scale·Q·Kᵗ + mask)·V.
// Q is SeqLen×HeadDim, KT is HeadDim×KvLen (K pre-transposed), V is
// KvLen×HeadDim, Mask is SeqLen×KvLen additive or absent. A zero Scale
// selects 1/sqrt(HeadDim).
type AttentionRequest struct {
	SeqLen  int `json:"seq_len"`
	KvLen   int `json:"kv_len"`
	HeadDim int `json:"head_dim"`

	Scale float32 `json:"scale,omitempty"`

	Q    []float32 `json:"q"`
	KT   []float32 `json:"kt"`
	V    []float32 `json:"v"`
	Mask []float32 `json:"mask,omitempty"`
}

// AttentionResponse carries the SeqLen×HeadDim row-major output.
type AttentionResponse struct {
	ID     string    `json:"id"`
	Output []float32 `json:"output"`
}

// ResponseError is the error payload shape shared by every endpoint.
type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
