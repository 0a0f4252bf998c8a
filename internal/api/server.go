// Package api exposes the tiled kernels over HTTP. It exists for
// cross-language callers and for soak-testing the kernels against remote
// references; shapes are validated at this boundary so the contract-based
// kernels below it never see malformed buffers.
package api

import (
	"math"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/zatile/internal/logger"
	"github.com/samcharles93/zatile/pkg/matmul"
	"github.com/samcharles93/zatile/pkg/nn"
	"github.com/samcharles93/zatile/pkg/tile"
)

type Server struct {
	log logger.Logger
	cfg matmul.Config
}

func NewServer(log logger.Logger, cfg matmul.Config) *Server {
	if log == nil {
		log = logger.Default()
	}
	return &Server{log: log, cfg: cfg}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.POST("/v1/matmul", s.handleMatMul)
	e.POST("/v1/attention", s.handleAttention)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return writeJSON(c, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMatMul(c *echo.Context) error {
	req, err := decodeJSON[MatMulRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.M <= 0 || req.N <= 0 || req.K <= 0 {
		return writeBadRequest(c, "m, n and k must be positive")
	}
	if req.M%tile.Width32 != 0 || req.N%tile.Width32 != 0 {
		return writeBadRequest(c, "m and n must be multiples of 16")
	}
	if len(req.AT) != req.K*req.M {
		return writeBadRequest(c, "at must hold k*m values")
	}
	if len(req.B) != req.K*req.N {
		return writeBadRequest(c, "b must hold k*n values")
	}

	cfg := s.cfg
	if req.BlockSize > 0 {
		cfg.BlockSize = req.BlockSize
	}

	out := make([]float32, req.M*req.N)
	matmul.Parallel(out, req.AT, req.B, req.M, req.N, req.K, cfg, req.Workers)

	id := "mm_" + uuid.NewString()
	s.log.Debug("matmul served", "id", id, "m", req.M, "n", req.N, "k", req.K)
	return writeJSON(c, http.StatusOK, MatMulResponse{ID: id, C: out})
}

func (s *Server) handleAttention(c *echo.Context) error {
	req, err := decodeJSON[AttentionRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.SeqLen <= 0 || req.KvLen <= 0 || req.HeadDim <= 0 {
		return writeBadRequest(c, "seq_len, kv_len and head_dim must be positive")
	}
	if len(req.Q) != req.SeqLen*req.HeadDim {
		return writeBadRequest(c, "q must hold seq_len*head_dim values")
	}
	if len(req.KT) != req.HeadDim*req.KvLen {
		return writeBadRequest(c, "kt must hold head_dim*kv_len values")
	}
	if len(req.V) != req.KvLen*req.HeadDim {
		return writeBadRequest(c, "v must hold kv_len*head_dim values")
	}
	if req.Mask != nil && len(req.Mask) != req.SeqLen*req.KvLen {
		return writeBadRequest(c, "mask must hold seq_len*kv_len values")
	}

	scale := req.Scale
	if scale == 0 {
		scale = float32(1.0 / math.Sqrt(float64(req.HeadDim)))
	}

	out := make([]float32, req.SeqLen*req.HeadDim)
	nn.SDPA(out, req.Q, req.KT, req.V, req.Mask, req.SeqLen, req.KvLen, req.HeadDim, scale)

	id := "attn_" + uuid.NewString()
	s.log.Debug("attention served", "id", id, "seq_len", req.SeqLen, "kv_len", req.KvLen, "head_dim", req.HeadDim)
	return writeJSON(c, http.StatusOK, AttentionResponse{ID: id, Output: out})
}
