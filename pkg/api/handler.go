package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	pcommon "github.com/ethpandaops/structlog-decoder/pkg/common"
	"github.com/ethpandaops/structlog-decoder/pkg/decoder"
	"github.com/ethpandaops/structlog-decoder/pkg/ethereum"
	"github.com/ethpandaops/structlog-decoder/pkg/ethereum/execution"
	"github.com/ethpandaops/structlog-decoder/pkg/format"
	"github.com/ethpandaops/structlog-decoder/pkg/tracer"
)

const (
	maxBodyBytes   = 256 << 20
	maxBatchTraces = 100
)

type Handler struct {
	log    logrus.FieldLogger
	tracer *tracer.Service
}

func NewHandler(log logrus.FieldLogger, tracerService *tracer.Service) *Handler {
	return &Handler{
		log:    log.WithField("component", "api"),
		tracer: tracerService,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/decode", h.decode)
	mux.HandleFunc("POST /api/v1/decode/batch", h.decodeBatch)
	mux.HandleFunc("GET /api/v1/trace/{hash}", h.trace)
}

type BatchRequest struct {
	Traces []*execution.TraceTransaction `json:"traces"`
}

type BatchResponse struct {
	Results []*tracer.Result `json:"results"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Hash  string `json:"hash,omitempty"`
}

// decode accepts a bare struct log array or a debug_traceTransaction result.
// The optional root query parameter sets the executing address of the
// outermost frame.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request) {
	const route = "decode"

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, route, http.StatusRequestEntityTooLarge, "failed to read body", "")

		return
	}

	trace, err := execution.ParseStructLogs(body)
	if err != nil {
		h.writeError(w, route, http.StatusBadRequest, err.Error(), "")

		return
	}

	var root common.Address

	if v := r.URL.Query().Get("root"); v != "" {
		if !common.IsHexAddress(v) {
			h.writeError(w, route, http.StatusBadRequest, "invalid root address", "")

			return
		}

		root = common.HexToAddress(v)
	}

	result, err := h.tracer.Decode(r.Context(), trace, root)
	if err != nil {
		h.writeDecodeError(w, route, err, "")

		return
	}

	h.writeResult(w, r, route, result)
}

func (h *Handler) decodeBatch(w http.ResponseWriter, r *http.Request) {
	const route = "decode_batch"

	var req BatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, route, http.StatusBadRequest, "invalid request body", "")

		return
	}

	if len(req.Traces) == 0 || len(req.Traces) > maxBatchTraces {
		h.writeError(w, route, http.StatusBadRequest, fmt.Sprintf("traces must hold between 1 and %d entries", maxBatchTraces), "")

		return
	}

	for i, trace := range req.Traces {
		if trace == nil {
			h.writeError(w, route, http.StatusBadRequest, fmt.Sprintf("trace %d is null", i), "")

			return
		}
	}

	results, err := h.tracer.DecodeMany(r.Context(), req.Traces)
	if err != nil {
		h.writeDecodeError(w, route, err, "")

		return
	}

	h.writeJSON(w, route, http.StatusOK, BatchResponse{Results: results})
}

func (h *Handler) trace(w http.ResponseWriter, r *http.Request) {
	const route = "trace"

	hash := r.PathValue("hash")

	if len(common.FromHex(hash)) != common.HashLength {
		h.writeError(w, route, http.StatusBadRequest, "invalid transaction hash", hash)

		return
	}

	result, err := h.tracer.TraceTransaction(r.Context(), hash)
	if err != nil {
		h.writeDecodeError(w, route, err, hash)

		return
	}

	h.writeResult(w, r, route, result)
}

// writeResult renders JSON unless format=text is requested.
func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, route string, result *tracer.Result) {
	query := r.URL.Query()

	if query.Get("format") != "text" {
		h.writeJSON(w, route, http.StatusOK, result)

		return
	}

	showGas, _ := strconv.ParseBool(query.Get("gas"))

	out := format.Render(result.Tree, format.Options{
		Title:   result.Hash,
		Names:   result.Names,
		ShowGas: showGas,
	})

	pcommon.APIRequests.WithLabelValues(route, strconv.Itoa(http.StatusOK)).Inc()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	if _, err := io.WriteString(w, out); err != nil {
		h.log.WithError(err).Error("failed to write response")
	}
}

func (h *Handler) writeDecodeError(w http.ResponseWriter, route string, err error, hash string) {
	switch {
	case errors.Is(err, decoder.ErrEmptyTrace):
		h.writeError(w, route, http.StatusBadRequest, err.Error(), hash)
	case errors.Is(err, execution.ErrTransactionNotFound):
		h.writeError(w, route, http.StatusNotFound, "transaction not found", hash)
	case errors.Is(err, tracer.ErrNoTraceSource), errors.Is(err, ethereum.ErrNoHealthyNode), errors.Is(err, ethereum.ErrNoExecutionNodes):
		h.writeError(w, route, http.StatusServiceUnavailable, err.Error(), hash)
	default:
		h.log.WithError(err).WithField("route", route).Error("Request failed")
		h.writeError(w, route, http.StatusBadGateway, err.Error(), hash)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, route string, status int, data interface{}) {
	pcommon.APIRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.WithError(err).Error("failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, route string, status int, message, hash string) {
	h.writeJSON(w, route, status, ErrorResponse{Error: message, Hash: hash})
}
