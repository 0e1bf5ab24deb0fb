// Package tracer fetches, decodes and names transaction traces.
package tracer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	pcommon "github.com/ethpandaops/structlog-decoder/pkg/common"
	"github.com/ethpandaops/structlog-decoder/pkg/decoder"
	"github.com/ethpandaops/structlog-decoder/pkg/ethereum/execution"
	"github.com/ethpandaops/structlog-decoder/pkg/nametag"
)

const (
	SourceInput = "input"
	SourceRPC   = "rpc"
)

// ErrNoTraceSource is returned by TraceTransaction when the service was built
// without execution nodes.
var ErrNoTraceSource = errors.New("no execution node configured")

// NodeSource hands out an execution node able to serve traces.
type NodeSource interface {
	WaitForHealthyExecutionNode(ctx context.Context) (execution.Node, error)
}

// Result is a decoded transaction.
type Result struct {
	Hash        string        `json:"hash,omitempty"`
	Gas         uint64        `json:"gas,omitempty"`
	Failed      bool          `json:"failed"`
	ReturnValue *string       `json:"returnValue,omitempty"`
	Tree        *decoder.Tree `json:"tree"`
	Names       nametag.Names `json:"names,omitempty"`
}

// Service decodes step logs and names the addresses they touch. Nodes and
// resolver are optional.
type Service struct {
	log      logrus.FieldLogger
	config   *Config
	opts     decoder.Options
	nodes    NodeSource
	resolver nametag.Resolver

	nameConcurrency int
}

func New(log logrus.FieldLogger, config *Config, nodes NodeSource, resolver nametag.Resolver, nameConcurrency int) (*Service, error) {
	log = log.WithField("component", "tracer")

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid decoder config: %w", err)
	}

	opts, err := config.DecoderOptions(log)
	if err != nil {
		return nil, err
	}

	return &Service{
		log:             log,
		config:          config,
		opts:            opts,
		nodes:           nodes,
		resolver:        resolver,
		nameConcurrency: nameConcurrency,
	}, nil
}

// Decode decodes a trace whose outermost frame executes at root.
func (s *Service) Decode(ctx context.Context, trace *execution.TraceTransaction, root common.Address) (*Result, error) {
	return s.decode(ctx, SourceInput, trace, root)
}

// DecodeMany decodes independent traces concurrently. Results keep the order
// of traces.
func (s *Service) DecodeMany(ctx context.Context, traces []*execution.TraceTransaction) ([]*Result, error) {
	results := make([]*Result, len(traces))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)

	for i, trace := range traces {
		g.Go(func() error {
			result, err := s.decode(gctx, SourceInput, trace, common.Address{})
			if err != nil {
				return fmt.Errorf("trace %d: %w", i, err)
			}

			results[i] = result

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// TraceTransaction fetches a mined transaction from a healthy node and
// decodes it.
func (s *Service) TraceTransaction(ctx context.Context, hash string) (*Result, error) {
	if s.nodes == nil {
		return nil, ErrNoTraceSource
	}

	node, err := s.nodes.WaitForHealthyExecutionNode(ctx)
	if err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{
		"hash": hash,
		"node": node.Name(),
	})

	tx, err := node.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction: %w", err)
	}

	trace, err := node.DebugTraceTransaction(ctx, hash, execution.DecodeTraceOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to trace transaction: %w", err)
	}

	log.WithField("steps", len(trace.Structlogs)).Debug("Fetched trace")

	result, err := s.decode(ctx, SourceRPC, trace, tx.Target())
	if err != nil {
		return nil, err
	}

	result.Hash = hash

	return result, nil
}

func (s *Service) decode(ctx context.Context, source string, trace *execution.TraceTransaction, root common.Address) (*Result, error) {
	result := &Result{
		Gas:         trace.Gas,
		Failed:      trace.Failed,
		ReturnValue: trace.ReturnValue,
	}

	// Transfers to accounts without code produce no steps.
	if len(trace.Structlogs) == 0 {
		result.Tree = &decoder.Tree{Items: []*decoder.Item{}}
		pcommon.TracesDecoded.WithLabelValues(source, "empty").Inc()

		return result, nil
	}

	steps := make([]execution.StructLog, len(trace.Structlogs))
	copy(steps, trace.Structlogs)

	if n := execution.SanitizeStructLogs(steps); n > 0 {
		s.log.WithField("steps", n).Debug("Sanitized corrupted gas costs")
	}

	opts := s.opts
	opts.RootAddress = root

	start := time.Now()

	tree, err := decoder.Build(steps, opts)
	if err != nil {
		pcommon.TracesDecoded.WithLabelValues(source, "error").Inc()

		return nil, err
	}

	pcommon.DecodeDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	pcommon.StepsDecoded.WithLabelValues(source).Add(float64(len(steps)))
	pcommon.TracesDecoded.WithLabelValues(source, "success").Inc()
	observeTree(source, tree)

	result.Tree = tree

	if s.resolver != nil {
		names, err := nametag.ResolveTree(ctx, s.resolver, tree, s.nameConcurrency)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve names: %w", err)
		}

		result.Names = names
	}

	return result, nil
}

func observeTree(source string, tree *decoder.Tree) {
	tree.Walk(func(item *decoder.Item) bool {
		if fault, ok := item.Params.(*decoder.FaultParams); ok {
			pcommon.FaultyItems.WithLabelValues(source, item.Opcode.String(), fault.Reason).Inc()
		}

		pcommon.ItemsDecoded.WithLabelValues(source, item.Opcode.String()).Inc()

		return true
	})
}
