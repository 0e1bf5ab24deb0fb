package ethereum

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/structlog-decoder/pkg/ethereum/execution"
)

// Pool holds the configured execution nodes and tracks which are ready to
// serve traces.
type Pool struct {
	log            logrus.FieldLogger
	executionNodes []execution.Node
	metrics        *Metrics

	mu sync.RWMutex

	healthyExecutionNodes map[execution.Node]bool

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPool creates a pool of RPC nodes from config.
func NewPool(log logrus.FieldLogger, namespace string, config *Config) *Pool {
	nodes := make([]execution.Node, 0, len(config.Execution))

	for _, execCfg := range config.Execution {
		nodes = append(nodes, execution.NewRPCNode(log, execCfg))
	}

	return NewPoolWithNodes(log, namespace, nodes)
}

// NewPoolWithNodes creates a pool over pre-built nodes.
func NewPoolWithNodes(log logrus.FieldLogger, namespace string, nodes []execution.Node) *Pool {
	return &Pool{
		log:                   log,
		executionNodes:        nodes,
		healthyExecutionNodes: make(map[execution.Node]bool, len(nodes)),
		metrics:               GetMetricsInstance(fmt.Sprintf("%s_ethereum", namespace)),
	}
}

func (p *Pool) HasExecutionNodes() bool {
	return len(p.executionNodes) > 0
}

func (p *Pool) HasHealthyExecutionNodes() bool {
	return len(p.GetHealthyExecutionNodes()) > 0
}

func (p *Pool) GetHealthyExecutionNodes() []execution.Node {
	p.mu.RLock()
	defer p.mu.RUnlock()

	healthyNodes := make([]execution.Node, 0, len(p.healthyExecutionNodes))

	for node, healthy := range p.healthyExecutionNodes {
		if healthy {
			healthyNodes = append(healthyNodes, node)
		}
	}

	return healthyNodes
}

// GetHealthyExecutionNode returns a random ready node, or nil when none is.
func (p *Pool) GetHealthyExecutionNode() execution.Node {
	healthyNodes := p.GetHealthyExecutionNodes()
	if len(healthyNodes) == 0 {
		return nil
	}

	//nolint:gosec // doesn't matter
	return healthyNodes[rand.IntN(len(healthyNodes))]
}

// WaitForHealthyExecutionNode blocks until a node is ready or ctx is done.
func (p *Pool) WaitForHealthyExecutionNode(ctx context.Context) (execution.Node, error) {
	if len(p.executionNodes) == 0 {
		return nil, ErrNoExecutionNodes
	}

	startTime := time.Now()

	p.log.WithField("total_nodes", len(p.executionNodes)).Debug("Waiting for healthy execution node")

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		if node := p.GetHealthyExecutionNode(); node != nil {
			p.log.WithFields(logrus.Fields{
				"node":     node.Name(),
				"duration": time.Since(startTime).Round(time.Millisecond),
			}).Debug("Found healthy execution node")

			return node, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrNoHealthyNode, ctx.Err())
		case <-ticker.C:
		}
	}
}

// CallContract runs eth_call on a healthy node.
func (p *Pool) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	node, err := p.WaitForHealthyExecutionNode(ctx)
	if err != nil {
		return nil, err
	}

	result, err := node.CallContract(ctx, to, data)
	p.metrics.ObserveLookup("eth_call", err)

	return result, err
}

// CodeAt reads deployed code from a healthy node.
func (p *Pool) CodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	node, err := p.WaitForHealthyExecutionNode(ctx)
	if err != nil {
		return nil, err
	}

	code, err := node.CodeAt(ctx, account)
	p.metrics.ObserveLookup("eth_getCode", err)

	return code, err
}

// MarkHealthy records a node as ready.
func (p *Pool) MarkHealthy(node execution.Node) {
	p.mu.Lock()
	p.healthyExecutionNodes[node] = true
	p.mu.Unlock()

	p.UpdateNodeMetrics()
}

func (p *Pool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	g := new(errgroup.Group)

	p.UpdateNodeMetrics()

	for _, node := range p.executionNodes {
		node.OnReady(ctx, func(_ context.Context) error {
			p.MarkHealthy(node)

			return nil
		})

		g.Go(func() error {
			return node.Start(ctx)
		})
	}

	p.wg.Add(1)

	go func() {
		defer p.wg.Done()

		if err := g.Wait(); err != nil && ctx.Err() == nil {
			p.log.WithError(err).Error("error in pool")
		}
	}()

	p.wg.Add(1)

	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.log.WithField(
					"healthy_execution_nodes", fmt.Sprintf("%d/%d", len(p.GetHealthyExecutionNodes()), len(p.executionNodes)),
				).Info("Pool status")
			}
		}
	}()
}

func (p *Pool) UpdateNodeMetrics() {
	healthyExec := len(p.GetHealthyExecutionNodes())
	unhealthyExec := len(p.executionNodes) - healthyExec

	p.metrics.SetNodesTotal(float64(healthyExec), []string{"execution", "healthy"})
	p.metrics.SetNodesTotal(float64(unhealthyExec), []string{"execution", "unhealthy"})
}

// Stop gracefully shuts down the pool.
func (p *Pool) Stop(ctx context.Context) error {
	p.log.Info("Stopping pool")

	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("All pool goroutines stopped gracefully")
	case <-ctx.Done():
		p.log.Warn("Timeout waiting for pool goroutines to stop")
	}

	for _, node := range p.executionNodes {
		if err := node.Stop(ctx); err != nil {
			p.log.WithError(err).Error("Failed to stop execution node")
		}
	}

	return nil
}
