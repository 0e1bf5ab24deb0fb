package execution

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/0xsequence/ethkit/ethrpc"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/structlog-decoder/internal/version"
	"github.com/ethpandaops/structlog-decoder/pkg/ethereum/execution/services"
)

// Compile-time check that RPCNode implements Node.
var _ Node = (*RPCNode)(nil)

// headerTransport adds custom headers to requests and respects context cancellation
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", version.UserAgent())

	for key, value := range t.headers {
		req.Header.Set(key, value)
	}

	if req.Context().Err() != nil {
		return nil, req.Context().Err()
	}

	return t.base.RoundTrip(req)
}

// RPCNode implements Node over JSON-RPC.
type RPCNode struct {
	config *Config
	log    logrus.FieldLogger
	rpc    *ethrpc.Provider

	metadata *services.MetadataService

	onReadyCallbacks []func(ctx context.Context) error

	mu sync.RWMutex
}

func NewRPCNode(log logrus.FieldLogger, conf *Config) *RPCNode {
	return &RPCNode{
		config: conf,
		log:    log.WithFields(logrus.Fields{"type": "execution", "source": conf.Name}),
	}
}

func (n *RPCNode) OnReady(_ context.Context, callback func(ctx context.Context) error) {
	n.onReadyCallbacks = append(n.onReadyCallbacks, callback)
}

// Connect creates the RPC provider without starting background services.
// One-shot commands use it instead of Start.
func (n *RPCNode) Connect() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.rpc != nil {
		return nil
	}

	httpClient := http.Client{
		// Request lifetime is controlled by the context.
		Transport: &headerTransport{
			headers: n.config.NodeHeaders,
			base: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}

	rpc, err := ethrpc.NewProvider(n.config.NodeAddress, ethrpc.WithHTTPClient(&httpClient))
	if err != nil {
		n.log.WithError(err).Error("Failed to create RPC provider")

		return fmt.Errorf("failed to create RPC provider for %s: %w", n.config.NodeAddress, err)
	}

	n.rpc = rpc
	n.metadata = services.NewMetadataService(n.log, rpc)

	return nil
}

func (n *RPCNode) Start(ctx context.Context) error {
	n.log.Info("Starting execution node")

	if err := n.Connect(); err != nil {
		return err
	}

	n.metadata.OnReady(ctx, func(ctx context.Context) error {
		n.log.WithField("client_type", n.metadata.Client()).Info("Detected execution client type")

		for _, callback := range n.onReadyCallbacks {
			callbackCtx, callbackCancel := context.WithTimeout(ctx, 10*time.Second)

			if err := callback(callbackCtx); err != nil {
				n.log.WithError(err).Error("Failed to run on ready callback")
			}

			callbackCancel()
		}

		return nil
	})

	if err := n.metadata.Start(ctx); err != nil {
		return fmt.Errorf("failed to start metadata service: %w", err)
	}

	return nil
}

func (n *RPCNode) Stop(ctx context.Context) error {
	n.log.Info("Stopping execution node")

	n.mu.RLock()
	metadata := n.metadata
	n.mu.RUnlock()

	if metadata != nil {
		if err := metadata.Stop(ctx); err != nil {
			n.log.WithError(err).WithField("service", metadata.Name()).Error("Failed to stop service")
		}
	}

	return nil
}

func (n *RPCNode) provider() (*ethrpc.Provider, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.rpc == nil {
		return nil, ErrNotConnected
	}

	return n.rpc, nil
}

func (n *RPCNode) ChainID() int32 {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.metadata == nil {
		return 0
	}

	return n.metadata.ChainID()
}

func (n *RPCNode) ClientType() string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.metadata == nil {
		return ""
	}

	return n.metadata.ClientVersion()
}

func (n *RPCNode) Name() string {
	return n.config.Name
}
