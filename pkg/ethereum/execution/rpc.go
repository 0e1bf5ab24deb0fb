package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/0xsequence/ethkit/ethrpc"
	backoff "github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"

	pcommon "github.com/ethpandaops/structlog-decoder/pkg/common"
)

const (
	STATUS_ERROR   = "error"
	STATUS_SUCCESS = "success"
)

var (
	// ErrNotConnected is returned when a request is made before Connect or Start.
	ErrNotConnected = errors.New("execution node is not connected")

	// ErrTransactionNotFound is returned when the node does not know the transaction.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrExecutionReverted is returned when an eth_call reverts.
	ErrExecutionReverted = errors.New("execution reverted")
)

// permanentMessages mark node answers that retrying cannot change.
var permanentMessages = []string{
	"not found",
	"does not exist",
	"execution reverted",
	"invalid argument",
	"unknown method",
}

func isPermanent(err error) bool {
	msg := strings.ToLower(err.Error())

	for _, m := range permanentMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}

	return false
}

// do executes a call built by newCall, retrying transient failures with
// exponential backoff. Every attempt is recorded in the RPC metrics.
func (n *RPCNode) do(ctx context.Context, method string, newCall func() ethrpc.Call) error {
	rpc, err := n.provider()
	if err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = n.config.RetryMaxElapsed

	attempt := 0

	operation := func() error {
		attempt++

		start := time.Now()
		_, err := rpc.Do(ctx, newCall())
		n.observe(method, time.Since(start), err)

		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		if isPermanent(err) {
			return backoff.Permanent(err)
		}

		n.log.WithError(err).WithFields(logrus.Fields{
			"method":  method,
			"attempt": attempt,
		}).Debug("RPC call failed, will retry")

		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	return nil
}

func (n *RPCNode) observe(method string, duration time.Duration, err error) {
	status := STATUS_SUCCESS
	if err != nil {
		status = STATUS_ERROR
	}

	chainID := fmt.Sprintf("%d", n.ChainID())

	pcommon.RPCCallDuration.WithLabelValues(chainID, n.config.Name, method, status).Observe(duration.Seconds())
	pcommon.RPCCallsTotal.WithLabelValues(chainID, n.config.Name, method, status).Inc()
}

// DebugTraceTransaction traces a transaction with the struct logger.
func (n *RPCNode) DebugTraceTransaction(ctx context.Context, hash string, opts TraceOptions) (*TraceTransaction, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, n.config.TraceTimeout)

		defer cancel()
	}

	var rsp TraceTransaction

	err := n.do(ctx, "debug_traceTransaction", func() ethrpc.Call {
		rsp = TraceTransaction{}

		return ethrpc.NewCallBuilder[TraceTransaction]("debug_traceTransaction", nil, hash, opts.Params()).Into(&rsp)
	})
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, fmt.Errorf("%s: %w", hash, ErrTransactionNotFound)
		}

		return nil, err
	}

	if rsp.ReturnValue != nil && *rsp.ReturnValue == "" {
		rsp.ReturnValue = nil
	}

	if rsp.Structlogs == nil {
		// Plain transfers execute no code.
		rsp.Structlogs = []StructLog{}
	}

	return &rsp, nil
}

// TransactionByHash fetches a transaction envelope.
func (n *RPCNode) TransactionByHash(ctx context.Context, hash string) (*Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, n.config.CallTimeout)
	defer cancel()

	var rsp *Transaction

	err := n.do(ctx, "eth_getTransactionByHash", func() ethrpc.Call {
		rsp = nil

		return ethrpc.NewCallBuilder[*Transaction]("eth_getTransactionByHash", nil, hash).Into(&rsp)
	})
	if err != nil {
		return nil, err
	}

	if rsp == nil {
		return nil, fmt.Errorf("%s: %w", hash, ErrTransactionNotFound)
	}

	return rsp, nil
}

// CallContract runs eth_call against the latest block.
func (n *RPCNode) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, n.config.CallTimeout)
	defer cancel()

	msg := map[string]any{
		"to":   to.Hex(),
		"data": hexutil.Encode(data),
	}

	var result string

	err := n.do(ctx, "eth_call", func() ethrpc.Call {
		return ethrpc.NewCallBuilder[string]("eth_call", nil, msg, "latest").Into(&result)
	})
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "execution reverted") {
			return nil, fmt.Errorf("%s: %w", to.Hex(), ErrExecutionReverted)
		}

		return nil, err
	}

	out, err := hexutil.Decode(result)
	if err != nil {
		return nil, fmt.Errorf("eth_call returned invalid data %q: %w", result, err)
	}

	return out, nil
}

// CodeAt returns the code deployed at account.
func (n *RPCNode) CodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, n.config.CallTimeout)
	defer cancel()

	var result string

	err := n.do(ctx, "eth_getCode", func() ethrpc.Call {
		return ethrpc.NewCallBuilder[string]("eth_getCode", nil, account.Hex(), "latest").Into(&result)
	})
	if err != nil {
		return nil, err
	}

	out, err := hexutil.Decode(result)
	if err != nil {
		return nil, fmt.Errorf("eth_getCode returned invalid data %q: %w", result, err)
	}

	return out, nil
}
