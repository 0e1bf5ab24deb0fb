package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/structlog-decoder/pkg/config"
	"github.com/ethpandaops/structlog-decoder/pkg/ethereum"
	"github.com/ethpandaops/structlog-decoder/pkg/ethereum/execution"
	"github.com/ethpandaops/structlog-decoder/pkg/format"
	"github.com/ethpandaops/structlog-decoder/pkg/nametag"
	"github.com/ethpandaops/structlog-decoder/pkg/tracer"
)

// outputFlags are shared by decode and trace.
type outputFlags struct {
	output   string
	gas      bool
	maxBytes int
}

func (f *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "text", "output format: text or json")
	cmd.Flags().BoolVar(&f.gas, "gas", false, "show opcode gas cost and call gas used")
	cmd.Flags().IntVar(&f.maxBytes, "max-bytes", 0, "abbreviate byte strings longer than this (0 prints all)")
}

func (f *outputFlags) write(w io.Writer, result *tracer.Result) error {
	switch f.output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(result)
	case "text":
		_, err := io.WriteString(w, format.Render(result.Tree, format.Options{
			Title:    result.Hash,
			Names:    result.Names,
			ShowGas:  f.gas,
			MaxBytes: f.maxBytes,
		}))

		return err
	default:
		return fmt.Errorf("unknown output format %q", f.output)
	}
}

var (
	decodeOutput outputFlags
	decodeRoot   string
)

var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Decodes a struct log file.",
	Long: `Decodes a struct log document, either a bare array of steps or a
debug_traceTransaction result. Reads stdin when no file or "-" is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig()
		if err != nil {
			return err
		}

		var root common.Address

		if decodeRoot != "" {
			if !common.IsHexAddress(decodeRoot) {
				return fmt.Errorf("invalid root address %q", decodeRoot)
			}

			root = common.HexToAddress(decodeRoot)
		}

		data, err := readInput(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}

		trace, err := execution.ParseStructLogs(data)
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		svc, cleanup, err := newTracer(ctx, conf)
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := svc.Decode(ctx, trace, root)
		if err != nil {
			return err
		}

		return decodeOutput.write(cmd.OutOrStdout(), result)
	},
}

func init() {
	decodeOutput.register(decodeCmd)
	decodeCmd.Flags().StringVar(&decodeRoot, "root", "", "address executing the outermost frame")

	rootCmd.AddCommand(decodeCmd)
}

func readInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(stdin)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	return data, nil
}

// newTracer wires a tracer from config. When execution nodes are configured
// the pool is started and used for traces and contract name lookups. The
// returned cleanup saves the name cache and stops the pool.
func newTracer(ctx context.Context, conf *config.Config) (*tracer.Service, func(), error) {
	pool := ethereum.NewPool(log.WithField("component", "ethereum"), namespace, &conf.Ethereum)

	var (
		caller nametag.ChainCaller
		nodes  tracer.NodeSource
	)

	if pool.HasExecutionNodes() {
		pool.Start(ctx)

		caller = pool
		nodes = pool
	}

	// The CLI shares the name cache file with the server but not redis.
	if conf.NameTags.Store == nametag.StoreRedis {
		conf.NameTags.Store = nametag.StoreNone
	}

	resolver, cache, err := nametag.Setup(log, &conf.NameTags, caller, nil, "")
	if err != nil {
		return nil, nil, err
	}

	if err := cache.Load(ctx); err != nil {
		log.WithError(err).Warn("Failed to load name cache")
	}

	svc, err := tracer.New(log, &conf.Decoder, nodes, resolver, conf.NameTags.Concurrency)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := cache.Save(context.Background()); err != nil {
			log.WithError(err).Warn("Failed to save name cache")
		}

		if pool.HasExecutionNodes() {
			_ = pool.Stop(context.Background())
		}
	}

	return svc, cleanup, nil
}
