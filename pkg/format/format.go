// Package format renders decoded call trees as indented plain text.
package format

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/xlab/treeprint"

	"github.com/ethpandaops/structlog-decoder/pkg/decoder"
	"github.com/ethpandaops/structlog-decoder/pkg/nametag"
)

type Options struct {
	// Title is the root line, usually the transaction hash.
	Title string
	// Names labels addresses with resolved names.
	Names nametag.Names
	// ShowGas appends opcode gas cost and call gas used.
	ShowGas bool
	// MaxBytes abbreviates byte strings longer than this many bytes. Zero
	// prints them in full.
	MaxBytes int
}

// Render prints the tree with one line per item.
func Render(tree *decoder.Tree, opts Options) string {
	title := opts.Title
	if title == "" {
		title = "Transaction"
	}

	root := treeprint.NewWithRoot(title)

	f := &formatter{opts: opts}
	f.add(root, tree.Items)

	for _, p := range tree.Problems {
		root.AddNode(fmt.Sprintf("! %s", p.Error()))
	}

	return root.String()
}

type formatter struct {
	opts Options
}

func (f *formatter) add(branch treeprint.Tree, items []*decoder.Item) {
	for _, item := range items {
		line := f.line(item)

		if len(item.Children) == 0 {
			branch.AddNode(line)

			continue
		}

		f.add(branch.AddBranch(line), item.Children)
	}
}

func (f *formatter) line(item *decoder.Item) string {
	var b strings.Builder

	switch p := item.Params.(type) {
	case *decoder.FaultParams:
		fmt.Fprintf(&b, "Faulty %s", item.Opcode)

		if p.Reason != "" {
			fmt.Fprintf(&b, " (%s)", p.Reason)
		}

		return b.String()
	case *decoder.CallParams:
		f.call(&b, item, p)
	case *decoder.LogParams:
		fmt.Fprintf(&b, "EVENT %s", f.address(p.Emitter))

		topics := make([]string, 0, len(p.Topics))
		for _, topic := range p.Topics {
			topics = append(topics, topic.Hex())
		}

		fmt.Fprintf(&b, " topics=[%s] data=%s", strings.Join(topics, ", "), f.bytes(p.Data))
	case *decoder.StorageParams:
		arrow := "=>"
		if item.Opcode == decoder.OpSSTORE {
			arrow = "<="
		}

		fmt.Fprintf(&b, "%s %s %s (%s)", item.Opcode, p.Key.Hex(), arrow, p.Value.Hex())

		if p.Cold {
			b.WriteString(" [cold]")
		}
	case *decoder.MemoryParams:
		arrow := "=>"
		if item.Opcode == decoder.OpMSTORE {
			arrow = "<="
		}

		fmt.Fprintf(&b, "%s %s %s (%s)", item.Opcode, p.Offset.Hex(), arrow, p.Value.Hex())
	case *decoder.HashParams:
		fmt.Fprintf(&b, "SHA3 %s => %s", f.bytes(p.Input), p.Hash.Hex())
	default:
		b.WriteString(item.Opcode.String())
	}

	if f.opts.ShowGas && item.Call() == nil {
		fmt.Fprintf(&b, " (cost: %d)", item.GasCost)
	}

	return b.String()
}

func (f *formatter) call(b *strings.Builder, item *decoder.Item, p *decoder.CallParams) {
	b.WriteString(item.Opcode.String())
	b.WriteByte(' ')

	if p.To != nil {
		b.WriteString(f.address(*p.To))
	} else {
		b.WriteString("<pending>")
	}

	if p.Value != nil && !p.Value.IsZero() {
		fmt.Fprintf(b, " value=%s", p.Value.Dec())
	}

	if p.Salt != nil {
		fmt.Fprintf(b, " salt=%s", p.Salt.Hex())
	}

	if item.Opcode.IsCreate() {
		fmt.Fprintf(b, " initcode=%s", f.bytes(p.Input))
	} else {
		fmt.Fprintf(b, " input=%s", f.bytes(p.Input))
	}

	switch {
	case p.Truncated:
		b.WriteString(" [truncated]")
	case !p.Success:
		fmt.Fprintf(b, " [reverted] => %s", f.bytes(p.Output))
	default:
		fmt.Fprintf(b, " => %s", f.bytes(p.Output))
	}

	if f.opts.ShowGas {
		if p.GasUsed != nil {
			fmt.Fprintf(b, " (gas: %d/%d)", *p.GasUsed, p.GasProvided)
		} else {
			fmt.Fprintf(b, " (gas: ?/%d)", p.GasProvided)
		}
	}
}

func (f *formatter) address(addr common.Address) string {
	if name, ok := f.opts.Names[addr]; ok && name != "" {
		return fmt.Sprintf("%s(%s)", name, addr.Hex())
	}

	return addr.Hex()
}

func (f *formatter) bytes(data []byte) string {
	if f.opts.MaxBytes > 0 && len(data) > f.opts.MaxBytes {
		return fmt.Sprintf("%s…(%d bytes)", hexutil.Encode(data[:f.opts.MaxBytes]), len(data))
	}

	return hexutil.Encode(data)
}
