package execution

// TraceOptions configures debug_traceTransaction parameters.
type TraceOptions struct {
	DisableStorage   bool
	DisableStack     bool
	DisableMemory    bool
	EnableReturnData bool
}

// DecodeTraceOptions returns the options the decoder needs: stack and memory
// snapshots on every step.
func DecodeTraceOptions() TraceOptions {
	return TraceOptions{
		DisableStorage:   true,
		DisableStack:     false,
		DisableMemory:    false,
		EnableReturnData: true,
	}
}

// Params renders the options as the tracer config object. Geth reads
// enableMemory while erigon reads disableMemory, so both are sent.
func (o TraceOptions) Params() map[string]any {
	return map[string]any{
		"disableStorage":   o.DisableStorage,
		"disableStack":     o.DisableStack,
		"enableMemory":     !o.DisableMemory,
		"disableMemory":    o.DisableMemory,
		"enableReturnData": o.EnableReturnData,
	}
}
