package execution

// SanitizeGasCost clamps a corrupted gasCost.
//
// Erigon underflows `availableGas - base` in callGas() when availableGas < base,
// which surfaces as values such as 18158513697557845033. A step can never cost
// more than the gas available to it, so gasCost > gas is treated as corrupt and
// replaced by gas.
func SanitizeGasCost(log *StructLog) bool {
	if log.GasCost > log.Gas {
		log.GasCost = log.Gas

		return true
	}

	return false
}

// SanitizeStructLogs applies SanitizeGasCost to every step and returns how many
// steps were corrected.
func SanitizeStructLogs(logs []StructLog) int {
	corrected := 0

	for i := range logs {
		if SanitizeGasCost(&logs[i]) {
			corrected++
		}
	}

	return corrected
}
