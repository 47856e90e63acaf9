package orchestrator

import "arc-framework/xrboot/internal/sequencer"

// Status values used in DeliveryResult.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// BootstrapReport is the sequencer result plus the fate of each report
// delivery. It is what the CLI prints and the status API serves.
type BootstrapReport struct {
	Result     sequencer.Result          `json:"result"`
	Deliveries map[string]DeliveryResult `json:"deliveries,omitempty"`
}

// DeliveryResult records whether one reporter accepted the result.
type DeliveryResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "ok", "error"
	Error  string `json:"error,omitempty"`
}

// ProbeResult is returned by RunDeepHealth for each reporter backend.
type ProbeResult struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}
