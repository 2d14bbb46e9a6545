package event

import "github.com/nbkit/nbkit/pkg/types"

// SessionStartedData is the data for session.started events.
type SessionStartedData struct {
	Session *types.Session `json:"session"`
}

// KernelStatusData is the data for kernel.status events.
type KernelStatusData struct {
	ExecutionState string `json:"executionState"`
}

// ConnectionStatusData is the data for connection.status events.
type ConnectionStatusData struct {
	Status string `json:"status"` // "connected" | "disconnected"
}

// CellUpdatedData is the data for cell.updated events.
type CellUpdatedData struct {
	CellID string `json:"cellID"`
}

// DocumentUpdatedData is the data for document.updated events.
type DocumentUpdatedData struct {
	Path string `json:"path"`
}

// DocumentSavedData is the data for document.saved events.
type DocumentSavedData struct {
	Path string `json:"path"`
}

// StdinRequestedData is the data for stdin.requested events.
type StdinRequestedData struct {
	CellID string `json:"cellID"`
	Prompt string `json:"prompt"`
}

// InspectResultData is the data for inspect.result events.
type InspectResultData struct {
	Text string `json:"text"`
}
