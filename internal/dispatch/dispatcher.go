// Package dispatch routes inbound kernel messages onto the notebook document.
// Every message is keyed by parent_header.msg_id, which for execute traffic
// is the id of the originating cell.
package dispatch

import (
	"encoding/json"
	"regexp"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nbkit/nbkit/internal/document"
	"github.com/nbkit/nbkit/internal/event"
	"github.com/nbkit/nbkit/internal/logging"
	"github.com/nbkit/nbkit/pkg/types"
)

// ansiPattern matches terminal color and control escape sequences, which are
// stripped from stream text before it reaches the document.
var ansiPattern = regexp.MustCompile("\x1b\\[[0-9;?]*[a-zA-Z]")

// Prompt is a pending stdin request from the kernel, kept so the reply can
// echo the request header back for correlation.
type Prompt struct {
	CellID string
	Parent types.Header
	Prompt string
}

// Dispatcher reduces the inbound message stream onto the document store.
// Messages whose correlation id matches no existing cell are dropped: the
// originating cell may have been deleted after the request went out, which
// is defined, non-fatal behavior.
type Dispatcher struct {
	doc *document.Store
	bus *event.Bus
	log zerolog.Logger

	mu           sync.RWMutex
	kernelStatus string
	inspectText  string
	prompt       *Prompt
}

// New creates a dispatcher over a document store.
func New(doc *document.Store, bus *event.Bus) *Dispatcher {
	return &Dispatcher{
		doc: doc,
		bus: bus,
		log: logging.ForComponent("dispatch"),
	}
}

// Dispatch routes one inbound message by its msg_type. Cell mutations go
// through the store's atomic update, so each handler transforms a copy of
// the current cell state and swaps it in whole.
func (d *Dispatcher) Dispatch(msg *types.Message) {
	switch msg.Header.MsgType {
	case types.MsgTypeStatus:
		d.handleStatus(msg)
	case types.MsgTypeExecuteInput:
		d.handleExecuteInput(msg)
	case types.MsgTypeStream:
		d.handleStream(msg)
	case types.MsgTypeExecuteResult:
		d.handleExecuteResult(msg)
	case types.MsgTypeDisplayData:
		d.handleDisplayData(msg)
	case types.MsgTypeError:
		d.handleError(msg)
	case types.MsgTypeInputRequest:
		d.handleInputRequest(msg)
	case types.MsgTypeInspectReply:
		d.handleInspectReply(msg)
	default:
		d.log.Debug().Str("msg_type", msg.Header.MsgType).Msg("ignoring message type")
	}
}

// KernelStatus returns the last reported kernel execution state.
func (d *Dispatcher) KernelStatus() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.kernelStatus
}

// InspectText returns the most recent inspect documentation text.
func (d *Dispatcher) InspectText() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.inspectText
}

// PendingPrompt returns the open stdin prompt, if any.
func (d *Dispatcher) PendingPrompt() (Prompt, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.prompt == nil {
		return Prompt{}, false
	}
	return *d.prompt, true
}

// ClearPrompt closes the stdin prompt state once a reply has been sent.
func (d *Dispatcher) ClearPrompt() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prompt = nil
}

func (d *Dispatcher) handleStatus(msg *types.Message) {
	var content types.StatusContent
	if !d.decode(msg, &content) {
		return
	}
	d.mu.Lock()
	d.kernelStatus = content.ExecutionState
	d.mu.Unlock()

	d.bus.Publish(event.Event{
		Type: event.KernelStatus,
		Data: event.KernelStatusData{ExecutionState: content.ExecutionState},
	})
}

func (d *Dispatcher) handleExecuteInput(msg *types.Message) {
	var content types.ExecuteInputContent
	if !d.decode(msg, &content) {
		return
	}
	d.update(msg, func(cell types.Cell) types.Cell {
		cell.ExecutionCount = types.ExecutionCount{N: content.ExecutionCount}
		return cell
	})
}

// handleStream appends stream text to the cell's single text output,
// creating it if absent. Text concatenates, never replaces.
func (d *Dispatcher) handleStream(msg *types.Message) {
	var content types.StreamContent
	if !d.decode(msg, &content) {
		return
	}
	text := ansiPattern.ReplaceAllString(content.Text, "")
	d.update(msg, func(cell types.Cell) types.Cell {
		for _, out := range cell.Outputs {
			if stream, ok := out.(*types.StreamOutput); ok {
				stream.Text += text
				return cell
			}
		}
		cell.Outputs = append(cell.Outputs, types.NewStreamOutput(content.Name, text))
		return cell
	})
}

// handleExecuteResult sets or replaces the cell's structured-data output.
// Stream output accumulated so far stays in place.
func (d *Dispatcher) handleExecuteResult(msg *types.Message) {
	var content types.ExecuteResultContent
	if !d.decode(msg, &content) {
		return
	}
	d.update(msg, func(cell types.Cell) types.Cell {
		result := types.NewDataOutput(types.MsgTypeExecuteResult, content.Data)
		for i, out := range cell.Outputs {
			if _, ok := out.(*types.DataOutput); ok {
				cell.Outputs[i] = result
				return cell
			}
		}
		cell.Outputs = append(cell.Outputs, result)
		return cell
	})
}

// handleDisplayData replaces the cell's outputs with a single structured-data
// output.
func (d *Dispatcher) handleDisplayData(msg *types.Message) {
	var content types.DisplayDataContent
	if !d.decode(msg, &content) {
		return
	}
	d.update(msg, func(cell types.Cell) types.Cell {
		cell.Outputs = []types.Output{types.NewDataOutput(types.MsgTypeDisplayData, content.Data)}
		return cell
	})
}

// handleError replaces the cell's outputs with a single error output.
func (d *Dispatcher) handleError(msg *types.Message) {
	var content types.ErrorContent
	if !d.decode(msg, &content) {
		return
	}
	d.update(msg, func(cell types.Cell) types.Cell {
		cell.Outputs = []types.Output{types.NewErrorOutput(content.EName, content.EValue, content.Traceback)}
		return cell
	})
}

// handleInputRequest opens the stdin-prompt state, keeping the request
// header so the eventual reply can correlate.
func (d *Dispatcher) handleInputRequest(msg *types.Message) {
	var content types.InputRequestContent
	if !d.decode(msg, &content) {
		return
	}
	cellID := msg.ParentHeader.MsgID
	if _, ok := d.doc.CellByID(cellID); !ok {
		d.drop(msg)
		return
	}

	d.mu.Lock()
	d.prompt = &Prompt{CellID: cellID, Parent: msg.Header, Prompt: content.Prompt}
	d.mu.Unlock()

	d.bus.Publish(event.Event{
		Type: event.StdinRequested,
		Data: event.StdinRequestedData{CellID: cellID, Prompt: content.Prompt},
	})
}

// handleInspectReply stores the plain-text documentation for display.
func (d *Dispatcher) handleInspectReply(msg *types.Message) {
	var content types.InspectReplyContent
	if !d.decode(msg, &content) {
		return
	}
	text, _ := content.Data["text/plain"].(string)

	d.mu.Lock()
	d.inspectText = text
	d.mu.Unlock()

	d.bus.Publish(event.Event{
		Type: event.InspectResult,
		Data: event.InspectResultData{Text: text},
	})
}

// update applies a cell transformation keyed by the message's correlation id.
func (d *Dispatcher) update(msg *types.Message, fn func(types.Cell) types.Cell) {
	if !d.doc.Update(msg.ParentHeader.MsgID, fn) {
		d.drop(msg)
	}
}

// decode unmarshals the message content; undecodable content is dropped with
// a diagnostic, never propagated.
func (d *Dispatcher) decode(msg *types.Message, out any) bool {
	if err := json.Unmarshal(msg.Content, out); err != nil {
		d.log.Warn().
			Err(err).
			Str("msg_type", msg.Header.MsgType).
			Msg("dropping message with undecodable content")
		return false
	}
	return true
}

func (d *Dispatcher) drop(msg *types.Message) {
	d.log.Debug().
		Str("msg_type", msg.Header.MsgType).
		Str("parent_msg_id", msg.ParentHeader.MsgID).
		Msg("no cell for correlation id, dropping")
}
