// Package exec translates user intents into outgoing kernel messages.
package exec

import (
	"github.com/rs/zerolog"

	"github.com/nbkit/nbkit/internal/codec"
	"github.com/nbkit/nbkit/internal/dispatch"
	"github.com/nbkit/nbkit/internal/document"
	"github.com/nbkit/nbkit/internal/logging"
	"github.com/nbkit/nbkit/internal/session"
	"github.com/nbkit/nbkit/internal/transport"
	"github.com/nbkit/nbkit/pkg/types"
)

// Controller submits execution requests, stdin replies, and inspect requests
// for the open notebook. Requests sent without an active session are
// silently suppressed; the worst case anywhere in this path is a cell left
// showing its running indicator.
type Controller struct {
	sessions   *session.Manager
	transport  *transport.Manager
	doc        *document.Store
	dispatcher *dispatch.Dispatcher
	username   string
	log        zerolog.Logger
}

// NewController wires a controller over the session, transport, and document
// components.
func NewController(
	sessions *session.Manager,
	tm *transport.Manager,
	doc *document.Store,
	dispatcher *dispatch.Dispatcher,
	username string,
) *Controller {
	return &Controller{
		sessions:   sessions,
		transport:  tm,
		doc:        doc,
		dispatcher: dispatcher,
		username:   username,
		log:        logging.ForComponent("exec"),
	}
}

// SubmitCell sends an execute_request for a cell. The cell is marked running
// and its prior outputs cleared before the request goes out; source is the
// editor's current text for the cell and replaces what the document holds.
func (c *Controller) SubmitCell(source, cellID string) error {
	sess, ok := c.sessions.Current()
	if !ok {
		c.log.Debug().Str("cell_id", cellID).Msg("no active session, suppressing execute")
		return nil
	}

	c.doc.Update(cellID, func(cell types.Cell) types.Cell {
		cell.Source = source
		cell.ExecutionCount = types.ExecutionCount{Running: true}
		cell.Outputs = nil
		return cell
	})

	msg, err := codec.New(sess.ID, c.username).ExecuteRequest(cellID, source)
	if err != nil {
		return err
	}
	return c.transport.Send(msg)
}

// SubmitPrompt answers a pending stdin prompt. The prompt's request header
// is echoed back as the reply's parent; the cell's outputs are cleared.
func (c *Controller) SubmitPrompt(cellID string, parent types.Header, value string) error {
	sess, ok := c.sessions.Current()
	if !ok {
		c.log.Debug().Str("cell_id", cellID).Msg("no active session, suppressing input reply")
		return nil
	}

	c.doc.Update(cellID, func(cell types.Cell) types.Cell {
		cell.Outputs = nil
		return cell
	})

	msg, err := codec.New(sess.ID, c.username).InputReply(cellID, parent, value)
	if err != nil {
		return err
	}
	if err := c.transport.Send(msg); err != nil {
		return err
	}
	c.dispatcher.ClearPrompt()
	return nil
}

// SubmitInspect requests documentation for the source at a cursor position.
// Cell state is untouched; the reply lands in the shared inspect field.
func (c *Controller) SubmitInspect(source string, cursorPos int) error {
	sess, ok := c.sessions.Current()
	if !ok {
		c.log.Debug().Msg("no active session, suppressing inspect")
		return nil
	}

	msg, err := codec.New(sess.ID, c.username).InspectRequest(source, cursorPos)
	if err != nil {
		return err
	}
	return c.transport.Send(msg)
}
