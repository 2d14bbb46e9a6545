// Package codec builds and parses kernel protocol envelopes. Construction and
// parsing are pure; no connection state lives here.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nbkit/nbkit/pkg/types"
)

var (
	// ErrMalformedMessage is returned when an inbound frame is not a valid
	// protocol message. Callers drop the frame; one bad frame must never
	// terminate the dispatch loop.
	ErrMalformedMessage = errors.New("malformed message")
)

// Codec stamps outgoing envelopes for one session.
type Codec struct {
	sessionID string
	username  string
}

// New creates a codec bound to a session id and username.
func New(sessionID, username string) *Codec {
	return &Codec{sessionID: sessionID, username: username}
}

// header builds a fresh header. The timestamp is regenerated per message,
// never cached.
func (c *Codec) header(msgID, msgType string) types.Header {
	return types.Header{
		MsgID:    msgID,
		Session:  c.sessionID,
		Username: c.username,
		Date:     time.Now().UTC().Format(time.RFC3339Nano),
		MsgType:  msgType,
		Version:  types.ProtocolVersion,
	}
}

// ExecuteRequest builds an execute_request for a cell's source. The message
// id is the cell id itself: replies carry it back in parent_header.msg_id and
// that is the correlation key the dispatcher routes on.
func (c *Codec) ExecuteRequest(cellID, source string) (*types.Message, error) {
	content, err := json.Marshal(types.ExecuteRequestContent{
		Silent:          false,
		StoreHistory:    true,
		UserExpressions: map[string]any{},
		AllowStdin:      true,
		StopOnError:     true,
		Code:            source,
	})
	if err != nil {
		return nil, err
	}
	return &types.Message{
		Header:   c.header(cellID, types.MsgTypeExecuteRequest),
		Metadata: map[string]any{},
		Content:  content,
		Buffers:  []any{},
		Channel:  types.ChannelShell,
	}, nil
}

// InputReply builds an input_reply answering a kernel stdin prompt. The
// prompt's request header is echoed back as the parent header.
func (c *Codec) InputReply(cellID string, parent types.Header, value string) (*types.Message, error) {
	content, err := json.Marshal(types.InputReplyContent{Value: value})
	if err != nil {
		return nil, err
	}
	return &types.Message{
		Header:       c.header(cellID, types.MsgTypeInputReply),
		ParentHeader: parent,
		Metadata:     map[string]any{},
		Content:      content,
		Buffers:      []any{},
		Channel:      types.ChannelStdin,
	}, nil
}

// InspectRequest builds an inspect_request for documentation at a cursor
// position. Inspect replies are not cell-correlated, so the message gets a
// fresh random id.
func (c *Codec) InspectRequest(source string, cursorPos int) (*types.Message, error) {
	content, err := json.Marshal(types.InspectRequestContent{
		Code:        source,
		CursorPos:   cursorPos,
		DetailLevel: 0,
	})
	if err != nil {
		return nil, err
	}
	return &types.Message{
		Header:   c.header(uuid.NewString(), types.MsgTypeInspectRequest),
		Metadata: map[string]any{},
		Content:  content,
		Buffers:  []any{},
		Channel:  types.ChannelShell,
	}, nil
}

// ParseInbound parses a raw frame into a protocol message.
func ParseInbound(rawFrame []byte) (*types.Message, error) {
	var msg types.Message
	if err := json.Unmarshal(rawFrame, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.Header.MsgType == "" {
		return nil, fmt.Errorf("%w: missing msg_type", ErrMalformedMessage)
	}
	return &msg, nil
}
