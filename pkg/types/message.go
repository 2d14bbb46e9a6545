package types

import "encoding/json"

// ProtocolVersion is the kernel messaging protocol version spoken by this client.
const ProtocolVersion = "5.2"

// Channels multiplexed over the single duplex connection.
const (
	ChannelShell = "shell"
	ChannelIOPub = "iopub"
	ChannelStdin = "stdin"
)

// Message types routed by the dispatcher.
const (
	MsgTypeExecuteRequest = "execute_request"
	MsgTypeExecuteInput   = "execute_input"
	MsgTypeExecuteResult  = "execute_result"
	MsgTypeDisplayData    = "display_data"
	MsgTypeStream         = "stream"
	MsgTypeStatus         = "status"
	MsgTypeError          = "error"
	MsgTypeInputRequest   = "input_request"
	MsgTypeInputReply     = "input_reply"
	MsgTypeInspectRequest = "inspect_request"
	MsgTypeInspectReply   = "inspect_reply"
)

// Header identifies a protocol message. For replies, the request's header is
// echoed back as the parent header; its msg_id is the correlation id.
type Header struct {
	MsgID    string `json:"msg_id,omitempty"`
	Session  string `json:"session,omitempty"`
	Username string `json:"username,omitempty"`
	Date     string `json:"date,omitempty"`
	MsgType  string `json:"msg_type,omitempty"`
	Version  string `json:"version,omitempty"`
}

// Message is a protocol envelope as exchanged over the channel connection.
// Content stays raw until the dispatcher decodes it by msg_type.
type Message struct {
	Header       Header          `json:"header"`
	ParentHeader Header          `json:"parent_header"`
	Metadata     map[string]any  `json:"metadata"`
	Content      json.RawMessage `json:"content"`
	Buffers      []any           `json:"buffers"`
	Channel      string          `json:"channel,omitempty"`
}

// ExecuteRequestContent asks the kernel to run a block of code.
type ExecuteRequestContent struct {
	Silent          bool           `json:"silent"`
	StoreHistory    bool           `json:"store_history"`
	UserExpressions map[string]any `json:"user_expressions"`
	AllowStdin      bool           `json:"allow_stdin"`
	StopOnError     bool           `json:"stop_on_error"`
	Code            string         `json:"code"`
}

// InputReplyContent answers a kernel stdin prompt.
type InputReplyContent struct {
	Value string `json:"value"`
}

// InspectRequestContent asks for documentation at a cursor position.
type InspectRequestContent struct {
	Code        string `json:"code"`
	CursorPos   int    `json:"cursor_pos"`
	DetailLevel int    `json:"detail_level"`
}

// StatusContent reports the kernel execution state (busy, idle, starting).
type StatusContent struct {
	ExecutionState string `json:"execution_state"`
}

// ExecuteInputContent echoes accepted code with its execution counter.
type ExecuteInputContent struct {
	Code           string `json:"code"`
	ExecutionCount int    `json:"execution_count"`
}

// StreamContent carries a chunk of stdout or stderr text.
type StreamContent struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// ExecuteResultContent carries the mime-mapped value of an execution.
type ExecuteResultContent struct {
	Data           map[string]any `json:"data"`
	Metadata       map[string]any `json:"metadata"`
	ExecutionCount int            `json:"execution_count"`
}

// DisplayDataContent carries mime-mapped data shown by display calls.
type DisplayDataContent struct {
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata"`
}

// ErrorContent describes an execution error.
type ErrorContent struct {
	EName     string   `json:"ename"`
	EValue    string   `json:"evalue"`
	Traceback []string `json:"traceback"`
}

// InputRequestContent is the kernel asking for a line of user input.
type InputRequestContent struct {
	Prompt   string `json:"prompt"`
	Password bool   `json:"password"`
}

// InspectReplyContent carries documentation for an inspect request.
type InspectReplyContent struct {
	Status string         `json:"status"`
	Found  bool           `json:"found"`
	Data   map[string]any `json:"data"`
}
