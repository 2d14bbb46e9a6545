package types

import (
	"encoding/json"
	"fmt"
)

// Output is a tagged variant over the result kinds a kernel can emit for a
// cell: stream text, structured mime-mapped data, or an error.
type Output interface {
	OutputType() string
}

// StreamOutput holds accumulated stdout or stderr text. A cell has at most
// one; stream messages concatenate onto it.
type StreamOutput struct {
	Type string `json:"output_type"` // always "stream"
	Name string `json:"name"`        // "stdout" | "stderr"
	Text string `json:"text"`
}

func (o *StreamOutput) OutputType() string { return "stream" }

// NewStreamOutput creates a stream output for the given stream name.
func NewStreamOutput(name, text string) *StreamOutput {
	return &StreamOutput{Type: "stream", Name: name, Text: text}
}

// DataOutput holds a mime-type-keyed map of representations, produced by
// execute_result and display_data messages.
type DataOutput struct {
	Type     string         `json:"output_type"` // "execute_result" | "display_data"
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (o *DataOutput) OutputType() string { return o.Type }

// NewDataOutput creates a structured-data output of the given output type.
func NewDataOutput(outputType string, data map[string]any) *DataOutput {
	return &DataOutput{Type: outputType, Data: data}
}

// ErrorOutput holds an execution error reported by the kernel.
type ErrorOutput struct {
	Type      string   `json:"output_type"` // always "error"
	EName     string   `json:"ename"`
	EValue    string   `json:"evalue"`
	Traceback []string `json:"traceback"`
}

func (o *ErrorOutput) OutputType() string { return "error" }

// NewErrorOutput creates an error output.
func NewErrorOutput(ename, evalue string, traceback []string) *ErrorOutput {
	return &ErrorOutput{Type: "error", EName: ename, EValue: evalue, Traceback: traceback}
}

// UnmarshalOutput unmarshals a JSON output into the appropriate variant.
func UnmarshalOutput(data []byte) (Output, error) {
	var tag struct {
		Type string `json:"output_type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}

	switch tag.Type {
	case "stream":
		var o StreamOutput
		if err := json.Unmarshal(data, &o); err != nil {
			return nil, err
		}
		return &o, nil
	case "execute_result", "display_data":
		var o DataOutput
		if err := json.Unmarshal(data, &o); err != nil {
			return nil, err
		}
		return &o, nil
	case "error":
		var o ErrorOutput
		if err := json.Unmarshal(data, &o); err != nil {
			return nil, err
		}
		return &o, nil
	default:
		return nil, fmt.Errorf("unknown output_type %q", tag.Type)
	}
}

// CloneOutputs deep-copies an output list so document snapshots never share
// mutable state with live cells.
func CloneOutputs(outputs []Output) []Output {
	if outputs == nil {
		return nil
	}
	clones := make([]Output, len(outputs))
	for i, out := range outputs {
		switch o := out.(type) {
		case *StreamOutput:
			c := *o
			clones[i] = &c
		case *DataOutput:
			c := *o
			c.Data = cloneMap(o.Data)
			c.Metadata = cloneMap(o.Metadata)
			clones[i] = &c
		case *ErrorOutput:
			c := *o
			c.Traceback = append([]string(nil), o.Traceback...)
			clones[i] = &c
		default:
			clones[i] = out
		}
	}
	return clones
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
