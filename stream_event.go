package anyllm

import (
	"errors"
	"fmt"

	"github.com/chainadapt/anyllm/completion"
	"github.com/chainadapt/anyllm/messages"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	delimJSON    = []byte(`{"type":"delim"}`)
	chunkJSON    = []byte(`{"type":"chunk"}`)
	responseJSON = []byte(`{"type":"response"}`)
	errorJSON    = []byte(`{"type":"error"}`)
)

// StreamEvent is the union of events emitted on a streaming channel:
// Delim marks the stream boundaries, ChunkEvent carries one mapped
// fragment, ResponseEvent carries the folded final result, ErrorEvent a
// terminal failure.
type StreamEvent interface {
	streamEvent()
}

type Delim struct {
	RunID uuid.UUID `json:"run_id"`
	Delim string    `json:"delim"`
}

func (Delim) streamEvent() {}

type ChunkEvent struct {
	RunID     uuid.UUID       `json:"run_id"`
	Chunk     messages.Chunk  `json:"chunk"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (ChunkEvent) streamEvent() {}

type ResponseEvent struct {
	RunID     uuid.UUID       `json:"run_id"`
	Result    ChatResult      `json:"result"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (ResponseEvent) streamEvent() {}

type ErrorEvent struct {
	RunID     uuid.UUID       `json:"run_id"`
	Err       error           `json:"error"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (ErrorEvent) streamEvent() {}

func (e ErrorEvent) Error() string {
	return fmt.Sprintf("run_id: %s, timestamp: %s, error: %v", e.RunID, e.Timestamp, e.Err)
}

// MarshalJSON implements custom JSON marshaling for Delim
func (d Delim) MarshalJSON() ([]byte, error) {
	result := delimJSON

	var err error
	result, err = sjson.SetBytes(result, "run_id", d.RunID.String())
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "delim", d.Delim)
	return result, err
}

// UnmarshalJSON implements custom JSON unmarshaling for Delim
func (d *Delim) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "delim" {
		return fmt.Errorf("missing or invalid type, expected 'delim'")
	}

	runID := gjson.GetBytes(data, "run_id")
	if !runID.Exists() {
		return fmt.Errorf("missing required field 'run_id'")
	}
	if err := d.RunID.UnmarshalText([]byte(runID.String())); err != nil {
		return fmt.Errorf("invalid run_id: %w", err)
	}

	delim := gjson.GetBytes(data, "delim")
	if !delim.Exists() {
		return fmt.Errorf("missing required field 'delim'")
	}
	d.Delim = delim.String()

	return nil
}

// MarshalJSON implements custom JSON marshaling for ChunkEvent
func (c ChunkEvent) MarshalJSON() ([]byte, error) {
	result := chunkJSON

	var err error
	result, err = sjson.SetBytes(result, "run_id", c.RunID.String())
	if err != nil {
		return nil, err
	}

	chunkBytes, err := messages.MarshalChunk(c.Chunk)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chunk: %w", err)
	}
	result, err = sjson.SetRawBytes(result, "chunk", chunkBytes)
	if err != nil {
		return nil, err
	}

	if !c.Timestamp.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", c.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}

	if c.Meta.Exists() {
		result, err = sjson.SetRawBytes(result, "meta", []byte(c.Meta.Raw))
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for ChunkEvent
func (c *ChunkEvent) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "chunk" {
		return fmt.Errorf("missing or invalid type, expected 'chunk'")
	}

	runID := gjson.GetBytes(data, "run_id")
	if !runID.Exists() {
		return fmt.Errorf("missing required field 'run_id'")
	}
	if err := c.RunID.UnmarshalText([]byte(runID.String())); err != nil {
		return fmt.Errorf("invalid run_id: %w", err)
	}

	chunk := gjson.GetBytes(data, "chunk")
	if !chunk.Exists() {
		return fmt.Errorf("missing required field 'chunk'")
	}
	mc, err := messages.UnmarshalChunk([]byte(chunk.Raw))
	if err != nil {
		return fmt.Errorf("invalid chunk: %w", err)
	}
	c.Chunk = mc

	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := c.Timestamp.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}

	if meta := gjson.GetBytes(data, "meta"); meta.Exists() {
		c.Meta = meta
	}

	return nil
}

func marshalResult(r ChatResult) ([]byte, error) {
	result := []byte(`{}`)

	var err error
	if r.Model != "" {
		result, err = sjson.SetBytes(result, "model", r.Model)
		if err != nil {
			return nil, err
		}
	}

	if r.Usage != nil {
		usage, uerr := json.Marshal(r.Usage)
		if uerr != nil {
			return nil, fmt.Errorf("failed to marshal usage: %w", uerr)
		}
		result, err = sjson.SetRawBytes(result, "usage", usage)
		if err != nil {
			return nil, err
		}
	}

	for i, gen := range r.Generations {
		msg, merr := messages.MarshalMessage(gen.Message)
		if merr != nil {
			return nil, fmt.Errorf("failed to marshal generation %d: %w", i, merr)
		}
		result, err = sjson.SetRawBytes(result, fmt.Sprintf("generations.%d.message", i), msg)
		if err != nil {
			return nil, err
		}
		if gen.FinishReason != "" {
			result, err = sjson.SetBytes(result, fmt.Sprintf("generations.%d.finish_reason", i), gen.FinishReason)
			if err != nil {
				return nil, err
			}
		}
	}

	return result, nil
}

func unmarshalResult(data gjson.Result) (ChatResult, error) {
	var r ChatResult

	r.Model = data.Get("model").String()

	if usage := data.Get("usage"); usage.Exists() {
		var u completion.Usage
		if err := json.Unmarshal([]byte(usage.Raw), &u); err != nil {
			return r, fmt.Errorf("invalid usage: %w", err)
		}
		r.Usage = &u
	}

	var err error
	data.Get("generations").ForEach(func(_, gen gjson.Result) bool {
		msg, merr := messages.UnmarshalMessage([]byte(gen.Get("message").Raw))
		if merr != nil {
			err = fmt.Errorf("invalid generation message: %w", merr)
			return false
		}
		r.Generations = append(r.Generations, Generation{
			Message:      msg,
			FinishReason: gen.Get("finish_reason").String(),
		})
		return true
	})

	return r, err
}

// MarshalJSON implements custom JSON marshaling for ResponseEvent
func (r ResponseEvent) MarshalJSON() ([]byte, error) {
	result := responseJSON

	var err error
	result, err = sjson.SetBytes(result, "run_id", r.RunID.String())
	if err != nil {
		return nil, err
	}

	resultBytes, err := marshalResult(r.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	result, err = sjson.SetRawBytes(result, "result", resultBytes)
	if err != nil {
		return nil, err
	}

	if !r.Timestamp.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", r.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}

	if r.Meta.Exists() {
		result, err = sjson.SetRawBytes(result, "meta", []byte(r.Meta.Raw))
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for ResponseEvent
func (r *ResponseEvent) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "response" {
		return fmt.Errorf("missing or invalid type, expected 'response'")
	}

	runID := gjson.GetBytes(data, "run_id")
	if !runID.Exists() {
		return fmt.Errorf("missing required field 'run_id'")
	}
	if err := r.RunID.UnmarshalText([]byte(runID.String())); err != nil {
		return fmt.Errorf("invalid run_id: %w", err)
	}

	res := gjson.GetBytes(data, "result")
	if !res.Exists() {
		return fmt.Errorf("missing required field 'result'")
	}
	result, err := unmarshalResult(res)
	if err != nil {
		return fmt.Errorf("invalid result: %w", err)
	}
	r.Result = result

	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := r.Timestamp.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}

	if meta := gjson.GetBytes(data, "meta"); meta.Exists() {
		r.Meta = meta
	}

	return nil
}

// MarshalJSON implements custom JSON marshaling for ErrorEvent
func (e ErrorEvent) MarshalJSON() ([]byte, error) {
	result := errorJSON

	var err error
	result, err = sjson.SetBytes(result, "run_id", e.RunID.String())
	if err != nil {
		return nil, err
	}

	if e.Err != nil {
		result, err = sjson.SetBytes(result, "error", e.Err.Error())
		if err != nil {
			return nil, err
		}
	}

	if !e.Timestamp.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", e.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}

	if e.Meta.Exists() {
		result, err = sjson.SetRawBytes(result, "meta", []byte(e.Meta.Raw))
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for ErrorEvent
func (e *ErrorEvent) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "error" {
		return fmt.Errorf("missing or invalid type, expected 'error'")
	}

	runID := gjson.GetBytes(data, "run_id")
	if !runID.Exists() {
		return fmt.Errorf("missing required field 'run_id'")
	}
	if err := e.RunID.UnmarshalText([]byte(runID.String())); err != nil {
		return fmt.Errorf("invalid run_id: %w", err)
	}

	errMsg := gjson.GetBytes(data, "error")
	if !errMsg.Exists() {
		return errors.New("missing required field 'error'")
	}
	e.Err = errors.New(errMsg.String())

	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := e.Timestamp.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}

	if meta := gjson.GetBytes(data, "meta"); meta.Exists() {
		e.Meta = meta
	}

	return nil
}
