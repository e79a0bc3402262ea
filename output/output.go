package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"unicode/utf8"
)

// StatusHalted is the status a VM reports when execution completed normally.
const StatusHalted = "VM halted"

// ErrMalformed signals that a VM's output could not be decoded into an ExecutionResult.
var ErrMalformed = errors.New("output: malformed execution result")

// ExecutionResult is the outcome one VM reports for one input.
// The json tags follow the harness output contract so a result can be written back verbatim.
type ExecutionResult struct {
	Status          string      `json:"status"`
	ErrorMessage    string      `json:"errmsg"`
	LastOpcode      uint8       `json:"lastop"`
	EvaluationStack []StackItem `json:"estack"`
}

// StackItem is one entry of the evaluation stack. Value keeps whatever the VM emitted;
// numbers stay json.Number so large integers compare exactly.
type StackItem struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// Halted reports whether the VM completed normally.
func (r *ExecutionResult) Halted() bool {
	return r != nil && r.Status == StatusHalted
}

type rawResult struct {
	Status *string    `json:"status"`
	Errmsg *string    `json:"errmsg"`
	Lastop *uint8     `json:"lastop"`
	Estack *[]rawItem `json:"estack"`
}

type rawItem struct {
	Type  *string         `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Parse decodes raw VM output. Anything that is not a complete, well-typed result yields nil.
func Parse(raw []byte) *ExecutionResult {
	res, err := ParseErr(raw)
	if err != nil {
		return nil
	}
	return res
}

// ParseErr is Parse but reports why the output was rejected.
func ParseErr(raw []byte) (*ExecutionResult, error) {
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: invalid UTF-8", ErrMalformed)
	}
	var rr rawResult
	if err := decodeStrict(raw, &rr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch {
	case rr.Status == nil:
		return nil, fmt.Errorf("%w: missing status", ErrMalformed)
	case rr.Errmsg == nil:
		return nil, fmt.Errorf("%w: missing errmsg", ErrMalformed)
	case rr.Lastop == nil:
		return nil, fmt.Errorf("%w: missing lastop", ErrMalformed)
	case rr.Estack == nil:
		return nil, fmt.Errorf("%w: missing estack", ErrMalformed)
	}

	stack := make([]StackItem, 0, len(*rr.Estack))
	for i, item := range *rr.Estack {
		if item.Type == nil {
			return nil, fmt.Errorf("%w: estack[%d] missing type", ErrMalformed, i)
		}
		if item.Value == nil {
			return nil, fmt.Errorf("%w: estack[%d] missing value", ErrMalformed, i)
		}
		var v interface{}
		if err := decodeStrict(item.Value, &v); err != nil {
			return nil, fmt.Errorf("%w: estack[%d] value: %v", ErrMalformed, i, err)
		}
		stack = append(stack, StackItem{Type: *item.Type, Value: v})
	}

	return &ExecutionResult{
		Status:          *rr.Status,
		ErrorMessage:    *rr.Errmsg,
		LastOpcode:      *rr.Lastop,
		EvaluationStack: stack,
	}, nil
}

// decodeStrict decodes exactly one JSON value from data, rejecting trailing content.
func decodeStrict(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("trailing data after result")
	}
	return nil
}

// StacksEqual compares two evaluation stacks item by item.
func StacksEqual(a, b []StackItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type {
			return false
		}
		if !reflect.DeepEqual(a[i].Value, b[i].Value) {
			return false
		}
	}
	return true
}
