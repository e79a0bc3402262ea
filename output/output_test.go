package output

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_WellFormed(t *testing.T) {
	raw := []byte(`{"status":"VM halted","errmsg":"","lastop":64,"estack":[{"type":"Integer","value":"1"},{"type":"Array","value":[{"type":"Boolean","value":true}]}],"gas":"12"}`)

	res := Parse(raw)
	require.NotNil(t, res)
	assert.Equal(t, StatusHalted, res.Status)
	assert.True(t, res.Halted())
	assert.Equal(t, uint8(64), res.LastOpcode)
	require.Len(t, res.EvaluationStack, 2)
	assert.Equal(t, "Integer", res.EvaluationStack[0].Type)
	assert.Equal(t, "1", res.EvaluationStack[0].Value)
	assert.Equal(t, "Array", res.EvaluationStack[1].Type)
}

func TestParse_EmptyStackAndNullValue(t *testing.T) {
	res := Parse([]byte(`{"status":"VM faulted","errmsg":"boom","lastop":0,"estack":[]}` + "\n"))
	require.NotNil(t, res)
	assert.Empty(t, res.EvaluationStack)
	assert.False(t, res.Halted())
	assert.Equal(t, "boom", res.ErrorMessage)

	res = Parse([]byte(`{"status":"VM halted","errmsg":"","lastop":11,"estack":[{"type":"Any","value":null}]}`))
	require.NotNil(t, res)
	assert.Nil(t, res.EvaluationStack[0].Value)
}

func TestParse_Malformed(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "not_json", raw: "panic: runtime error: index out of range"},
		{name: "truncated", raw: `{"status":"VM halted","errmsg":"","lastop":1,"estack":[`},
		{name: "array_top_level", raw: `[1,2,3]`},
		{name: "missing_estack", raw: `{"status":"VM halted","errmsg":"","lastop":1}`},
		{name: "missing_errmsg", raw: `{"status":"VM halted","lastop":1,"estack":[]}`},
		{name: "missing_status", raw: `{"errmsg":"","lastop":1,"estack":[]}`},
		{name: "missing_lastop", raw: `{"status":"VM halted","errmsg":"","estack":[]}`},
		{name: "null_estack", raw: `{"status":"VM halted","errmsg":"","lastop":1,"estack":null}`},
		{name: "status_wrong_type", raw: `{"status":1,"errmsg":"","lastop":1,"estack":[]}`},
		{name: "lastop_overflow", raw: `{"status":"VM halted","errmsg":"","lastop":256,"estack":[]}`},
		{name: "lastop_negative", raw: `{"status":"VM halted","errmsg":"","lastop":-1,"estack":[]}`},
		{name: "lastop_fraction", raw: `{"status":"VM halted","errmsg":"","lastop":1.5,"estack":[]}`},
		{name: "item_missing_type", raw: `{"status":"VM halted","errmsg":"","lastop":1,"estack":[{"value":"1"}]}`},
		{name: "item_missing_value", raw: `{"status":"VM halted","errmsg":"","lastop":1,"estack":[{"type":"Integer"}]}`},
		{name: "item_type_not_string", raw: `{"status":"VM halted","errmsg":"","lastop":1,"estack":[{"type":3,"value":"1"}]}`},
		{name: "trailing_garbage", raw: `{"status":"VM halted","errmsg":"","lastop":1,"estack":[]} extra`},
		{name: "invalid_utf8", raw: "{\"status\":\"VM halted\",\"errmsg\":\"\",\"lastop\":1,\"estack\":[{\"type\":\"ByteString\",\"value\":\"\xff\"}]}"},
		{name: "invalid_utf8_errmsg", raw: "{\"status\":\"VM halted\",\"errmsg\":\"\xfe\",\"lastop\":1,\"estack\":[]}"},
		{name: "two_objects", raw: `{"status":"VM halted","errmsg":"","lastop":1,"estack":[]}{"status":"VM halted","errmsg":"","lastop":1,"estack":[]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Nil(t, Parse([]byte(tc.raw)))
			})
			_, err := ParseErr([]byte(tc.raw))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestParse_InvalidBytesDoNotCollapse(t *testing.T) {
	a := Parse([]byte("{\"status\":\"VM halted\",\"errmsg\":\"\",\"lastop\":1,\"estack\":[{\"type\":\"ByteString\",\"value\":\"\xff\"}]}"))
	b := Parse([]byte("{\"status\":\"VM halted\",\"errmsg\":\"\",\"lastop\":1,\"estack\":[{\"type\":\"ByteString\",\"value\":\"\xfe\"}]}"))
	assert.Nil(t, a)
	assert.Nil(t, b)

	// Valid multi-byte text is untouched.
	c := Parse([]byte(`{"status":"VM halted","errmsg":"","lastop":1,"estack":[{"type":"ByteString","value":"héllo"}]}`))
	require.NotNil(t, c)
	assert.Equal(t, "héllo", c.EvaluationStack[0].Value)
}

func TestParse_NilInput(t *testing.T) {
	assert.Nil(t, Parse(nil))
}

func TestStacksEqual(t *testing.T) {
	one := []StackItem{{Type: "Integer", Value: "1"}}
	two := []StackItem{{Type: "Integer", Value: "2"}}

	assert.True(t, StacksEqual(one, []StackItem{{Type: "Integer", Value: "1"}}))
	assert.False(t, StacksEqual(one, two))
	assert.False(t, StacksEqual(one, []StackItem{{Type: "ByteString", Value: "1"}}))
	assert.False(t, StacksEqual(one, append(one, two...)))
	assert.True(t, StacksEqual(nil, []StackItem{}))
}

func TestStacksEqual_NestedValues(t *testing.T) {
	a := Parse([]byte(`{"status":"VM halted","errmsg":"","lastop":1,"estack":[{"type":"Map","value":{"k":[1,2]}}]}`))
	b := Parse([]byte(`{"status":"VM halted","errmsg":"","lastop":1,"estack":[{"type":"Map","value":{"k":[1,2]}}]}`))
	c := Parse([]byte(`{"status":"VM halted","errmsg":"","lastop":1,"estack":[{"type":"Map","value":{"k":[1,3]}}]}`))
	require.NotNil(t, a)
	require.NotNil(t, b)
	require.NotNil(t, c)

	assert.True(t, StacksEqual(a.EvaluationStack, b.EvaluationStack))
	assert.False(t, StacksEqual(a.EvaluationStack, c.EvaluationStack))
}

func TestStacksEqual_LargeIntegersStayExact(t *testing.T) {
	a := Parse([]byte(`{"status":"VM halted","errmsg":"","lastop":1,"estack":[{"type":"Integer","value":9007199254740993}]}`))
	b := Parse([]byte(`{"status":"VM halted","errmsg":"","lastop":1,"estack":[{"type":"Integer","value":9007199254740992}]}`))
	require.NotNil(t, a)
	require.NotNil(t, b)

	assert.Equal(t, json.Number("9007199254740993"), a.EvaluationStack[0].Value)
	assert.False(t, StacksEqual(a.EvaluationStack, b.EvaluationStack))
}

func TestExecutionResult_RoundTripsContract(t *testing.T) {
	raw := `{"status":"VM halted","errmsg":"","lastop":17,"estack":[{"type":"Integer","value":"5"}]}`
	res := Parse([]byte(raw))
	require.NotNil(t, res)

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}
