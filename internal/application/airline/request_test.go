package airline

import (
	"strings"
	"testing"

	"github.com/aescanero/chatrelay/pkg/chatkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorParse(t *testing.T) {
	v := NewValidator(0)

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"create", `{"type":"threads.create"}`, false},
		{"list", `{"type":"threads.list","params":null}`, false},
		{"missing type", `{}`, true},
		{"unknown type", `{"type":"threads.retry"}`, true},
		{"not json", `ping`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Parse([]byte(tt.payload))
			if tt.wantErr {
				assert.ErrorIs(t, err, chatkit.ErrInvalidRequest)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidatorAddUserMessage(t *testing.T) {
	v := NewValidator(10)

	req, err := v.Parse(message(RequestAddUserMessage, "t1", "short"))
	require.NoError(t, err)
	p, err := v.AddUserMessage(req)
	require.NoError(t, err)
	assert.Equal(t, "t1", p.ThreadID)
	assert.Equal(t, "short", p.Input.Text())

	req, err = v.Parse(message(RequestAddUserMessage, "", "short"))
	require.NoError(t, err)
	_, err = v.AddUserMessage(req)
	assert.ErrorIs(t, err, chatkit.ErrInvalidRequest)

	req, err = v.Parse(message(RequestAddUserMessage, "t1", strings.Repeat("x", 11)))
	require.NoError(t, err)
	_, err = v.AddUserMessage(req)
	assert.ErrorIs(t, err, chatkit.ErrInvalidRequest)
}

func TestValidatorListThreadsDefaults(t *testing.T) {
	v := NewValidator(0)

	req, err := v.Parse([]byte(`{"type":"threads.list"}`))
	require.NoError(t, err)
	p, err := v.ListThreads(req)
	require.NoError(t, err)
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, "desc", p.Order)

	req, err = v.Parse([]byte(`{"type":"threads.list","params":{"order":"sideways"}}`))
	require.NoError(t, err)
	_, err = v.ListThreads(req)
	assert.ErrorIs(t, err, chatkit.ErrInvalidRequest)
}

func TestUserInputText(t *testing.T) {
	in := UserInput{Content: []ContentPart{
		{Type: "input_text", Text: " hello "},
		{Type: "input_tag", Text: "ignored"},
		{Type: "text", Text: "world"},
	}}
	assert.Equal(t, "hello\nworld", in.Text())
}
