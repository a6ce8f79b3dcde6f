package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verdict struct {
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence"`
}

func TestParseJSONReplyPlainObject(t *testing.T) {
	var v verdict
	err := ParseJSONReply(`{"decision": "approve", "confidence": 0.9}`, &v)
	require.NoError(t, err)
	assert.Equal(t, "approve", v.Decision)
	assert.Equal(t, 0.9, v.Confidence)
}

func TestParseJSONReplyMarkdownFence(t *testing.T) {
	reply := "```json\n{\"decision\": \"reject\", \"confidence\": 0.4}\n```"
	var v verdict
	require.NoError(t, ParseJSONReply(reply, &v))
	assert.Equal(t, "reject", v.Decision)
}

func TestParseJSONReplyBareFence(t *testing.T) {
	reply := "```\n{\"decision\": \"approve\"}\n```"
	var v verdict
	require.NoError(t, ParseJSONReply(reply, &v))
	assert.Equal(t, "approve", v.Decision)
}

func TestParseJSONReplyProseWrapped(t *testing.T) {
	reply := `Sure! Based on the item, here is my verdict:
{"decision": "defer_to_user", "confidence": 0.5}
Let me know if you need anything else.`
	var v verdict
	require.NoError(t, ParseJSONReply(reply, &v))
	assert.Equal(t, "defer_to_user", v.Decision)
}

func TestParseJSONReplyArrayInProse(t *testing.T) {
	reply := `The extracted topics are: ["supply chain", "pricing"] as requested.`
	var topics []string
	require.NoError(t, ParseJSONReply(reply, &topics))
	assert.Equal(t, []string{"supply chain", "pricing"}, topics)
}

func TestParseJSONReplyNoJSON(t *testing.T) {
	var v verdict
	err := ParseJSONReply("I could not produce a structured answer.", &v)
	assert.Error(t, err)
}

func TestParseJSONReplyMalformed(t *testing.T) {
	var v verdict
	err := ParseJSONReply(`{"decision": approve}`, &v)
	assert.Error(t, err)
}

func TestFirstNumber(t *testing.T) {
	tests := []struct {
		reply string
		want  string
	}{
		{"0.85", "0.85"},
		{"The relevance score is 0.7 out of 1.", "0.7"},
		{"Score: 7/10", "7"},
		{"-0.2 adjustment", "-0.2"},
		{"no digits here", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FirstNumber(tt.reply), "reply %q", tt.reply)
	}
}
