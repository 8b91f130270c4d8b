package sculptor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestApplyGenAIParameters(t *testing.T) {
	config := &genai.GenerateContentConfig{}
	err := applyGenAIParameters(config, map[string]string{
		"temperature": "0.2",
		"topK":        "40",
		"topP":        "0.9",
		"maxTokens":   "512",
	})
	require.NoError(t, err)

	require.NotNil(t, config.Temperature)
	assert.InDelta(t, 0.2, *config.Temperature, 1e-6)
	require.NotNil(t, config.TopK)
	assert.Equal(t, float32(40), *config.TopK)
	require.NotNil(t, config.TopP)
	assert.InDelta(t, 0.9, *config.TopP, 1e-6)
	assert.Equal(t, int32(512), config.MaxOutputTokens)
}

func TestApplyGenAIParametersInvalid(t *testing.T) {
	tests := map[string]map[string]string{
		"temperature not a number": {"temperature": "hot"},
		"temperature too high":     {"temperature": "2.5"},
		"topK zero":                {"topK": "0"},
		"topP above one":           {"topP": "1.5"},
		"maxOutputTokens negative": {"maxOutputTokens": "-1"},
		"maxTokens not an int":     {"maxTokens": "many"},
	}
	for name, params := range tests {
		t.Run(name, func(t *testing.T) {
			err := applyGenAIParameters(&genai.GenerateContentConfig{}, params)
			assert.Error(t, err)
		})
	}
}

func TestGenAITransportWithoutClient(t *testing.T) {
	tr := NewGenAITransport(nil, WithGenAILogger(quietLogger()), WithGenAIParameters(map[string]string{"topK": "3"}))
	assert.Equal(t, "3", tr.params["topK"])

	_, err := tr.Complete(context.Background(), &Request{Model: "gemini-2.0-flash", Messages: []Message{NewUserMessage("x")}})
	assert.Error(t, err)
}
