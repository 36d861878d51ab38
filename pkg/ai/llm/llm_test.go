package llm_test

import (
	"testing"

	"github.com/Abraxas-365/drugcontent/pkg/ai/llm"
	"github.com/stretchr/testify/assert"
)

func TestApplyDoesNotMutateBase(t *testing.T) {
	base := llm.DefaultOptions()
	base.Model = "gpt-4o-mini"

	got := llm.Apply(base, llm.WithTemperature(0.3), llm.WithMaxTokens(2000), llm.WithJSONResponseFormat(), llm.WithModel(""))

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, float32(0.3), got.Temperature)
	assert.Equal(t, 2000, got.MaxTokens)
	assert.True(t, got.IsJSON())
	assert.Equal(t, float32(0.7), base.Temperature)
	assert.False(t, base.IsJSON())
}
