package content_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/ai/llm"
	"github.com/Abraxas-365/drugcontent/pkg/content"
	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validReply = `{
  "title": "Lisinopril 10 mg Tablets: Hypertension Dosing and Safety",
  "meta_description": "Lisinopril prescribing information for clinicians covering indications, dosing, boxed warning and adverse reactions.",
  "keywords": ["Lisinopril", "ACE inhibitor", "lisinopril", "hypertension", "heart failure", "dosing"],
  "summary": "Lisinopril is an ACE inhibitor indicated for hypertension, heart failure and acute myocardial infarction.",
  "sections": {"overview": "ACE inhibitor.", "indications": "Hypertension.", "dosage": "10 mg daily.", "warnings": "Fetal toxicity.", "empty": "  "},
  "faqs": [
    {"category": "Dosing", "question": "What is the starting dose of lisinopril?", "answer": "The usual starting dose is 10 mg once daily.", "priority": "high"},
    {"question": "Short?", "answer": "Too short."},
    {"question": "Can lisinopril be used in pregnancy?", "answer": "No. Discontinue as soon as pregnancy is detected."}
  ]
}`

func stubLLM(reply string, calls *[]*llm.ChatOptions) llm.LLM {
	return llm.Func(func(_ context.Context, msgs []llm.Message, opts ...llm.Option) (llm.Response, error) {
		if calls != nil {
			*calls = append(*calls, llm.Apply(llm.DefaultOptions(), opts...))
		}
		return llm.Response{
			Message: llm.NewAssistantMessage(reply),
			Model:   "stub-model",
			Usage:   llm.Usage{TotalTokens: 42},
		}, nil
	})
}

func TestLLMGeneratorParsesReply(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var calls []*llm.ChatOptions
	g := content.NewLLMGenerator(stubLLM(validReply, &calls),
		content.WithChatOptions(llm.WithModel("stub-model"), llm.WithTemperature(0.2)),
		content.WithClock(func() time.Time { return now }))

	c, err := g.Generate(context.Background(), lisinopril(), content.Options{})
	require.NoError(t, err)

	require.Len(t, calls, 1)
	assert.True(t, calls[0].IsJSON())
	assert.Equal(t, "stub-model", calls[0].Model)
	assert.InDelta(t, 0.2, calls[0].Temperature, 1e-6)

	assert.Equal(t, "R2", c.DrugID)
	assert.Equal(t, "ai:stub-model", c.Generator)
	assert.False(t, c.FallbackUsed)
	assert.Equal(t, now, c.LastEnhanced)
	assert.Equal(t, []string{"lisinopril", "ace inhibitor", "hypertension", "heart failure", "dosing"}, c.Keywords)
	assert.Len(t, c.Sections, 4)
	assert.NotContains(t, c.Sections, "empty")

	require.Len(t, c.FAQs, 2)
	assert.Equal(t, "General", c.FAQs[1].Category)
	assert.Equal(t, "medium", c.FAQs[1].Priority)

	assert.Equal(t, "Drug", c.StructuredData["@type"], "missing structured data is filled from the record")
	assert.GreaterOrEqual(t, c.ContentScore, 80)
}

func TestLLMGeneratorAcceptsFencedJSON(t *testing.T) {
	g := content.NewLLMGenerator(stubLLM("Here you go:\n```json\n"+validReply+"\n```", nil))

	c, err := g.Generate(context.Background(), lisinopril(), content.Options{})
	require.NoError(t, err)
	assert.Equal(t, "Lisinopril 10 mg Tablets: Hypertension Dosing and Safety", c.SEOTitle)
}

func TestLLMGeneratorTruncatesLongFields(t *testing.T) {
	reply := `{"title": "` + strings.Repeat("Lisinopril tablets ", 8) + `", "meta_description": "` + strings.Repeat("word ", 50) + `"}`
	g := content.NewLLMGenerator(stubLLM(reply, nil))

	c, err := g.Generate(context.Background(), lisinopril(), content.Options{})
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(c.SEOTitle)), content.MaxTitleLen)
	assert.LessOrEqual(t, len([]rune(c.MetaDescription)), content.MaxMetaLen)
	assert.Len(t, c.FAQs, 5, "no valid FAQs falls back to the stock questions")
	assert.NotEmpty(t, c.Keywords)
}

func TestLLMGeneratorRejectsBadReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		code  *errx.ErrorCode
	}{
		{"empty", "   ", content.ErrEmptyResponse},
		{"prose", "I cannot help with that.", content.ErrEmptyResponse},
		{"broken json", `{"title": "x", "meta_description": }`, content.ErrInvalidResponse},
		{"missing title", `{"meta_description": "Lisinopril prescribing information."}`, content.ErrIncomplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := content.NewLLMGenerator(stubLLM(tt.reply, nil))
			_, err := g.Generate(context.Background(), lisinopril(), content.Options{})
			require.Error(t, err)
			assert.True(t, errx.IsCode(err, tt.code), err.Error())
		})
	}
}

func TestLLMGeneratorPassesProviderErrorsThrough(t *testing.T) {
	boom := errx.New("upstream 503", errx.TypeUnavailable)
	g := content.NewLLMGenerator(llm.Func(func(context.Context, []llm.Message, ...llm.Option) (llm.Response, error) {
		return llm.Response{}, boom
	}))

	_, err := g.Generate(context.Background(), lisinopril(), content.Options{})
	assert.True(t, errors.Is(err, boom))
	assert.True(t, errx.IsType(err, errx.TypeUnavailable))
}

func TestBuildMessagesIncludesLabelAndAudience(t *testing.T) {
	msgs := content.BuildMessages(lisinopril(), content.Options{Audience: content.AudiencePatients, MaxFAQs: 4})
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "Lisinopril")
	assert.Contains(t, msgs[1].Content, "hypertension")
}
