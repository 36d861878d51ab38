package content

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/ai/llm"
	"github.com/Abraxas-365/drugcontent/pkg/drug"
	"github.com/Abraxas-365/drugcontent/pkg/logx"
)

// LLMGenerator asks a chat model for page content and validates the reply.
type LLMGenerator struct {
	client   llm.LLM
	chatOpts []llm.Option
	now      func() time.Time
	log      *logx.Entry
}

type GeneratorOption func(*LLMGenerator)

// WithChatOptions appends model options to every call.
func WithChatOptions(opts ...llm.Option) GeneratorOption {
	return func(g *LLMGenerator) { g.chatOpts = append(g.chatOpts, opts...) }
}

func WithClock(now func() time.Time) GeneratorOption {
	return func(g *LLMGenerator) { g.now = now }
}

func NewLLMGenerator(client llm.LLM, opts ...GeneratorOption) *LLMGenerator {
	g := &LLMGenerator{
		client: client,
		now:    time.Now,
		log:    logx.Component("content"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var _ Generator = (*LLMGenerator)(nil)

func (g *LLMGenerator) Generate(ctx context.Context, d drug.Drug, opts Options) (*drug.Content, error) {
	opts = opts.withDefaults()

	callOpts := append([]llm.Option{llm.WithJSONResponseFormat()}, g.chatOpts...)
	resp, err := g.client.Chat(ctx, BuildMessages(d, opts), callOpts...)
	if err != nil {
		return nil, err
	}

	c, err := g.parse(d, resp.Message.Content, opts)
	if err != nil {
		return nil, err
	}
	c.Generator = "ai"
	if resp.Model != "" {
		c.Generator = "ai:" + resp.Model
	}

	g.log.WithFields(logx.Fields{
		"drug_id":       d.ID,
		"model":         resp.Model,
		"total_tokens":  resp.Usage.TotalTokens,
		"content_score": c.ContentScore,
	}).Debug("content generated")
	return c, nil
}

type modelReply struct {
	Title           string            `json:"title"`
	MetaDescription string            `json:"meta_description"`
	Keywords        []string          `json:"keywords"`
	Summary         string            `json:"summary"`
	Sections        map[string]string `json:"sections"`
	FAQs            []drug.FAQ        `json:"faqs"`
	StructuredData  map[string]any    `json:"structured_data"`
}

func (g *LLMGenerator) parse(d drug.Drug, raw string, opts Options) (*drug.Content, error) {
	raw = extractJSON(raw)
	if raw == "" {
		return nil, errRegistry.New(ErrEmptyResponse).WithDetail("drug_id", d.ID)
	}

	var reply modelReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, errRegistry.NewWithCause(ErrInvalidResponse, err).WithDetail("drug_id", d.ID)
	}
	if strings.TrimSpace(reply.Title) == "" || strings.TrimSpace(reply.MetaDescription) == "" {
		return nil, errRegistry.New(ErrIncomplete).
			WithDetail("drug_id", d.ID).
			WithDetail("missing", "title or meta_description")
	}

	c := &drug.Content{
		DrugID:          d.ID,
		SEOTitle:        truncate(reply.Title, MaxTitleLen),
		MetaDescription: truncate(reply.MetaDescription, MaxMetaLen),
		Keywords:        uniqueLower(MaxKeywords, reply.Keywords...),
		Summary:         strings.TrimSpace(reply.Summary),
		Sections:        map[string]string{},
		StructuredData:  reply.StructuredData,
		LastEnhanced:    g.now().UTC(),
	}
	for k, v := range reply.Sections {
		if v = strings.TrimSpace(v); v != "" {
			c.Sections[k] = v
		}
	}
	for _, f := range reply.FAQs {
		if !ValidFAQ(f) {
			continue
		}
		if f.Category == "" {
			f.Category = "General"
		}
		if f.Priority == "" {
			f.Priority = "medium"
		}
		c.FAQs = append(c.FAQs, f)
		if len(c.FAQs) == opts.MaxFAQs {
			break
		}
	}

	if len(c.Keywords) == 0 {
		c.Keywords = FallbackKeywords(d)
	}
	if len(c.FAQs) == 0 {
		c.FAQs = FallbackFAQs(d)
	}
	if c.StructuredData == nil || c.StructuredData["@context"] == nil {
		c.StructuredData = StructuredData(d)
	}

	c.ContentScore = Score(*c)
	return c, nil
}

// extractJSON trims code fences and prose around the outermost object.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
