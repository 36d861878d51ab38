// Package content produces page content for drugs, either through a language
// model or from the label text alone.
package content

import (
	"context"

	"github.com/Abraxas-365/drugcontent/pkg/drug"
	"github.com/Abraxas-365/drugcontent/pkg/errx"
)

const (
	MaxTitleLen       = 70
	MaxMetaLen        = 160
	MaxKeywords       = 10
	minQuestionLen    = 10
	minAnswerLen      = 20
	GeneratorFallback = "fallback"
)

// Audience steers tone and FAQ focus.
type Audience string

const (
	AudienceProviders   Audience = "healthcare_providers"
	AudiencePatients    Audience = "patients"
	AudiencePharmacists Audience = "pharmacists"
)

// Options tune a single generation.
type Options struct {
	Audience Audience
	MaxFAQs  int
}

func (o Options) withDefaults() Options {
	if o.Audience == "" {
		o.Audience = AudienceProviders
	}
	if o.MaxFAQs <= 0 {
		o.MaxFAQs = 6
	}
	return o
}

// Generator produces content for a drug. Implementations may be slow and may
// fail; callers decide how to recover.
type Generator interface {
	Generate(ctx context.Context, d drug.Drug, opts Options) (*drug.Content, error)
}

var errRegistry = errx.NewRegistry("CONTENT")

var (
	ErrEmptyResponse   = errRegistry.Register("EMPTY_RESPONSE", errx.TypeExternal, "Model returned no content")
	ErrInvalidResponse = errRegistry.Register("INVALID_RESPONSE", errx.TypeExternal, "Model response is not valid content JSON")
	ErrIncomplete      = errRegistry.Register("INCOMPLETE", errx.TypeExternal, "Model response is missing required fields")
)
