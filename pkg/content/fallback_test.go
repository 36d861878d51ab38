package content_test

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Abraxas-365/drugcontent/pkg/content"
	"github.com/Abraxas-365/drugcontent/pkg/drug"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lisinopril() drug.Drug {
	return drug.Drug{
		ID:           "R2",
		Name:         "Lisinopril",
		GenericName:  "lisinopril",
		Manufacturer: "Acme Pharma",
		DosageForm:   "Tablet",
		Strength:     "10 mg",
		Route:        "Oral",
		Label: drug.Label{
			IndicationsAndUsage:     "Lisinopril is indicated for the treatment of hypertension in adults. It may be used alone.",
			DosageAndAdministration: "The recommended initial dose is 10 mg once a day. Adjust as needed.",
			WarningsAndPrecautions:  "WARNING: FETAL TOXICITY (boxed warning). Discontinue when pregnancy is detected.",
			AdverseReactions:        "The most common adverse reactions were headache and dizziness in clinical trials.",
			Contraindications:       "a history of angioedema related to previous ACE inhibitor treatment",
		},
	}
}

func TestFallbackTitleTemplate(t *testing.T) {
	assert.Equal(t,
		"Lisinopril (10 mg)(Tablet) - Prescribing Information | DrugInfo",
		content.FallbackTitle(lisinopril(), "DrugInfo"))
}

func TestFallbackTitleDropsSiteThenTruncates(t *testing.T) {
	d := lisinopril()
	d.Name = "Amlodipine and Olmesartan Medoxomil"
	title := content.FallbackTitle(d, "DrugInfo")
	assert.True(t, strings.HasPrefix(title, "Amlodipine and Olmesartan Medoxomil (10 mg)(Tablet)"))
	assert.NotContains(t, title, "DrugInfo")
	assert.LessOrEqual(t, utf8.RuneCountInString(title), content.MaxTitleLen)

	d.Name = strings.Repeat("Very Long Name ", 6)
	title = content.FallbackTitle(d, "DrugInfo")
	assert.LessOrEqual(t, utf8.RuneCountInString(title), content.MaxTitleLen)
	assert.True(t, strings.HasSuffix(title, "..."))
}

func TestFallbackTitleWithoutStrength(t *testing.T) {
	d := drug.Drug{Name: "Aspirin", DosageForm: "Tablet"}
	assert.Equal(t, "Aspirin (Tablet) - Prescribing Information", content.FallbackTitle(d, ""))
}

func TestFallbackBuild(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	f := &content.Fallback{SiteName: "DrugInfo", Now: func() time.Time { return now }}

	c := f.Build(lisinopril())

	assert.Equal(t, "R2", c.DrugID)
	assert.True(t, c.FallbackUsed)
	assert.Equal(t, content.GeneratorFallback, c.Generator)
	assert.Equal(t, now, c.LastEnhanced)
	assert.LessOrEqual(t, utf8.RuneCountInString(c.MetaDescription), content.MaxMetaLen)
	assert.Equal(t, "Lisinopril is indicated for the treatment of hypertension in adults.", c.Summary)

	require.Len(t, c.FAQs, 5)
	for _, f := range c.FAQs {
		assert.True(t, content.ValidFAQ(f), f.Question)
	}
	assert.Equal(t, "Patient Counseling", c.FAQs[4].Category)
	assert.Contains(t, c.FAQs[2].Answer, "Contains boxed warning.")
	assert.Contains(t, c.FAQs[2].Answer, "Contraindicated in patients with a history of angioedema")
	assert.Equal(t, "The recommended initial dose is 10 mg once a day. Refer to complete prescribing information for detailed dosing guidelines.", c.FAQs[1].Answer)

	assert.Equal(t, "Drug", c.StructuredData["@type"])
	assert.Equal(t, "lisinopril", c.StructuredData["activeIngredient"])

	assert.Greater(t, c.ContentScore, 0)
	assert.Less(t, c.ContentScore, 60, "fallback content must stay below the refresh threshold")
}

func TestFallbackKeywordsUniqueAndCapped(t *testing.T) {
	d := drug.Drug{Name: "Lisinopril", GenericName: "LISINOPRIL", Manufacturer: "Acme", DosageForm: "Tablet"}
	kw := content.FallbackKeywords(d)
	assert.Equal(t, []string{
		"lisinopril", "acme", "tablet",
		"prescription medication", "prescribing information", "drug information", "medication guide",
	}, kw)
	assert.LessOrEqual(t, len(kw), content.MaxKeywords)
}

func TestFallbackWithEmptyLabel(t *testing.T) {
	d := drug.Drug{ID: "R3", Name: "Mystery", DosageForm: "Injection", Route: "Intravenous"}
	c, err := content.NewFallback("").Generate(context.Background(), d, content.Options{})
	require.NoError(t, err)

	assert.Equal(t, "Mystery is indicated for approved medical conditions as determined by the FDA.", c.FAQs[0].Answer)
	assert.Equal(t, "Administer as injection via intravenous. Follow complete prescribing information for specific dosing guidelines.", c.FAQs[1].Answer)
	assert.Equal(t, "Review complete prescribing information for all warnings and precautions.", c.FAQs[2].Answer)
	assert.Empty(t, c.Sections)
}

func TestHasBoxedWarning(t *testing.T) {
	assert.True(t, content.HasBoxedWarning(lisinopril()))
	assert.False(t, content.HasBoxedWarning(drug.Drug{}))
}
