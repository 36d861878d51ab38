package content

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/drug"
)

// Fallback builds baseline content from label fields alone. It never calls
// out and never fails, so it is the recovery path when generation is down.
type Fallback struct {
	SiteName string
	Now      func() time.Time
}

func NewFallback(siteName string) *Fallback {
	return &Fallback{SiteName: siteName, Now: time.Now}
}

var _ Generator = (*Fallback)(nil)

// Generate satisfies Generator.
func (f *Fallback) Generate(_ context.Context, d drug.Drug, _ Options) (*drug.Content, error) {
	c := f.Build(d)
	return &c, nil
}

// Build returns fallback content for d, scored at half weight.
func (f *Fallback) Build(d drug.Drug) drug.Content {
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}

	c := drug.Content{
		DrugID:          d.ID,
		SEOTitle:        FallbackTitle(d, f.SiteName),
		MetaDescription: fallbackMeta(d),
		Keywords:        FallbackKeywords(d),
		Summary:         indicationSummary(d),
		Sections:        labelSections(d),
		FAQs:            FallbackFAQs(d),
		StructuredData:  StructuredData(d),
		FallbackUsed:    true,
		Generator:       GeneratorFallback,
		LastEnhanced:    now().UTC(),
	}
	c.ContentScore = Score(c)
	return c
}

// FallbackTitle renders "<name> (<strength>)(<form>) - Prescribing Information | <site>".
// The site suffix is dropped first when the title is too long.
func FallbackTitle(d drug.Drug, siteName string) string {
	var b strings.Builder
	b.WriteString(d.DisplayName())
	if d.Strength != "" || d.DosageForm != "" {
		b.WriteByte(' ')
		if d.Strength != "" {
			fmt.Fprintf(&b, "(%s)", d.Strength)
		}
		if d.DosageForm != "" {
			fmt.Fprintf(&b, "(%s)", d.DosageForm)
		}
	}
	b.WriteString(" - Prescribing Information")
	title := b.String()

	if siteName != "" {
		if withSite := title + " | " + siteName; len([]rune(withSite)) <= MaxTitleLen {
			return withSite
		}
	}
	return truncate(title, MaxTitleLen)
}

func fallbackMeta(d drug.Drug) string {
	return truncate(fmt.Sprintf(
		"Complete prescribing information, dosage, side effects, and clinical data for %s. Healthcare provider resource.",
		d.DisplayName()), MaxMetaLen)
}

// FallbackKeywords lists identifying terms plus stock terms, at most ten.
func FallbackKeywords(d drug.Drug) []string {
	return uniqueLower(MaxKeywords,
		d.Name, d.GenericName, d.BrandName, d.Manufacturer, d.DosageForm,
		"prescription medication",
		"prescribing information",
		"drug information",
		"medication guide",
	)
}

// StructuredData is the schema.org Drug object for d.
func StructuredData(d drug.Drug) map[string]any {
	sd := map[string]any{
		"@context": "https://schema.org",
		"@type":    "Drug",
		"name":     d.DisplayName(),
		"description": strings.TrimSpace(fmt.Sprintf("Prescription medication %s manufactured by %s",
			d.DisplayName(), d.Manufacturer)),
	}
	if d.Manufacturer != "" {
		sd["manufacturer"] = map[string]any{"@type": "Organization", "name": d.Manufacturer}
	}
	if d.GenericName != "" {
		sd["activeIngredient"] = d.GenericName
	}
	if d.DosageForm != "" {
		sd["dosageForm"] = d.DosageForm
	}
	if d.Strength != "" {
		sd["strength"] = d.Strength
	}
	if d.Route != "" {
		sd["administrationRoute"] = d.Route
	}
	return sd
}

// FallbackFAQs returns the five stock questions answered from the label.
func FallbackFAQs(d drug.Drug) []drug.FAQ {
	name := d.DisplayName()
	return []drug.FAQ{
		{
			Category: "Indications & Usage",
			Question: fmt.Sprintf("What is %s used for?", name),
			Answer:   indicationSummary(d),
			Priority: "high",
		},
		{
			Category: "Dosing & Administration",
			Question: fmt.Sprintf("How should %s be administered?", name),
			Answer:   dosingSummary(d),
			Priority: "high",
		},
		{
			Category: "Safety & Warnings",
			Question: fmt.Sprintf("What are the main warnings for %s?", name),
			Answer:   warningSummary(d),
			Priority: "high",
		},
		{
			Category: "Side Effects & Monitoring",
			Question: fmt.Sprintf("What adverse reactions should be monitored with %s?", name),
			Answer:   adverseSummary(d),
			Priority: "medium",
		},
		{
			Category: "Patient Counseling",
			Question: fmt.Sprintf("What should patients know about taking %s?", name),
			Answer: fmt.Sprintf("Patients should take %s exactly as prescribed, report any unusual side effects, "+
				"and follow up with their healthcare provider as recommended.", name),
			Priority: "medium",
		},
	}
}

func indicationSummary(d drug.Drug) string {
	text := d.Label.IndicationsAndUsage
	if strings.TrimSpace(text) == "" {
		return fmt.Sprintf("%s is indicated for approved medical conditions as determined by the FDA.", d.DisplayName())
	}
	if s := firstSentence(text, 20); s != "" {
		return s
	}
	return clip(text, 200)
}

func dosingSummary(d drug.Drug) string {
	text := d.Label.DosageAndAdministration
	if strings.TrimSpace(text) == "" {
		form := "directed"
		if d.DosageForm != "" {
			form = strings.ToLower(d.DosageForm)
		}
		summary := "Administer as " + form
		if d.Route != "" {
			summary += " via " + strings.ToLower(d.Route)
		}
		return summary + ". Follow complete prescribing information for specific dosing guidelines."
	}
	if s := firstSentence(text, 10); s != "" {
		return s + " Refer to complete prescribing information for detailed dosing guidelines."
	}
	return clip(text, 200)
}

// HasBoxedWarning reports whether the warnings section mentions a boxed warning.
func HasBoxedWarning(d drug.Drug) bool {
	w := strings.ToLower(d.Label.WarningsAndPrecautions)
	return strings.Contains(w, "boxed warning") || strings.Contains(w, "black box")
}

func warningSummary(d drug.Drug) string {
	var parts []string
	if c := strings.TrimSpace(d.Label.Contraindications); c != "" {
		parts = append(parts, "Contraindicated in patients with "+prefix(c, 100)+"...")
	}
	if strings.TrimSpace(d.Label.WarningsAndPrecautions) != "" {
		if HasBoxedWarning(d) {
			parts = append(parts, "Contains boxed warning.")
		}
		if s := firstSentence(d.Label.WarningsAndPrecautions, 20); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "Review complete prescribing information for all warnings and precautions."
	}
	return strings.Join(parts, " ")
}

func adverseSummary(d drug.Drug) string {
	text := d.Label.AdverseReactions
	if strings.TrimSpace(text) == "" {
		return "Monitor patients for adverse reactions. Refer to complete prescribing information for detailed adverse reaction profile."
	}
	if s := firstSentence(text, 20); s != "" {
		return s + " Monitor patients accordingly and refer to complete prescribing information."
	}
	return clip(text, 200)
}

const maxSectionLen = 1000

func labelSections(d drug.Drug) map[string]string {
	sections := map[string]string{}
	add := func(key, text string) {
		if strings.TrimSpace(text) != "" {
			sections[key] = clip(text, maxSectionLen)
		}
	}
	add(SectionIndications, d.Label.IndicationsAndUsage)
	add(SectionDosage, d.Label.DosageAndAdministration)
	add(SectionWarnings, d.Label.WarningsAndPrecautions)
	add(SectionAdverseReactions, d.Label.AdverseReactions)
	add(SectionContraindications, d.Label.Contraindications)
	add(SectionMechanism, d.Label.MechanismOfAction)
	return sections
}

// Section keys shared by generated and fallback content.
const (
	SectionOverview          = "overview"
	SectionIndications       = "indications"
	SectionDosage            = "dosage"
	SectionWarnings          = "warnings"
	SectionAdverseReactions  = "adverse_reactions"
	SectionContraindications = "contraindications"
	SectionMechanism         = "mechanism"
)
