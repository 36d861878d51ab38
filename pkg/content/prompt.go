package content

import (
	"fmt"
	"strings"

	"github.com/Abraxas-365/drugcontent/pkg/ai/llm"
	"github.com/Abraxas-365/drugcontent/pkg/drug"
)

const systemPrompt = `You write accurate, compliant drug information pages for a medical reference site.
Use only the FDA label facts you are given. Never invent indications, doses or claims.
Reply with a single JSON object and nothing else.`

var audienceGuidance = map[Audience]string{
	AudienceProviders:   "Focus on clinical decision-making, prescribing guidance, and professional concerns",
	AudiencePatients:    "Focus on patient understanding, safety, and practical usage questions",
	AudiencePharmacists: "Focus on dispensing, drug interactions, and pharmaceutical concerns",
}

// BuildMessages renders the chat prompt for d.
func BuildMessages(d drug.Drug, opts Options) []llm.Message {
	opts = opts.withDefaults()
	return []llm.Message{
		llm.NewSystemMessage(systemPrompt),
		llm.NewUserMessage(buildUserPrompt(d, opts)),
	}
}

func buildUserPrompt(d drug.Drug, opts Options) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Generate page content for the following pharmaceutical product.\n\n")
	b.WriteString("**Drug Information:**\n")
	line := func(label, value string, limit int) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(&b, "- %s: %s\n", label, clip(value, limit))
	}
	line("Name", d.DisplayName(), 200)
	line("Generic Name", d.GenericName, 200)
	line("Brand Name", d.BrandName, 200)
	line("Manufacturer", d.Manufacturer, 200)
	line("Dosage Form", d.DosageForm, 100)
	line("Strength", d.Strength, 100)
	line("Route", d.Route, 100)
	line("Indications", d.Label.IndicationsAndUsage, 600)
	line("Dosage", d.Label.DosageAndAdministration, 500)
	line("Warnings", d.Label.WarningsAndPrecautions, 500)
	line("Adverse Reactions", d.Label.AdverseReactions, 400)
	line("Contraindications", d.Label.Contraindications, 300)
	line("Mechanism", d.Label.MechanismOfAction, 400)
	line("Pharmacokinetics", d.Label.Pharmacokinetics, 400)

	fmt.Fprintf(&b, "\n**Target Audience:** %s\n", opts.Audience)
	if g := audienceGuidance[opts.Audience]; g != "" {
		fmt.Fprintf(&b, "**Audience Focus:** %s\n", g)
	}
	fmt.Fprintf(&b, "**Maximum FAQs:** %d\n\n", opts.MaxFAQs)

	b.WriteString(`Respond with JSON in exactly this shape:
{
  "title": "SEO page title including the drug name and primary indication (50-60 characters, never over 70)",
  "meta_description": "Compelling, informative meta description (150-160 characters, never over 160)",
  "keywords": ["relevant", "search", "keywords"],
  "summary": "Two or three sentence plain-language overview",
  "sections": {
    "overview": "...",
    "indications": "...",
    "dosage": "...",
    "warnings": "...",
    "adverse_reactions": "...",
    "mechanism": "..."
  },
  "faqs": [
    {"category": "Indications & Usage", "question": "...", "answer": "...", "priority": "high|medium|low"}
  ],
  "structured_data": {
    "@context": "https://schema.org",
    "@type": "Drug",
    "name": "drug name",
    "description": "brief description",
    "activeIngredient": "active ingredient"
  }
}

FAQ categories to consider: Indications & Usage, Dosing & Administration, Safety & Warnings,
Side Effects & Monitoring, Drug Interactions, Patient Counseling, Clinical Considerations.
Content must be medically accurate and evidence-based.`)

	return b.String()
}
