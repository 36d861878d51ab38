package drug

import "time"

// Drug is a marketed product with its FDA label sections. Label fields are
// empty when the product has no label row.
type Drug struct {
	ID           string    `json:"id"`
	Name         string    `json:"drug_name"`
	GenericName  string    `json:"generic_name,omitempty"`
	BrandName    string    `json:"brand_name,omitempty"`
	Manufacturer string    `json:"manufacturer,omitempty"`
	DosageForm   string    `json:"dosage_form,omitempty"`
	Strength     string    `json:"strength,omitempty"`
	Route        string    `json:"route,omitempty"`
	CreatedAt    time.Time `json:"created_at"`

	Label Label `json:"label"`
}

// Label holds the prescribing information sections used for content.
type Label struct {
	IndicationsAndUsage     string `json:"indications_and_usage,omitempty"`
	DosageAndAdministration string `json:"dosage_and_administration,omitempty"`
	WarningsAndPrecautions  string `json:"warnings_and_precautions,omitempty"`
	AdverseReactions        string `json:"adverse_reactions,omitempty"`
	Contraindications       string `json:"contraindications,omitempty"`
	ClinicalPharmacology    string `json:"clinical_pharmacology,omitempty"`
	HowSupplied             string `json:"how_supplied,omitempty"`
	MechanismOfAction       string `json:"mechanism_of_action,omitempty"`
	Pharmacokinetics        string `json:"pharmacokinetics,omitempty"`
}

// Age reports how long ago the drug was created.
func (d Drug) Age(now time.Time) time.Duration {
	return now.Sub(d.CreatedAt)
}

// DisplayName is the name used in titles and prompts.
func (d Drug) DisplayName() string {
	switch {
	case d.Name != "":
		return d.Name
	case d.BrandName != "":
		return d.BrandName
	case d.GenericName != "":
		return d.GenericName
	default:
		return "Medication"
	}
}

// FAQ is one question and answer pair on a drug page.
type FAQ struct {
	Category string `json:"category"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Priority string `json:"priority,omitempty"`
}

// Content is the generated page content persisted for a drug.
type Content struct {
	DrugID          string            `json:"drug_id"`
	SEOTitle        string            `json:"seo_title"`
	MetaDescription string            `json:"meta_description"`
	Keywords        []string          `json:"keywords"`
	Summary         string            `json:"summary,omitempty"`
	Sections        map[string]string `json:"sections,omitempty"`
	FAQs            []FAQ             `json:"faqs"`
	StructuredData  map[string]any    `json:"structured_data"`
	ContentScore    int               `json:"content_score"`
	FallbackUsed    bool              `json:"fallback_used"`
	Generator       string            `json:"generator,omitempty"`
	LastEnhanced    time.Time         `json:"last_enhanced"`
}

// Stale reports whether c needs a refresh.
func (c Content) Stale(now time.Time, maxAge time.Duration, minScore int) bool {
	return now.Sub(c.LastEnhanced) > maxAge || c.ContentScore < minScore
}
