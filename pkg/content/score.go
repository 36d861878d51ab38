package content

import (
	"strings"
	"unicode/utf8"

	"github.com/Abraxas-365/drugcontent/pkg/drug"
)

// Score rates content completeness from 0 to 100. Fallback content counts at
// half weight so the stale scan picks it up again once generation recovers.
//
//	title 15, meta description 15, keywords 10, summary 15,
//	body sections 20, FAQs 20, structured data 5
func Score(c drug.Content) int {
	score := 0

	if t := strings.TrimSpace(c.SEOTitle); t != "" && utf8.RuneCountInString(t) <= MaxTitleLen {
		score += 15
	}
	if m := strings.TrimSpace(c.MetaDescription); m != "" && utf8.RuneCountInString(m) <= MaxMetaLen {
		score += 15
	}
	score += scaled(len(c.Keywords), 5, 10)
	if utf8.RuneCountInString(strings.TrimSpace(c.Summary)) >= 50 {
		score += 15
	} else if strings.TrimSpace(c.Summary) != "" {
		score += 7
	}

	filled := 0
	for _, v := range c.Sections {
		if strings.TrimSpace(v) != "" {
			filled++
		}
	}
	score += scaled(filled, 4, 20)

	valid := 0
	for _, f := range c.FAQs {
		if ValidFAQ(f) {
			valid++
		}
	}
	score += scaled(valid, 5, 20)

	if c.StructuredData["@context"] != nil && c.StructuredData["@type"] != nil {
		score += 5
	}

	if score > 100 {
		score = 100
	}
	if c.FallbackUsed {
		score /= 2
	}
	return score
}

// scaled awards weight proportionally to n out of full.
func scaled(n, full, weight int) int {
	if n >= full {
		return weight
	}
	return n * weight / full
}

// ValidFAQ reports whether a question and answer carry real text.
func ValidFAQ(f drug.FAQ) bool {
	return utf8.RuneCountInString(strings.TrimSpace(f.Question)) > minQuestionLen &&
		utf8.RuneCountInString(strings.TrimSpace(f.Answer)) > minAnswerLen
}
