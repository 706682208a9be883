package transcript

import (
	"fmt"
	"strings"
)

// Summary is the structured, keyword-derived view of a call transcript.
//
// The keyword tables below are a contract: downstream dashboards and the
// stored structured_summary column depend on these exact fields and
// derivation rules. Do not "improve" the matching (no tokenization, no
// negation handling); there is no ground truth to validate a cleverer
// version against.
type Summary struct {
	DeliveryConfirmed bool     `json:"delivery_confirmed"`
	AddressVerified   bool     `json:"address_verified"`
	IssuesIdentified  []string `json:"issues_identified"`
	NextSteps         []string `json:"next_steps"`
	DriverSentiment   string   `json:"driver_sentiment"`
	ExtractionError   string   `json:"extraction_error,omitempty"`
}

const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

var (
	confirmationKeywords = []string{"confirmed", "yes", "correct", "right"}
	addressKeywords      = []string{"address", "location", "correct address"}
	issueKeywords        = []string{"problem", "issue", "concern", "trouble", "difficulty"}
	nextStepKeywords     = []string{"call back", "follow up", "tomorrow", "next week", "schedule"}
	positiveWords        = []string{"good", "great", "excellent", "happy", "satisfied"}
	negativeWords        = []string{"bad", "terrible", "unhappy", "angry", "frustrated"}
)

func defaultSummary() Summary {
	return Summary{
		IssuesIdentified: []string{},
		NextSteps:        []string{},
		DriverSentiment:  SentimentNeutral,
	}
}

// Extract derives a Summary from raw transcript text.
//
// Recomputed wholesale on every invocation; not incremental. Total from the
// caller's perspective: any internal failure is reported via
// Summary.ExtractionError, never as a panic or error return.
func Extract(text string) (out Summary) {
	defer func() {
		if r := recover(); r != nil {
			out = defaultSummary()
			out.ExtractionError = fmt.Sprint(r)
		}
	}()

	out = defaultSummary()
	lower := strings.ToLower(text)

	for _, kw := range confirmationKeywords {
		if strings.Contains(lower, kw) {
			out.DeliveryConfirmed = true
			break
		}
	}

	for _, kw := range addressKeywords {
		if strings.Contains(lower, kw) {
			out.AddressVerified = true
			break
		}
	}

	// One note per matching keyword, in table order.
	for _, kw := range issueKeywords {
		if strings.Contains(lower, kw) {
			out.IssuesIdentified = append(out.IssuesIdentified, "Driver mentioned "+kw)
		}
	}

	for _, kw := range nextStepKeywords {
		if strings.Contains(lower, kw) {
			out.NextSteps = append(out.NextSteps, "Action required: "+kw)
		}
	}

	// Sentiment counts distinct keyword presence, not occurrence frequency.
	positives := 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			positives++
		}
	}
	negatives := 0
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			negatives++
		}
	}
	switch {
	case positives > negatives:
		out.DriverSentiment = SentimentPositive
	case negatives > positives:
		out.DriverSentiment = SentimentNegative
	}

	return out
}

// AsMap renders the summary in the shape stored in the structured_summary
// column (a plain JSON object).
func (s Summary) AsMap() map[string]any {
	m := map[string]any{
		"delivery_confirmed": s.DeliveryConfirmed,
		"address_verified":   s.AddressVerified,
		"issues_identified":  append([]string{}, s.IssuesIdentified...),
		"next_steps":         append([]string{}, s.NextSteps...),
		"driver_sentiment":   s.DriverSentiment,
	}
	if s.ExtractionError != "" {
		m["extraction_error"] = s.ExtractionError
	}
	return m
}
