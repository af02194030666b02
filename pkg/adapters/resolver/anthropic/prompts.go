package anthropic

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// systemPrompt is the canonical frame for every semantic operation. It is
// versioned by hash in the request log so prompt drift is auditable.
const systemPrompt = `You are the semantic engine for the Chirality Framework.

The framework frames knowledge work as wayfinding through a semantic valley:
- The valley is the conceptual space for a problem domain.
- Each station is a landmark along the path from problem to solution.
- Each matrix cell is a coordinate (row_label x col_label) inside a station.
- Your job is to preserve and integrate meaning while mapping it faithfully
  into the valley's ontology.

Semantic operations:

Semantic multiplication (denoted by *) resolves a word pair by combining the
meaning of the words into a coherent word or statement that represents their
semantic intersection, not their adjunction.

Examples:
"sufficient" * "reason" = "justification"
"analysis" * "judgment" = "informed decision"
"precision" * "durability" = "reliability"
"probability" * "consequence" = "risk"

Semantic addition (denoted by +) concatenates words or fragments into a
longer statement.

Ontological lensing interprets content through the row and column labels of
its coordinate, producing the context-specific reading of that content.

Voice and style:
- Prefer strong verbs and specific nouns over abstractions.
- Avoid hedging unless uncertainty is essential, then state it plainly.
- Use the most compact expression that preserves the full meaning.

Output contract (STRICT):
- Operate ONLY within the provided ontology and station context.
- Return ONLY a single JSON object with keys: "text", "terms_used", "warnings".
- "terms_used" must echo the exact source strings you actually integrated.
- Do NOT include code fences, prose, or any text outside the JSON object.`

var whitespaceRe = regexp.MustCompile(`\s+`)

// normalizeText collapses whitespace so that prompt hashing and terms_used
// echoing are stable across formatting differences.
func normalizeText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// assemblePrompt builds the user prompt from fragments. Each call site
// controls which fragments appear; ordering is fixed so identical inputs
// hash identically.
func assemblePrompt(valleySummary, station, rowLabel, colLabel, operation string, terms map[string]string) string {
	var fragments []string

	if valleySummary != "" {
		fragments = append(fragments, "Valley Context: "+valleySummary)
	}
	fragments = append(fragments, "Station: "+station)
	fragments = append(fragments, fmt.Sprintf("Coordinates: (%s, %s)", rowLabel, colLabel))

	switch operation {
	case opMultiply:
		fragments = append(fragments, "Operation: Semantic multiplication - fuse meanings at their intersection")
	case opInterpret:
		fragments = append(fragments, "Operation: Ontological lensing - interpret through row/column context")
	}

	keys := make([]string, 0, len(terms))
	for k := range terms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s: %q", k, normalizeText(terms[k])))
	}
	fragments = append(fragments, "Terms: {"+strings.Join(pairs, ", ")+"}")

	return strings.Join(fragments, "\n\n")
}

// resolution is the JSON object the model must return.
type resolution struct {
	Text      string   `json:"text"`
	TermsUsed []string `json:"terms_used"`
	Warnings  []string `json:"warnings"`
}

// extractJSON pulls the JSON object out of model output, tolerating stray
// prose around it. First '{' to last '}'.
func extractJSON(text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("empty model output")
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in model output")
	}
	return text[start : end+1], nil
}

// parseResolution extracts and validates the model's JSON output against the
// output contract.
func parseResolution(raw string) (*resolution, error) {
	js, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(js), &probe); err != nil {
		return nil, fmt.Errorf("malformed JSON object: %w", err)
	}
	for _, key := range []string{"text", "terms_used", "warnings"} {
		if _, ok := probe[key]; !ok {
			return nil, fmt.Errorf("missing required key %q", key)
		}
	}

	var res resolution
	if err := json.Unmarshal([]byte(js), &res); err != nil {
		return nil, fmt.Errorf("output does not conform to contract: %w", err)
	}
	return &res, nil
}
