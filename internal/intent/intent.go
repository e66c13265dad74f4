// Package intent implements heuristic query intent detection used to pick
// cache freshness windows and tag cache keys.
package intent

import (
	"math"
	"regexp"
	"strings"

	"github.com/hoplite-search/hoplite"
)

var keywordPhrases = map[hoplite.Intent][]string{
	hoplite.IntentNews:      {"breaking", "headline", "latest", "today", "press release", "announcement"},
	hoplite.IntentTechnical: {"api", "documentation", "error", "stack trace", "tutorial", "guide", "how to"},
	hoplite.IntentShopping:  {"buy", "price", "deal", "discount", "coupon", "review"},
	hoplite.IntentAcademic:  {"paper", "study", "journal", "doi", "research", "arxiv"},
	hoplite.IntentLocal:     {"near me", "closest", "nearby", "in my area", "open now", "map"},
	hoplite.IntentFinance:   {"stock", "earnings", "forecast", "investment", "market", "share price"},
}

var secondaryHints = map[hoplite.Intent][]string{
	hoplite.IntentNews:      {"cnn", "bbc", "reuters", "times"},
	hoplite.IntentTechnical: {"github", "stackoverflow", "rfc", "spec"},
	hoplite.IntentShopping:  {"amazon", "bestbuy", "walmart", "review"},
	hoplite.IntentAcademic:  {"springer", "nature", "ieee", "acm"},
	hoplite.IntentLocal:     {"city", "restaurant", "hotel"},
}

var tokenPattern = regexp.MustCompile(`[\w']+`)

// Classifier scores queries against keyword and hint tables.
type Classifier struct{}

// NewClassifier creates a keyword-based classifier.
func NewClassifier() *Classifier { return &Classifier{} }

// Classify returns the best-scoring intent and a confidence in [0, 1],
// rounded to two decimals. Empty or unscoreable queries classify as general
// with zero confidence.
func (c *Classifier) Classify(query string) (hoplite.Intent, float64) {
	tokens := tokenPattern.FindAllString(strings.ToLower(query), -1)
	if len(tokens) == 0 {
		return hoplite.IntentGeneral, 0
	}

	joined := strings.Join(tokens, " ")
	scores := make(map[hoplite.Intent]float64)

	for intent, phrases := range keywordPhrases {
		for _, phrase := range phrases {
			if strings.Contains(joined, phrase) {
				scores[intent] += 2
			}
		}
	}

	tokenSet := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		tokenSet[token] = struct{}{}
	}
	for intent, hints := range secondaryHints {
		for _, hint := range hints {
			if _, ok := tokenSet[hint]; ok {
				scores[intent]++
			}
		}
	}

	if strings.Contains(strings.ToLower(query), "site:") && strings.Contains(joined, "github") {
		scores[hoplite.IntentTechnical]++
	}
	for _, token := range tokens {
		if len(token) == 4 && isDigits(token) {
			scores[hoplite.IntentNews] += 0.5
			break
		}
	}

	if len(scores) == 0 {
		return hoplite.IntentGeneral, 0
	}

	// Fixed intent order makes equal scores resolve deterministically.
	best := hoplite.IntentGeneral
	bestScore := 0.0
	for _, intent := range hoplite.Intents {
		if score, ok := scores[intent]; ok && score > bestScore {
			best = intent
			bestScore = score
		}
	}

	confidence := bestScore / 4.0
	if confidence > 1 {
		confidence = 1
	}
	return best, math.Round(confidence*100) / 100
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
