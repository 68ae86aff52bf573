// Package trademark groups single-ingredient products into trademark
// clusters by resolving each ingredient text to a canonical name.
package trademark

import (
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/giygas/dpd-api/dpdparser/entities"
	"github.com/giygas/dpd-api/logging"
)

// Rule names the stage that resolved an ingredient text.
type Rule string

const (
	RuleRepetition  Rule = "repetition"
	RuleContainment Rule = "containment"
	RuleReference   Rule = "reference"
	RuleVerbatim    Rule = "verbatim"
	RuleOverride    Rule = "override"
	RuleFallback    Rule = "fallback"
)

// Resolution is the canonical trademark chosen for one ingredient text.
type Resolution struct {
	Text string
	TM   string
	Rule Rule
}

// Engine resolves ingredient texts with a fixed cascade. Each stage only
// sees the texts left unresolved by the stages before it.
type Engine struct {
	rules     Rules
	reference []string
}

// NewEngine returns an engine using rules and the single-word reference
// names, consulted in order.
func NewEngine(rules Rules, reference []string) *Engine {
	return &Engine{rules: rules, reference: reference}
}

// Resolve returns one resolution per distinct text, sorted by text. Blank
// texts have no trademark and are left out.
func (e *Engine) Resolve(texts []string) []Resolution {
	unique := slices.DeleteFunc(slices.Clone(texts), func(text string) bool {
		return strings.TrimSpace(text) == ""
	})
	sort.Strings(unique)
	unique = slices.Compact(unique)

	out := make([]Resolution, len(unique))
	for i, text := range unique {
		out[i] = Resolution{Text: text}
		if tm, ok := repetition(text); ok {
			out[i].TM, out[i].Rule = tm, RuleRepetition
		}
	}

	// Only trademarks of the repetition stage propagate by containment.
	var resolved []string
	for _, r := range out {
		if r.Rule != "" {
			resolved = append(resolved, r.TM)
		}
	}
	sort.Strings(resolved)
	resolved = slices.Compact(resolved)

	for i := range out {
		r := &out[i]
		if r.Rule != "" {
			continue
		}
		if tm, ok := firstContained(resolved, r.Text); ok {
			r.TM, r.Rule = tm, RuleContainment
			continue
		}
		if tm, ok := firstContained(e.reference, r.Text); ok {
			r.TM, r.Rule = tm, RuleReference
			continue
		}
		if tm, rule, ok := e.applyRules(r.Text); ok {
			r.TM, r.Rule = tm, rule
			continue
		}
		r.TM, r.Rule = r.Text, RuleFallback
	}

	return out
}

// repetition handles "name xname" pairs and single tokens.
func repetition(text string) (string, bool) {
	tokens := strings.Split(text, " ")
	if tokens[0] == "" {
		return "", false
	}
	switch len(tokens) {
	case 1:
		return tokens[0], true
	case 2:
		_, size := utf8.DecodeRuneInString(tokens[1])
		if tokens[1][size:] == tokens[0] {
			return tokens[0], true
		}
	}
	return "", false
}

func firstContained(names []string, text string) (string, bool) {
	for _, name := range names {
		if name != "" && strings.Contains(text, name) {
			return name, true
		}
	}
	return "", false
}

func (e *Engine) applyRules(text string) (string, Rule, bool) {
	var tm string
	var rule Rule

	if len(strings.Split(text, " ")) > e.rules.MaxTokens {
		tm, rule = text, RuleVerbatim
	}
	for _, ex := range e.rules.Exceptions {
		if strings.Contains(text, ex) {
			tm, rule = text, RuleVerbatim
		}
	}
	for _, prefix := range e.rules.VerbatimPrefixes {
		if strings.HasPrefix(text, prefix) {
			tm, rule = text, RuleVerbatim
		}
	}
	for _, o := range e.rules.Overrides {
		if strings.Contains(text, o.Match) {
			tm, rule = o.TM, RuleOverride
		}
	}

	return tm, rule, rule != ""
}

// Cluster groups the single-ingredient products by resolved trademark.
// Clusters are sorted by trademark and each family keeps product order.
func (e *Engine) Cluster(products []entities.DrugProduct) []entities.TrademarkCluster {
	var texts []string
	for _, p := range products {
		if text, ok := p.SingleIngredient(); ok {
			texts = append(texts, text)
		}
	}

	resolutions := e.Resolve(texts)
	tmByText := make(map[string]string, len(resolutions))
	for _, r := range resolutions {
		tmByText[r.Text] = r.TM
	}

	counts := Summary(resolutions)
	logging.Info("Ingredient texts resolved",
		"texts", len(resolutions),
		"repetition", counts[RuleRepetition],
		"containment", counts[RuleContainment],
		"reference", counts[RuleReference],
		"verbatim", counts[RuleVerbatim],
		"override", counts[RuleOverride],
		"fallback", counts[RuleFallback])

	families := make(map[string][]entities.DrugProduct)
	for _, p := range products {
		text, ok := p.SingleIngredient()
		if !ok {
			continue
		}
		tm, ok := tmByText[text]
		if !ok {
			continue
		}
		families[tm] = append(families[tm], p)
	}

	tms := make([]string, 0, len(families))
	for tm := range families {
		tms = append(tms, tm)
	}
	sort.Strings(tms)

	clusters := make([]entities.TrademarkCluster, len(tms))
	for i, tm := range tms {
		clusters[i] = entities.TrademarkCluster{TM: tm, Family: families[tm]}
	}
	return clusters
}

// Summary counts resolutions per rule.
func Summary(resolutions []Resolution) map[Rule]int {
	counts := make(map[Rule]int)
	for _, r := range resolutions {
		counts[r.Rule]++
	}
	return counts
}
