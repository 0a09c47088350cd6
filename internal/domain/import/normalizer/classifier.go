// Package normalizer turns raw statement rows into canonical transactions:
// column mapping, date and amount parsing, type classification and
// tracking-key extraction.
package normalizer

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
	"golang.org/x/text/unicode/norm"

	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/model"
)

// TypeRule assigns Type when every keyword in All occurs in the lower-cased
// description and, if Any is set, at least one keyword of Any does too.
type TypeRule struct {
	Type model.Type
	All  []string
	Any  []string
}

// DefaultTypeRules is the ordered BanBajío rule set. The payroll rule sits
// after the generic withdrawal rule and never fires.
func DefaultTypeRules() []TypeRule {
	return []TypeRule{
		{Type: model.TypeSPEIReceived, All: []string{"spei"}, Any: []string{"recibido", "ingreso", "dep"}},
		{Type: model.TypeSPEISent, All: []string{"spei"}, Any: []string{"enviado", "salida", "transf"}},
		{Type: model.TypeSPEI, All: []string{"spei"}},
		{Type: model.TypeFee, Any: []string{"comision", "comisión"}},
		{Type: model.TypeVAT, Any: []string{"iva"}},
		{Type: model.TypePOS, Any: []string{"pos"}},
		{Type: model.TypeDirectDebit, Any: []string{"domicilia"}},
		{Type: model.TypeDeposit, Any: []string{"deposito", "depósito"}},
		{Type: model.TypeWithdrawal, Any: []string{"retiro"}},
		{Type: model.TypeFundsDelivery, Any: []string{"entrega de recursos"}},
		{Type: model.TypePayrollWithdrawal, Any: []string{"retiro de nomina"}},
	}
}

// Classifier finds every rule keyword in a single Aho-Corasick pass and then
// evaluates the rules in order; the first satisfied rule wins.
type Classifier struct {
	rules    []TypeRule
	keywords []string
	index    map[string]int
	matcher  *ahocorasick.Matcher
}

// NewClassifier builds the matcher for rules. Keywords are matched as plain
// substrings, so "pos" also hits "deposito".
func NewClassifier(rules []TypeRule) *Classifier {
	c := &Classifier{rules: make([]TypeRule, 0, len(rules)), index: make(map[string]int)}
	fold := func(kws []string) []string {
		out := make([]string, 0, len(kws))
		for _, kw := range kws {
			kw = Fold(kw)
			if kw == "" {
				continue
			}
			if _, ok := c.index[kw]; !ok {
				c.index[kw] = len(c.keywords)
				c.keywords = append(c.keywords, kw)
			}
			out = append(out, kw)
		}
		return out
	}
	for _, r := range rules {
		c.rules = append(c.rules, TypeRule{Type: r.Type, All: fold(r.All), Any: fold(r.Any)})
	}

	if len(c.keywords) > 0 {
		c.matcher = ahocorasick.NewStringMatcher(c.keywords)
	}
	return c
}

// Classify returns the type of description, TypeNone when no rule applies.
func (c *Classifier) Classify(description string) model.Type {
	if c.matcher == nil || strings.TrimSpace(description) == "" {
		return model.TypeNone
	}

	hits := c.matcher.MatchThreadSafe([]byte(Fold(description)))
	if len(hits) == 0 {
		return model.TypeNone
	}
	found := make([]bool, len(c.keywords))
	for _, h := range hits {
		found[h] = true
	}

	for _, rule := range c.rules {
		if c.satisfied(rule, found) {
			return rule.Type
		}
	}
	return model.TypeNone
}

func (c *Classifier) satisfied(rule TypeRule, found []bool) bool {
	for _, kw := range rule.All {
		if !found[c.index[kw]] {
			return false
		}
	}
	if len(rule.Any) == 0 {
		return len(rule.All) > 0
	}
	for _, kw := range rule.Any {
		if found[c.index[kw]] {
			return true
		}
	}
	return false
}

// Fold lower-cases s in NFC form so decomposed accents match the keywords.
func Fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}
