package classifier

import (
	"regexp"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_ClassifierLaws(t *testing.T) {
	properties := gopter.NewProperties(nil)
	c := Default()
	words := gen.Identifier().Map(func(s string) string {
		return "w" + strings.ToLower(s)
	})

	properties.Property("classification is deterministic", prop.ForAll(
		func(s string) bool {
			a, b := c.Classify(s), c.Classify(s)
			if len(a) != len(b) {
				return false
			}
			for i := range a {
				if a[i] != b[i] {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.Property("classification is never empty", prop.ForAll(
		func(s string) bool {
			return len(c.Classify(s)) > 0
		},
		gen.AnyString(),
	))

	properties.Property("unmatched input yields exactly the fallback agent", prop.ForAll(
		func(s string) bool {
			got := c.Classify(s)
			return len(got) == 1 && got[0] == DefaultFallbackAgent
		},
		gen.NumString(), // digits never satisfy any default rule
	))

	properties.Property("the earlier of two overlapping rules always wins", prop.ForAll(
		func(word, prefix, suffix string) bool {
			quoted := regexp.QuoteMeta(word)
			ordered, err := New([]Rule{
				{Name: "r1", Pattern: quoted, Agents: []string{"First"}},
				{Name: "r2", Pattern: quoted + "|" + quoted, Agents: []string{"Second"}},
			}, "")
			if err != nil {
				return false
			}
			return ordered.Classify(prefix+" "+word+" "+suffix)[0] == "First"
		},
		words,
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
