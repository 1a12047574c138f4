package routing

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_FilterPredicate(t *testing.T) {
	properties := gopter.NewProperties(nil)

	agents := gen.OneConstOf("ChartAgent", "ForecastAgent", "GeneralAgent")
	methods := gen.OneConstOf(MethodRegex, MethodFallback, MethodLLMRouter)

	properties.Property("default filters accept every trace", prop.ForAll(
		func(agent string, confidence float64, success bool) bool {
			return DefaultFilters().Matches(newTrace("p", agent, confidence, 1, success))
		},
		agents,
		gen.Float64Range(0, 1),
		gen.Bool(),
	))

	properties.Property("predicate equals the conjunction of its clauses", prop.ForAll(
		func(agent, filterAgent string, method, filterMethod Method, confidence, min float64, success, showErrors bool) bool {
			trace := newTrace("p", agent, confidence, 1, success, method)
			f := RoutingFilters{Agent: filterAgent, Method: filterMethod, MinConfidence: min, ShowErrors: showErrors}
			want := (filterAgent == "" || agent == filterAgent) &&
				(filterMethod == "" || method == filterMethod) &&
				confidence >= min &&
				(showErrors || success)
			return f.Matches(trace) == want
		},
		agents,
		gen.OneConstOf("", "ChartAgent", "GeneralAgent"),
		methods,
		gen.OneConstOf(Method(""), MethodRegex, MethodFallback),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
