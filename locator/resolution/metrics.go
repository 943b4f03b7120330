package resolution

import (
	"encore.dev/metrics"

	"encore.app/locator/model"
)

type decisionLabels struct {
	Domain   string
	Decision string
}

type outcomeLabels struct {
	Domain  string
	Outcome string
}

var dispatchDecisions = metrics.NewCounterGroup[decisionLabels, uint64]("locator_dispatch_decisions", metrics.CounterConfig{})

var resolutionOutcomes = metrics.NewCounterGroup[outcomeLabels, uint64]("locator_resolution_outcomes", metrics.CounterConfig{})

func countDecision(domain model.Domain, d Decision) {
	dispatchDecisions.With(decisionLabels{Domain: string(domain), Decision: string(d)}).Increment()
}

// CountOutcome records how an execution ended. The Temporal driver shares it.
func CountOutcome(domain model.Domain, outcome string) {
	resolutionOutcomes.With(outcomeLabels{Domain: string(domain), Outcome: outcome}).Increment()
}
