package qvar

/*
Regulator controls the flow of circuit submissions to a backend. GuardedBackend
consults its regulators before every submission.

Observe hands the regulator the submission metrics it may base decisions on.
Limit reports whether the next submission should be held back.
Renormalize pushes the regulator back towards normal operation.
*/
type Regulator interface {
	Observe(metrics *Metrics)
	Limit() bool
	Renormalize()
}
