package license

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine metrics, exposed on the local /metrics endpoint
var (
	activationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vyapar_license_activations_total",
		Help: "License activation attempts by plan and result.",
	}, []string{"plan", "result"})

	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vyapar_license_validations_total",
		Help: "License validity evaluations by resulting state.",
	}, []string{"state"})

	revocationChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vyapar_license_revocation_checks_total",
		Help: "Remote revocation checks by outcome.",
	}, []string{"result"})

	moduleDenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vyapar_license_module_denials_total",
		Help: "Module access denials by module.",
	}, []string{"module"})
)
