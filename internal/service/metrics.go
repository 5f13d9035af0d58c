package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodebird_auth_attempts_total",
			Help: "Credential verifications by provider and result",
		},
		[]string{"provider", "result"},
	)

	tokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodebird_tokens_issued_total",
			Help: "API tokens issued by grant type",
		},
		[]string{"grant"},
	)

	federatedSignups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodebird_federated_signups_total",
			Help: "Federated users created, by provider and whether a concurrent sign-up won the race",
		},
		[]string{"provider", "outcome"},
	)
)
