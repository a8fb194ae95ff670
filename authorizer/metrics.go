package authorizer

import (
    "errors"

    "github.com/alovak/mini-authorizer/authorizer/models"
    "github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service counters.
type Metrics struct {
    cardsIssued    prometheus.Counter
    authorizations *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
    m := &Metrics{
        cardsIssued: prometheus.NewCounter(prometheus.CounterOpts{
            Namespace: "authorizer",
            Name:      "cards_issued_total",
            Help:      "Number of cards issued.",
        }),
        authorizations: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: "authorizer",
            Name:      "authorizations_total",
            Help:      "Authorization requests by result.",
        }, []string{"result"}),
    }
    reg.MustRegister(m.cardsIssued, m.authorizations)
    return m
}

func (m *Metrics) observeAuthorization(err error) {
    m.authorizations.WithLabelValues(resultLabel(err)).Inc()
}

func resultLabel(err error) string {
    if err == nil {
        return "authorized"
    }
    if token := models.Token(err); token != "" {
        return token
    }
    if errors.Is(err, models.ErrConcurrentUpdate) {
        return "conflict"
    }
    return "error"
}
