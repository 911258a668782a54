package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CalcSaveTotal counts fair-price save outcomes (saved, rejected, error).
	CalcSaveTotal *prometheus.CounterVec
	// CalcDeleteTotal counts saved-calculation delete outcomes.
	CalcDeleteTotal *prometheus.CounterVec
	// ProductWriteTotal counts product listing mutations by action and result.
	ProductWriteTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CalcSaveTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calc_save_total",
			Help:      "Count of fair-price calculation save outcomes.",
		}, []string{"result"})
		CalcDeleteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calc_delete_total",
			Help:      "Count of saved-calculation delete outcomes.",
		}, []string{"result"})
		ProductWriteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "product_write_total",
			Help:      "Count of product listing writes by action and outcome.",
		}, []string{"action", "result"})

		CalcSaveTotal = registerDomainCounterVec(reg, CalcSaveTotal)
		CalcDeleteTotal = registerDomainCounterVec(reg, CalcDeleteTotal)
		ProductWriteTotal = registerDomainCounterVec(reg, ProductWriteTotal)
	})
}

func registerDomainCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
			return c
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
	return c
}
