package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu         sync.Mutex
	collectors []prometheus.Collector
	once       sync.Once
)

// register queues a collector for MustRegister. Called from package init()
// blocks so every metric file self-registers.
func register(cs ...prometheus.Collector) {
	mu.Lock()
	defer mu.Unlock()
	collectors = append(collectors, cs...)
}

// MustRegister registers all queued collectors with the default registry
// (idempotent).
func MustRegister() {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		prometheus.MustRegister(collectors...)
	})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
