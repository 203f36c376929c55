package marketdata

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/vitos/crypto_intel/internal/domain"
)

// API is one simulated auxiliary endpoint.
type API struct {
	Name         string
	Availability float64 // probability a probe finds it healthy
}

// SimulatedProber reports each API healthy with its configured availability.
type SimulatedProber struct {
	apis []API

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulatedProber(apis []API, seed uint64) *SimulatedProber {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &SimulatedProber{
		apis: apis,
		rng:  rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

func (p *SimulatedProber) Probe(ctx context.Context) map[string]domain.HealthStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]domain.HealthStatus, len(p.apis))
	for _, api := range p.apis {
		if ctx.Err() != nil {
			out[api.Name] = domain.StatusUnhealthy
			continue
		}
		if p.rng.Float64() < api.Availability {
			out[api.Name] = domain.StatusHealthy
		} else {
			out[api.Name] = domain.StatusUnhealthy
		}
	}
	return out
}
