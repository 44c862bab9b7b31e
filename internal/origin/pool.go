package origin

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"couriergate/internal/metrics"
)

type Endpoint struct {
	URL   *url.URL
	Alive bool

	hcFailures  int
	hcSuccesses int

	cbFailures       int
	circuitOpenUntil time.Time
}

type HealthCheckConfig struct {
	Path               string
	Interval           time.Duration
	Timeout            time.Duration
	UnhealthyThreshold int
	HealthyThreshold   int
}

type CircuitBreakerConfig struct {
	ConsecutiveFailures int
	Cooldown            time.Duration
}

// Pool hands out origin endpoints round-robin, skipping endpoints that
// failed health checks or whose circuit is open.
type Pool struct {
	mu        sync.Mutex
	endpoints []*Endpoint
	idx       int

	healthCfg *HealthCheckConfig
	cbCfg     *CircuitBreakerConfig
}

func NewPool(endpoints []*Endpoint, hc *HealthCheckConfig, cb *CircuitBreakerConfig) *Pool {
	for _, ep := range endpoints {
		ep.Alive = true
	}

	return &Pool{
		endpoints: endpoints,
		healthCfg: hc,
		cbCfg:     cb,
	}
}

func (p *Pool) Pick() (*Endpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.endpoints)
	if n == 0 {
		return nil, errors.New("origin has no endpoints")
	}

	now := time.Now()

	for i := 0; i < n; i++ {
		ep := p.endpoints[p.idx]
		p.idx = (p.idx + 1) % n

		if !ep.Alive {
			continue
		}

		if !ep.circuitOpenUntil.IsZero() && now.Before(ep.circuitOpenUntil) {
			continue
		}

		if !ep.circuitOpenUntil.IsZero() && now.After(ep.circuitOpenUntil) {
			ep.circuitOpenUntil = time.Time{}
			ep.cbFailures = 0
		}
		return ep, nil
	}

	return nil, errors.New("origin has no alive endpoints")
}

func (p *Pool) ReportSuccess(ep *Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ep.cbFailures = 0
}

func (p *Pool) ReportFailure(ep *Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ep.cbFailures++
	if p.cbCfg != nil && ep.cbFailures >= p.cbCfg.ConsecutiveFailures {
		ep.circuitOpenUntil = time.Now().Add(p.cbCfg.Cooldown)
	}
}

func (p *Pool) StartHealthChecks(ctx context.Context, client *http.Client) {
	if p.healthCfg == nil {
		return
	}

	hc := *p.healthCfg
	if hc.Interval <= 0 {
		hc.Interval = 10 * time.Second
	}
	if hc.Timeout <= 0 {
		hc.Timeout = 1 * time.Second
	}
	if hc.UnhealthyThreshold <= 0 {
		hc.UnhealthyThreshold = 3
	}
	if hc.HealthyThreshold <= 0 {
		hc.HealthyThreshold = 1
	}

	ticker := time.NewTicker(hc.Interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.runHealthChecks(client, hc)
			}
		}
	}()
}

func (p *Pool) runHealthChecks(client *http.Client, hc HealthCheckConfig) {
	p.mu.Lock()
	endpoints := append([]*Endpoint(nil), p.endpoints...)
	p.mu.Unlock()

	for _, ep := range endpoints {
		urlCopy := *ep.URL
		urlCopy.Path = hc.Path

		hctx, cancel := context.WithTimeout(context.Background(), hc.Timeout)
		req, err := http.NewRequestWithContext(hctx, http.MethodGet, urlCopy.String(), nil)
		if err != nil {
			cancel()
			continue
		}

		resp, err := client.Do(req)
		ok := err == nil && resp.StatusCode >= 200 && resp.StatusCode < 400
		if resp != nil {
			_ = resp.Body.Close()
		}
		cancel()

		p.mu.Lock()
		if ok {
			ep.hcFailures = 0
			ep.hcSuccesses++
			if ep.hcSuccesses >= hc.HealthyThreshold {
				ep.Alive = true
			}
		} else {
			ep.hcSuccesses = 0
			ep.hcFailures++
			if ep.hcFailures >= hc.UnhealthyThreshold {
				ep.Alive = false
			}
		}
		p.mu.Unlock()
	}

	unhealthy := 0
	p.mu.Lock()
	for _, ep := range p.endpoints {
		if !ep.Alive {
			unhealthy++
		}
	}
	p.mu.Unlock()

	metrics.SetOriginUnhealthy(float64(unhealthy))
}
