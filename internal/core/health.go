package core

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Probes that have not answered within this window are reported as
// timed out and the endpoint returns 503.
const healthCheckTimeout = 2 * time.Second

// HealthProbe checks one dependency the service cannot run without.
type HealthProbe interface {
	// Name identifies the probe in the health response, e.g. "database".
	Name() string

	// Check reports whether the dependency is reachable. It must respect
	// the context deadline.
	Check(ctx context.Context) error
}

// Pinger is satisfied by pgxpool.Pool and anything else that can answer a
// liveness ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingProbe adapts a Pinger into a HealthProbe.
type PingProbe struct {
	ProbeName string
	Target    Pinger
}

func (p *PingProbe) Name() string { return p.ProbeName }

func (p *PingProbe) Check(ctx context.Context) error {
	return p.Target.Ping(ctx)
}

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

type probeVerdict struct {
	name string
	err  error
}

// runProbe executes a single probe, converting a panic into an error so
// one broken probe cannot take the health endpoint down with it.
func runProbe(ctx context.Context, p HealthProbe, out chan<- probeVerdict) {
	v := probeVerdict{name: p.Name()}
	defer func() {
		if r := recover(); r != nil {
			v.err = fmt.Errorf("probe panicked: %v", r)
		}
		out <- v
	}()
	v.err = p.Check(ctx)
}

// HandleHealth runs every registered probe concurrently and reports per
// component status. All probes healthy yields 200; any failure, panic or
// timeout yields 503. Mounted unauthenticated at GET /health.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if len(s.HealthProbes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	verdicts := make(chan probeVerdict, len(s.HealthProbes))
	for _, p := range s.HealthProbes {
		go runProbe(ctx, p, verdicts)
	}

	// Collect until every probe has answered or the deadline passes.
	// Probes still pending at the deadline are marked timed out; their
	// goroutines drain into the buffered channel and are dropped.
	components := make(map[string]componentStatus, len(s.HealthProbes))
	healthy := true
	pending := len(s.HealthProbes)

collect:
	for pending > 0 {
		select {
		case v := <-verdicts:
			pending--
			if v.err != nil {
				healthy = false
				components[v.name] = componentStatus{Status: "unhealthy", Message: v.err.Error()}
			} else {
				components[v.name] = componentStatus{Status: "healthy"}
			}
		case <-ctx.Done():
			break collect
		}
	}

	for _, p := range s.HealthProbes {
		if _, ok := components[p.Name()]; !ok {
			healthy = false
			components[p.Name()] = componentStatus{Status: "unhealthy", Message: "health check timed out"}
		}
	}

	resp := healthResponse{Status: "healthy", Components: components}
	status := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	JSON(w, r, status, resp)
}
