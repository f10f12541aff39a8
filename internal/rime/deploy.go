package rime

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hamster/internal/notify"
)

// Deployment is one asynchronous deploy. Requests made while it runs join it.
type Deployment struct {
	ID      uuid.UUID
	Started time.Time

	done     chan struct{}
	finished time.Time
	err      error
}

func newDeployment() *Deployment {
	return &Deployment{
		ID:      uuid.New(),
		Started: time.Now(),
		done:    make(chan struct{}),
	}
}

// Done is closed when the deployment ends.
func (d *Deployment) Done() <-chan struct{} {
	return d.done
}

// Err returns the result once Done is closed: nil, ErrDeployFailed, or
// ErrEngineNotReady when the manager shut down meanwhile.
func (d *Deployment) Err() error {
	select {
	case <-d.done:
		return d.err
	default:
		return nil
	}
}

// Duration is how long the deployment took, or has taken so far.
func (d *Deployment) Duration() time.Duration {
	select {
	case <-d.done:
		return d.finished.Sub(d.Started)
	default:
		return time.Since(d.Started)
	}
}

// Wait blocks until the deployment ends or ctx is done.
func (d *Deployment) Wait(ctx context.Context) error {
	select {
	case <-d.done:
		return d.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deploy starts a deployment in the background and returns it. While one
// is running, Deploy returns that one. The bridge sees deployStart and
// then deploySuccess or deployFailure.
func (m *Manager) Deploy() (*Deployment, error) {
	m.mu.Lock()
	switch m.state {
	case StateDeploying:
		d := m.deploy
		m.mu.Unlock()
		return d, nil
	case StateReady:
	default:
		st := m.state
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrEngineNotReady, st)
	}

	d := newDeployment()
	m.state = StateDeploying
	m.deploy = d
	m.mu.Unlock()

	m.logger.Info("deploy started", "deployment", d.ID.String())
	m.events.push(notify.Event{Kind: notify.DeployStart})
	m.flush()

	go m.runDeploy(d)
	return d, nil
}

func (m *Manager) runDeploy(d *Deployment) {
	ok := m.engine.Deploy()

	m.mu.Lock()
	shutdown := m.state == StateShutdown
	if !shutdown {
		m.state = StateReady
		// Deployed data may invalidate the session.
		m.generation++
	}
	m.deploy = nil
	m.mu.Unlock()

	switch {
	case shutdown:
		d.err = fmt.Errorf("%w: shut down during deployment", ErrEngineNotReady)
		m.engine.Finalize()
	case ok:
		m.logger.Info("deploy succeeded", "deployment", d.ID.String(), "duration", time.Since(d.Started))
		m.events.push(notify.Event{Kind: notify.DeploySuccess})
	default:
		d.err = ErrDeployFailed
		m.logger.Warn("deploy failed", "deployment", d.ID.String(), "duration", time.Since(d.Started))
		m.events.push(notify.Event{Kind: notify.DeployFailure})
	}
	m.flush()

	d.finished = time.Now()
	close(d.done)
}
