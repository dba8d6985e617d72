package cron

import "context"

// Job is one unit of periodic work: the offer sweep, the sync retry, a
// retention purge. Run must be safe to invoke again after an error.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry fixes the set of jobs a worker cycles through and the order they
// run in.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry from the given jobs, skipping nil entries.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		if job == nil {
			continue
		}
		registry.jobs = append(registry.jobs, job)
	}
	return registry
}

// Jobs returns the jobs in registration order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
