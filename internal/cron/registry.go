package cron

import (
	"context"
	"fmt"
	"time"
)

// Job is a named task the scheduler runs on a fixed interval.
type Job interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

// Registry holds jobs in registration order, one per name.
type Registry struct {
	order  []Job
	byName map[string]struct{}
}

// NewRegistry registers jobs, dropping nils and repeated names.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{byName: map[string]struct{}{}}
	for _, job := range jobs {
		_ = r.Register(job)
	}
	return r
}

// Register ignores nil jobs and refuses a name already taken.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	if r.byName == nil {
		r.byName = map[string]struct{}{}
	}
	if _, taken := r.byName[job.Name()]; taken {
		return fmt.Errorf("job %q already registered", job.Name())
	}
	r.byName[job.Name()] = struct{}{}
	r.order = append(r.order, job)
	return nil
}

func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.order...)
}
