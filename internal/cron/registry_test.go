package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Interval() time.Duration   { return time.Minute }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndSkipsNil(t *testing.T) {
	probe := &stubJob{name: "connectivity-probe"}
	inbox := &stubJob{name: "notification-sync"}

	registry := NewRegistry(nil, probe)
	require.NoError(t, registry.Register(nil))
	require.NoError(t, registry.Register(inbox))

	jobs := registry.Jobs()
	assert.Equal(t, []Job{probe, inbox}, jobs)

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0])
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	first := &stubJob{name: "notification-sync"}
	registry := NewRegistry(first, &stubJob{name: "notification-sync"})
	assert.Equal(t, []Job{first}, registry.Jobs())

	assert.Error(t, registry.Register(&stubJob{name: "notification-sync"}))

	var zero Registry
	assert.NoError(t, zero.Register(first))
	assert.Len(t, zero.Jobs(), 1)
}
