package core

import (
	"context"
)

// Job is a step run by the orchestrator on selected ticks.
// Jobs run on the orchestrator goroutine.
type Job interface {
	Name() string
	ShouldFire(tick uint64) bool
	Run(ctx context.Context)
}

// BaseJob carries the job name.
type BaseJob struct {
	name string
}

func NewBaseJob(name string) BaseJob {
	return BaseJob{name: name}
}

func (b *BaseJob) Name() string {
	return b.name
}

// CycleJob fires on the first tick of every cycle of n ticks.
type CycleJob struct {
	BaseJob
	every  uint64
	action func(context.Context)
}

func NewCycleJob(name string, every int, action func(context.Context)) *CycleJob {
	if every < 1 {
		every = 1
	}
	return &CycleJob{
		BaseJob: NewBaseJob(name),
		every:   uint64(every),
		action:  action,
	}
}

func (j *CycleJob) ShouldFire(tick uint64) bool {
	return tick%j.every == 0
}

func (j *CycleJob) Run(ctx context.Context) {
	j.action(ctx)
}
