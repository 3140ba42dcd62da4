package jobs

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	cron "github.com/robfig/cron"
	"github.com/sirupsen/logrus"
)

type Job interface {
	ID() string
	Run()
}

type CronJob interface {
	Schedule() string
	Job
}

// TaskExecutor runs cron jobs, skipping a tick while the previous run of the
// same job is still in flight.
type TaskExecutor struct {
	cron    *cron.Cron
	jobs    []CronJob
	running mapset.Set[string]
	mu      sync.Mutex
}

func NewTaskExecutor(jobs ...CronJob) *TaskExecutor {
	return &TaskExecutor{
		cron:    cron.New(),
		jobs:    jobs,
		running: mapset.NewThreadUnsafeSet[string](),
	}
}

// Run schedules every job and starts the cron in its own goroutine.
func (t *TaskExecutor) Run() error {
	for _, job := range t.jobs {
		job := job
		if err := t.cron.AddFunc(job.Schedule(), func() { t.runOnce(job) }); err != nil {
			logrus.Errorf("failed to add task %s to cron: %v", job.ID(), err)
			return err
		}
		logrus.Infof("scheduled task %s: %s", job.ID(), job.Schedule())
	}

	t.cron.Start()

	return nil
}

func (t *TaskExecutor) runOnce(job Job) bool {
	t.mu.Lock()
	if t.running.Contains(job.ID()) {
		t.mu.Unlock()
		logrus.Warnf("task %s is already running", job.ID())
		return false
	}
	t.running.Add(job.ID())
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.running.Remove(job.ID())
	}()

	job.Run()

	return true
}

func (t *TaskExecutor) Stop() {
	logrus.Infof("stopping all tasks")
	t.cron.Stop()
}
