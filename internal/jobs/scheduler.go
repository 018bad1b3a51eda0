package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"inventory/internal/logs"
	"inventory/internal/metrics"
)

// Job — периодическая задача. Interval <= 0 — задача выключена.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// JobStatus — состояние задачи для /api/jobs.
type JobStatus struct {
	Name      string    `json:"name"`
	Interval  string    `json:"interval"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Scheduler запускает каждую задачу сразу при старте и дальше по своему тикеру.
// Запуски одной задачи не перекрываются.
type Scheduler struct {
	jobs    []Job
	Metrics *metrics.Metrics
	Timeout time.Duration

	mu      sync.Mutex
	status  map[string]*JobStatus
	running map[string]*sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewScheduler(jobs ...Job) *Scheduler {
	s := &Scheduler{
		status:  make(map[string]*JobStatus),
		running: make(map[string]*sync.Mutex),
		Timeout: 10 * time.Minute,
	}
	for _, j := range jobs {
		if j.Interval <= 0 || j.Run == nil {
			logs.Logger.WithField("job", j.Name).Info("job disabled")
			continue
		}
		s.jobs = append(s.jobs, j)
		s.status[j.Name] = &JobStatus{Name: j.Name, Interval: j.Interval.String()}
		s.running[j.Name] = &sync.Mutex{}
	}
	return s
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		logs.Logger.Warn("scheduler already running")
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, j)
	}
	logs.Logger.WithField("jobs", len(s.jobs)).Info("scheduler started")
}

// Stop отменяет контекст и ждёт завершения текущих запусков.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	logs.Logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, j Job) {
	defer s.wg.Done()
	t := time.NewTicker(j.Interval)
	defer t.Stop()

	_ = s.RunNow(ctx, j.Name)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = s.RunNow(ctx, j.Name)
		}
	}
}

// RunNow выполняет задачу немедленно (и из тикера, и вручную через API).
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	var job *Job
	for i := range s.jobs {
		if s.jobs[i].Name == name {
			job = &s.jobs[i]
		}
	}
	if job == nil {
		return ErrUnknownJob
	}

	lock := s.running[name]
	lock.Lock()
	defer lock.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	start := time.Now()
	err := job.Run(runCtx)

	s.mu.Lock()
	st := s.status[name]
	st.Runs++
	st.LastRun = start
	st.LastError = ""
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
	}
	s.mu.Unlock()
	s.Metrics.JobRun(name, err)

	entry := logs.Logger.WithFields(logrus.Fields{"job": name, "dur": time.Since(start).String()})
	if err != nil {
		entry.WithError(err).Error("job failed")
	} else {
		entry.Debug("job finished")
	}
	return err
}

func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *s.status[j.Name])
	}
	return out
}
