package scheduler

import (
	"context"
	"time"

	obscontext "github.com/smallbiznis/coverdesk/internal/observability/context"
	obslogger "github.com/smallbiznis/coverdesk/internal/observability/logger"
	"go.uber.org/zap"
)

type jobRun struct {
	job        string
	runID      string
	startedAt  time.Time
	alertCount int
	errorCount int
}

type jobRunKey struct{}

func (r *jobRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.alertCount += count
}

func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.errorCount++
}

func (s *Scheduler) startJobRun(ctx context.Context, job string) (context.Context, *jobRun) {
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		startedAt: time.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithRequestID(ctx, run.runID)
	return ctx, run
}

func jobRunFromContext(ctx context.Context) *jobRun {
	if run, ok := ctx.Value(jobRunKey{}).(*jobRun); ok {
		return run
	}
	return nil
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	s.logger(ctx).Debug("scheduler.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", time.Since(run.startedAt).Milliseconds()),
		zap.Int("alert_count", run.alertCount),
		zap.Int("error_count", run.errorCount),
	}
	log := s.logger(ctx)
	if run.errorCount > 0 {
		log.Warn("scheduler.job.finish", fields...)
		return
	}
	log.Info("scheduler.job.finish", fields...)
}

// logAlertError records a failed alert without aborting the job.
func (s *Scheduler) logAlertError(ctx context.Context, msg string, err error, fields ...zap.Field) {
	if run := jobRunFromContext(ctx); run != nil {
		run.IncError()
		fields = append(fields, zap.String("job", run.job))
	}
	s.logger(ctx).Error(msg, append(fields, zap.Error(err))...)
}
