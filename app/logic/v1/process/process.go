package process

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/complypilot/complypilot/app/core"
	"github.com/complypilot/complypilot/pkg/safe"
)

const queueCapacity = 256

type Process struct {
	cron    *cron.Cron
	core    *core.Core
	queue   chan string
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
}

var p *Process

func NewProcess(core *core.Core) *Process {
	ctx, cancel := context.WithCancel(context.Background())
	p = &Process{
		cron:    cron.New(),
		core:    core,
		queue:   make(chan string, queueCapacity),
		limiter: rate.NewLimiter(rate.Limit(core.Cfg().Ingestion.GetRatePerSecond()), 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	return p
}

func (p *Process) Start() {
	for i := 0; i < p.core.Cfg().Ingestion.GetConcurrency(); i++ {
		go safe.RunWithComponent(p.runWorker, "process.embedding.worker")
	}

	// 扫尾任务兜底：进程重启丢掉的队列项、僵死的 processing 任务
	if _, err := p.cron.AddFunc("@every 1m", func() {
		safe.RunWithComponent(p.sweepJobs, "process.embedding.sweeper")
	}); err != nil {
		slog.Error("register embedding sweeper failed", slog.String("error", err.Error()))
	}
	p.cron.Start()

	go safe.RunWithComponent(p.sweepJobs, "process.embedding.sweeper")
}

func (p *Process) Stop() {
	p.cancel()
	p.cron.Stop()
}

// Enqueue 满了直接丢，pending 状态的任务由 sweeper 周期性捞回
func Enqueue(jobID string) {
	if p == nil {
		return
	}
	select {
	case p.queue <- jobID:
	default:
		slog.Warn("embedding queue full, job left pending", slog.String("job_id", jobID))
	}
}

func (p *Process) runWorker() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case jobID := <-p.queue:
			if err := p.processJob(jobID); err != nil {
				slog.Error("process embedding job failed",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()))
			}
		}
	}
}
