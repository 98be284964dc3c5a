package emotion

import (
	"context"
	"fmt"
	"time"

	"github.com/mileusna/crontab"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/heartlog/backend/internal/logger"
	"github.com/zhouzirui/heartlog/backend/internal/model/chat"
)

const (
	DefaultBackfillSpec  = "*/5 * * * *"
	defaultBackfillBatch = 100
	backfillJobTimeout   = 2 * time.Minute
)

// UnclassifiedLister 列出尚未识别情绪的消息，按创建时间升序。
type UnclassifiedLister interface {
	ListUnclassified(ctx context.Context, limit int) ([]chat.Message, error)
}

// Enqueuer 接收补全任务，通常是 *Worker。
type Enqueuer interface {
	Enqueue(job Job) bool
}

// Backfill 周期性地把漏掉的消息重新放入识别队列（例如队列满被丢弃或进程重启）。
type Backfill struct {
	lister UnclassifiedLister
	queue  Enqueuer
	spec   string
	batch  int
	ctab   *crontab.Crontab
	log    zerolog.Logger
}

func NewBackfill(lister UnclassifiedLister, queue Enqueuer, spec string, batch int) *Backfill {
	if spec == "" {
		spec = DefaultBackfillSpec
	}
	if batch <= 0 {
		batch = defaultBackfillBatch
	}
	return &Backfill{
		lister: lister,
		queue:  queue,
		spec:   spec,
		batch:  batch,
		ctab:   crontab.New(),
		log:    logger.Component("emotion-backfill"),
	}
}

// Run 启动时先执行一次，然后按 cron 表达式调度，直到 ctx 结束。
func (b *Backfill) Run(ctx context.Context) error {
	b.RunOnce(ctx)

	if err := b.ctab.AddJob(b.spec, func() {
		jobCtx, cancel := context.WithTimeout(ctx, backfillJobTimeout)
		defer cancel()
		b.RunOnce(jobCtx)
	}); err != nil {
		return fmt.Errorf("schedule emotion backfill %q: %w", b.spec, err)
	}
	b.log.Info().Str("spec", b.spec).Int("batch", b.batch).Msg("emotion backfill scheduled")

	<-ctx.Done()
	b.ctab.Shutdown()
	return nil
}

// RunOnce 入队一批未识别的消息，返回成功入队的数量。
func (b *Backfill) RunOnce(ctx context.Context) int {
	messages, err := b.lister.ListUnclassified(ctx, b.batch)
	if err != nil {
		b.log.Error().Err(err).Msg("list unclassified messages failed")
		return 0
	}

	enqueued := 0
	for _, m := range messages {
		if !b.queue.Enqueue(JobFromMessage("", m)) {
			break
		}
		enqueued++
	}
	if enqueued > 0 {
		b.log.Info().Int("enqueued", enqueued).Int("found", len(messages)).Msg("emotion backfill enqueued messages")
	}
	return enqueued
}
