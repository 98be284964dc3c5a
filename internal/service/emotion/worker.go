package emotion

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/heartlog/backend/internal/logger"
	"github.com/zhouzirui/heartlog/backend/internal/metrics"
	"github.com/zhouzirui/heartlog/backend/internal/model/chat"
	"github.com/zhouzirui/heartlog/backend/internal/realtime"
	"github.com/zhouzirui/heartlog/backend/internal/store"
)

// Job 是一条待识别情绪的消息。UserID 为空时由 worker 通过会话补全。
type Job struct {
	MessageID string
	ChatID    string
	UserID    string
	Content   string
}

// JobFromMessage 由已保存的消息构造任务。
func JobFromMessage(userID string, m chat.Message) Job {
	return Job{MessageID: m.ID, ChatID: m.ChatID, UserID: userID, Content: m.Content}
}

// WorkerStore 是 worker 写回结果所需的存储能力。
type WorkerStore interface {
	GetChat(ctx context.Context, id string) (chat.Chat, error)
	UpdateMessageEmotion(ctx context.Context, id, label string, confidence float64) error
}

// Publisher 接收识别完成的事件。
type Publisher interface {
	Publish(userID string, ev realtime.Event) int
}

// Worker 异步识别消息情绪：有界队列 + 固定数量的 goroutine。队列满时丢弃，由补全任务兜底。
type Worker struct {
	svc     *Service
	store   WorkerStore
	pub     Publisher
	queue   chan Job
	workers int
	log     zerolog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker 创建 worker，pub 可以为 nil。
func NewWorker(svc *Service, st WorkerStore, pub Publisher, workers, queueSize int) *Worker {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Worker{
		svc:      svc,
		store:    st,
		pub:      pub,
		queue:    make(chan Job, queueSize),
		workers:  workers,
		log:      logger.Component("emotion-worker"),
		inflight: make(map[string]struct{}),
	}
}

// Start 启动处理 goroutine，直到 ctx 结束或调用 Stop。
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.loop(ctx)
		}()
	}
	w.log.Info().Int("workers", w.workers).Int("queue", cap(w.queue)).Msg("emotion worker started")
}

// Stop 停止处理并等待进行中的任务结束。队列中尚未处理的任务会被丢弃。
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// Enqueue 非阻塞地提交任务。同一消息已在队列中时视为成功；队列已满时返回 false。
func (w *Worker) Enqueue(job Job) bool {
	if job.MessageID == "" {
		return false
	}

	w.mu.Lock()
	if _, dup := w.inflight[job.MessageID]; dup {
		w.mu.Unlock()
		return true
	}
	w.inflight[job.MessageID] = struct{}{}
	w.mu.Unlock()

	select {
	case w.queue <- job:
		return true
	default:
		w.done(job.MessageID)
		metrics.RecordQueueDrop()
		w.log.Warn().Str("message_id", job.MessageID).Msg("emotion queue full, message left for backfill")
		return false
	}
}

// Pending 返回排队及处理中的任务数。
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.inflight)
}

func (w *Worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.queue:
			w.process(ctx, job)
			w.done(job.MessageID)
		}
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	result := w.svc.Classify(ctx, job.Content)

	if err := w.store.UpdateMessageEmotion(ctx, job.MessageID, string(result.Emotion), result.Confidence); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			w.log.Debug().Str("message_id", job.MessageID).Msg("message gone before classification finished")
			return
		}
		w.log.Error().Err(err).Str("message_id", job.MessageID).Msg("save emotion failed")
		return
	}

	if w.pub == nil {
		return
	}
	userID := job.UserID
	if userID == "" {
		c, err := w.store.GetChat(ctx, job.ChatID)
		if err != nil {
			w.log.Debug().Err(err).Str("chat_id", job.ChatID).Msg("skip publish, chat lookup failed")
			return
		}
		userID = c.UserID
	}
	w.pub.Publish(userID, realtime.Event{
		Type:       realtime.EventEmotion,
		ChatID:     job.ChatID,
		MessageID:  job.MessageID,
		Emotion:    string(result.Emotion),
		Confidence: result.Confidence,
	})
}

func (w *Worker) done(messageID string) {
	w.mu.Lock()
	delete(w.inflight, messageID)
	w.mu.Unlock()
}
