package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"xclone/internal/queue"
)

const (
	DefaultWorkerCount = 2

	// DefaultBatchSize is the number of messages to read per batch
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long XREADGROUP waits for new messages
	DefaultBlockTimeout = 5 * time.Second

	// DefaultJanitorInterval is how often the maintenance task runs
	DefaultJanitorInterval = time.Hour
)

// Janitor is a periodic maintenance task, such as purging expired sessions.
type Janitor interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Manager runs worker goroutines that consume the jobs stream, plus an
// optional janitor loop.
type Manager struct {
	consumer    queue.Consumer
	handler     *Handler
	janitor     Janitor
	workerCount int
	batchSize   int64
	blockTime   time.Duration
	janitorTick time.Duration
	hostname    string
	log         zerolog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

type ManagerConfig struct {
	WorkerCount     int
	BatchSize       int64
	BlockTimeout    time.Duration
	JanitorInterval time.Duration
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		WorkerCount:     DefaultWorkerCount,
		BatchSize:       DefaultBatchSize,
		BlockTimeout:    DefaultBlockTimeout,
		JanitorInterval: DefaultJanitorInterval,
	}
}

func NewManager(consumer queue.Consumer, handler *Handler, cfg ManagerConfig) *Manager {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	}
	if cfg.JanitorInterval <= 0 {
		cfg.JanitorInterval = DefaultJanitorInterval
	}

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "local"
	}

	return &Manager{
		consumer:    consumer,
		handler:     handler,
		workerCount: cfg.WorkerCount,
		batchSize:   cfg.BatchSize,
		blockTime:   cfg.BlockTimeout,
		janitorTick: cfg.JanitorInterval,
		hostname:    hostname,
		log:         log.With().Str("component", "Manager").Logger(),
	}
}

// SetJanitor registers a maintenance task run every JanitorInterval.
func (m *Manager) SetJanitor(j Janitor) {
	m.janitor = j
}

// Start launches the workers. Stop must be called to shut them down.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, queue.StreamJobs, queue.ConsumerGroupJobs); err != nil {
		m.cancel()
		return err
	}

	for i := 1; i <= m.workerCount; i++ {
		m.wg.Add(1)
		go m.runWorker(i, ConsumerName(m.hostname, i))
	}

	if m.janitor != nil {
		m.wg.Add(1)
		go m.runJanitor()
	}

	m.log.Info().Int("workers", m.workerCount).Str("stream", queue.StreamJobs).
		Str("group", queue.ConsumerGroupJobs).Msg("Workers started")
	return nil
}

// Stop cancels the workers and waits for in-flight batches to finish.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	m.log.Info().Msg("Workers stopped")
}

func (m *Manager) runWorker(workerID int, consumerName string) {
	defer m.wg.Done()
	logger := m.log.With().Int("worker", workerID).Str("consumer", consumerName).Logger()

	m.processPending(logger, consumerName)

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
			m.processMessages(logger, consumerName)
		}
	}
}

// processPending drains messages delivered to this consumer before a restart.
func (m *Manager) processPending(logger zerolog.Logger, consumerName string) {
	for m.ctx.Err() == nil {
		messages, err := m.consumer.ReadPending(m.ctx, queue.StreamJobs, queue.ConsumerGroupJobs, consumerName, m.batchSize)
		if err != nil {
			logger.Warn().Err(err).Msg("Reading pending messages failed")
			return
		}
		if len(messages) == 0 {
			return
		}
		logger.Info().Int("count", len(messages)).Msg("Processing pending messages")
		m.handleMessages(logger, messages)
	}
}

func (m *Manager) processMessages(logger zerolog.Logger, consumerName string) {
	messages, err := m.consumer.Read(m.ctx, queue.StreamJobs, queue.ConsumerGroupJobs, consumerName, m.batchSize, m.blockTime)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		logger.Warn().Err(err).Msg("Read failed")
		select {
		case <-m.ctx.Done():
		case <-time.After(time.Second):
		}
		return
	}

	if len(messages) > 0 {
		m.handleMessages(logger, messages)
	}
}

// handleMessages acks every message after handling. Failed repairs have
// already been re-enqueued by the handler, so nothing is retried from the
// pending list. A job interrupted by shutdown stays pending for the restart.
func (m *Manager) handleMessages(logger zerolog.Logger, messages []queue.Message) {
	for _, msg := range messages {
		if err := m.handler.HandleEvent(m.ctx, msg.Event); err != nil {
			if m.ctx.Err() != nil {
				logger.Info().Str("msg_id", msg.ID).Msg("Shutdown during job; left pending")
				return
			}
			logger.Warn().Err(err).Str("msg_id", msg.ID).Str("type", msg.Event.Type).Msg("Job failed")
		}

		// Ack with a fresh context so shutdown does not leave handled jobs pending.
		ackCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := m.consumer.Ack(ackCtx, queue.StreamJobs, queue.ConsumerGroupJobs, msg.ID); err != nil {
			logger.Warn().Err(err).Str("msg_id", msg.ID).Msg("Ack failed")
		}
		cancel()
	}
}

func (m *Manager) runJanitor() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.janitorTick)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			n, err := m.janitor.PurgeExpired(m.ctx)
			if err != nil {
				m.log.Warn().Err(err).Msg("Janitor run failed")
				continue
			}
			m.log.Info().Int64("purged", n).Msg("Janitor run OK")
		}
	}
}

// ConsumerName is stable per host and worker slot, so a restarted worker
// picks up its own pending messages.
func ConsumerName(hostname string, workerID int) string {
	return fmt.Sprintf("%s-worker-%d", hostname, workerID)
}
