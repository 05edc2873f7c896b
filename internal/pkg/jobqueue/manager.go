package jobqueue

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fielddesk/fielddesk/internal/pkg/env"
	metrics "github.com/fielddesk/fielddesk/internal/pkg/metrics/counter"
	"github.com/fielddesk/fielddesk/internal/pkg/syncengine"
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue              *Queue
	watchRenewalTicker *time.Ticker
	counterFlushTicker *time.Ticker
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// Initialize builds the global manager around the sync engine. Must be called
// once during startup before GetManager.
func Initialize(engine *syncengine.Engine) *Manager {
	managerOnce.Do(func() {
		workerCount := 5
		if v, err := strconv.Atoi(env.GetEnv("JOBQUEUE_WORKERS", "5")); err == nil && v > 0 {
			workerCount = v
		}

		globalManager = &Manager{
			queue:  NewQueue(workerCount, engine),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	if globalManager == nil {
		panic("Job queue manager not initialized. Call Initialize first.")
	}
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	// Start the job queue
	m.queue.Start()

	// Watch subscriptions are renewed hourly; the renewal window is wide
	// enough that one missed run does not lose any channel
	renewalInterval := time.Hour
	if v, err := strconv.Atoi(env.GetEnv("WATCH_RENEWAL_INTERVAL_MINUTES", "60")); err == nil && v > 0 {
		renewalInterval = time.Duration(v) * time.Minute
	}
	m.watchRenewalTicker = time.NewTicker(renewalInterval)
	m.wg.Add(1)
	go m.watchRenewalWorker()

	// Start counter flush worker (Redis -> DB) every 5 seconds
	m.counterFlushTicker = time.NewTicker(5 * time.Second)
	m.wg.Add(1)
	go m.counterFlushWorker()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.watchRenewalTicker != nil {
		m.watchRenewalTicker.Stop()
	}
	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}

	// Signal workers to stop
	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	// Stop the job queue
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// watchRenewalWorker periodically enqueues a watch renewal pass
func (m *Manager) watchRenewalWorker() {
	defer m.wg.Done()
	log.Info("[JobQueue Manager] Started watch renewal worker")

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Watch renewal worker stopping")
			return
		case <-m.watchRenewalTicker.C:
			if _, err := m.queue.EnqueueJob(JobTypeWatchRenewal, map[string]interface{}{}); err != nil {
				log.Errorf("[JobQueue Manager] Error enqueuing watch renewal: %v", err)
			}
		}
	}
}

// counterFlushWorker periodically flushes sync counters from Redis to DB
func (m *Manager) counterFlushWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Counter flush worker stopping")
			return
		case <-m.counterFlushTicker.C:
			if err := metrics.FlushAll(); err != nil {
				log.Errorf("[JobQueue Manager] Counter flush error: %v", err)
			}
		}
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
