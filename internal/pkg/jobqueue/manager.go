package jobqueue

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// ManagerConfig controls the background tasks around the queue
type ManagerConfig struct {
	DispatchEnabled  bool
	DispatchInterval time.Duration
	DispatchLimit    int
}

// Manager manages the job queue and the periodic sync dispatcher
type Manager struct {
	queue          *Queue
	due            DueLister
	cfg            ManagerConfig
	dispatchTicker *time.Ticker
	stopCh         chan struct{}
	wg             sync.WaitGroup
	mu             sync.Mutex
	running        bool
}

// NewManager creates a manager. due may be nil when dispatching is disabled.
func NewManager(queue *Queue, due DueLister, cfg ManagerConfig) *Manager {
	if cfg.DispatchInterval <= 0 {
		cfg.DispatchInterval = 15 * time.Minute
	}
	return &Manager{
		queue:  queue,
		due:    due,
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
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

	m.queue.Start()

	if m.cfg.DispatchEnabled && m.due != nil {
		m.dispatchTicker = time.NewTicker(m.cfg.DispatchInterval)
		m.wg.Add(1)
		go m.dispatchWorker()
	}

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

	if m.dispatchTicker != nil {
		m.dispatchTicker.Stop()
	}

	// Signal workers to stop
	close(m.stopCh)
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// dispatchWorker periodically queues sync jobs for due connections
func (m *Manager) dispatchWorker() {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started sync dispatcher (interval: %s)", m.cfg.DispatchInterval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Sync dispatcher stopping")
			return
		case <-m.dispatchTicker.C:
			m.DispatchOnce()
		}
	}
}

// DispatchOnce queues sync jobs for the current due batch
func (m *Manager) DispatchOnce() int {
	if m.due == nil {
		return 0
	}
	n, err := EnqueueDueSyncs(m.queue, m.due, m.cfg.DispatchLimit)
	if err != nil {
		log.Errorf("[JobQueue Manager] Sync dispatch error: %v", err)
	}
	if n > 0 {
		log.Infof("[JobQueue Manager] Queued %d sync jobs", n)
	}
	return n
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
