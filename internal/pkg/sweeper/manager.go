package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stammtisch-app/stammtisch/internal/pkg/billing"
	counter "github.com/stammtisch-app/stammtisch/internal/pkg/metrics/counter"
)

// Manager runs the periodic billing maintenance tasks: expiring lapsed
// grace periods and converging duplicate profiles.
type Manager struct {
	svc          *billing.Service
	expiryTicker *time.Ticker
	dedupTicker  *time.Ticker
	stopCh       chan struct{}
	wg           sync.WaitGroup
	mu           sync.Mutex
	running      bool

	expiryInterval time.Duration
	dedupInterval  time.Duration
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global sweeper manager (singleton). The billing
// service must be set before the first Start via Init.
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{
			stopCh:         make(chan struct{}),
			expiryInterval: 15 * time.Minute,
			dedupInterval:  time.Hour,
		}
	})
	return globalManager
}

// Init wires the billing service into the manager.
func (m *Manager) Init(svc *billing.Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.svc = svc
}

// Start starts the background sweep workers.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	if m.svc == nil {
		log.Error("[Sweeper] Not starting: billing service not initialized")
		return
	}

	// Recreate stop channel for each start cycle so the manager can be
	// restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[Sweeper] Starting background sweeps")

	m.expiryTicker = time.NewTicker(m.expiryInterval)
	m.wg.Add(1)
	go m.expiryWorker()

	m.dedupTicker = time.NewTicker(m.dedupInterval)
	m.wg.Add(1)
	go m.dedupWorker()

	log.Info("[Sweeper] Started successfully")
}

// Stop stops the background workers and waits for them to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Sweeper] Stopping background sweeps...")

	if m.expiryTicker != nil {
		m.expiryTicker.Stop()
	}
	if m.dedupTicker != nil {
		m.dedupTicker.Stop()
	}

	close(m.stopCh)
	m.running = false

	m.wg.Wait()

	log.Info("[Sweeper] Stopped successfully")
}

// expiryWorker expires CANCELLED accounts whose grace period lapsed.
func (m *Manager) expiryWorker() {
	defer m.wg.Done()
	log.Infof("[Sweeper] Started expiry worker (interval: %s)", m.expiryInterval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[Sweeper] Expiry worker stopping")
			return
		case <-m.expiryTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			n, err := m.svc.RunExpirySweep(ctx)
			cancel()
			if err != nil {
				log.Errorf("[Sweeper] Expiry sweep failed: %v", err)
				continue
			}
			if err := counter.MarkSweepRun(counter.SweepExpiry); err != nil {
				log.Warnf("[Sweeper] Record expiry sweep run: %v", err)
			}
			if n > 0 {
				log.Infof("[Sweeper] Expired %d lapsed account(s)", n)
			}
		}
	}
}

// dedupWorker converges duplicate profiles across all addresses.
func (m *Manager) dedupWorker() {
	defer m.wg.Done()
	log.Infof("[Sweeper] Started dedup worker (interval: %s)", m.dedupInterval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[Sweeper] Dedup worker stopping")
			return
		case <-m.dedupTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			n, err := m.svc.RunDedupSweep(ctx)
			cancel()
			if err != nil {
				log.Errorf("[Sweeper] Dedup sweep failed: %v", err)
				continue
			}
			if err := counter.MarkSweepRun(counter.SweepDedup); err != nil {
				log.Warnf("[Sweeper] Record dedup sweep run: %v", err)
			}
			if n > 0 {
				log.Infof("[Sweeper] Converged %d duplicate address(es)", n)
			}
		}
	}
}
