package changefeed

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Config tunes the dispatcher worker pool.
type Config struct {
	Workers        int
	Buffer         int
	Timeout        time.Duration
	HandoffTimeout time.Duration
}

// DefaultConfig is used for zero fields of a supplied Config.
var DefaultConfig = Config{
	Workers:        4,
	Buffer:         256,
	Timeout:        30 * time.Second,
	HandoffTimeout: 15 * time.Millisecond,
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultConfig.Workers
	}
	if c.Buffer < 0 {
		c.Buffer = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultConfig.Timeout
	}
	if c.HandoffTimeout < 0 {
		c.HandoffTimeout = 0
	}
	return c
}

// Dispatcher hands changes to a bounded pool of workers that publish them
// asynchronously. Notify never blocks longer than the handoff timeout, so a
// slow transport cannot stall the mutation that produced the change.
type Dispatcher struct {
	cfg    Config
	pub    Publisher
	logger *log.Logger

	mu     sync.RWMutex
	jobs   chan Change
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts the worker pool.
func NewDispatcher(pub Publisher, cfg Config, logger *log.Logger) *Dispatcher {
	if pub == nil {
		panic("changefeed.NewDispatcher: publisher is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	cfg = cfg.withDefaults()
	d := &Dispatcher{
		cfg:    cfg,
		pub:    pub,
		logger: logger,
		jobs:   make(chan Change, cfg.Buffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	logger.Infof("change dispatcher started, workers: %d, buffer: %d, timeout: %v, handoff: %v", cfg.Workers, cfg.Buffer, cfg.Timeout, cfg.HandoffTimeout)
	return d
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for ch := range d.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
		err := d.pub.Publish(ctx, []Change{ch})
		cancel()
		if err != nil {
			d.logger.Errorf("change publish failed, err: %v, type: %s, id: %s, worker: %d", err, ch.Type, ch.ID, id)
		}
	}
}

// Notify queues ch for publishing. It reports false when the buffer stayed
// full for the whole handoff timeout or the dispatcher is closed.
func (d *Dispatcher) Notify(ch Change) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	select {
	case d.jobs <- ch:
		return true
	default:
	}

	if d.cfg.HandoffTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(d.cfg.HandoffTimeout)
	defer timer.Stop()

	select {
	case d.jobs <- ch:
		return true
	case <-timer.C:
		return false
	}
}

// Close stops accepting changes and waits for queued ones to be published.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
}
