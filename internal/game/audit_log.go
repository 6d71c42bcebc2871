package game

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	auditBufferSize     = 1024                   // Circular buffer size
	auditMaxPerSec      = 10000                  // Global rate limit
	auditMaxPerClient   = 100                    // Per-session rate limit per second
	auditFlushSize      = 64                     // Records per batch write
	auditFlushInterval  = 100 * time.Millisecond // How often to flush
	auditLimiterCleanup = 5 * time.Minute        // Cleanup interval for session limiters
)

// AuditRecord is one consumed event as it lands in the audit trail. The
// in-memory match history stays inside State; this is the durable mirror.
type AuditRecord struct {
	Sequence  uint64          `json:"sequence"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Tick      uint64          `json:"tick"`
	ClientID  uint64          `json:"clientId"` // 0 for server-originated events
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// AuditLog is a bounded, rate-limited, asynchronous sink for consumed
// events. Writes never block the tick loop: records land in a circular
// buffer and a background goroutine flushes them to newline-delimited JSON.
// Under flood the oldest records are dropped, never the loop stalled.
type AuditLog struct {
	buffer    [auditBufferSize]AuditRecord
	writeHead uint64 // atomic - producer position
	readHead  uint64 // atomic - consumer position

	globalLimiter  *rate.Limiter
	clientLimiters sync.Map // map[uint64]*clientLimiterEntry

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	filePath string
	file     *os.File
	fileMu   sync.Mutex

	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
}

type clientLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// NewAuditLog creates an audit log. It stays inert until Start is called.
func NewAuditLog() *AuditLog {
	return &AuditLog{
		globalLimiter: rate.NewLimiter(auditMaxPerSec, auditMaxPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start opens the output file and begins the async writer goroutines.
func (al *AuditLog) Start(filePath string) error {
	if al.running.Load() {
		return nil
	}

	al.filePath = filePath

	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		al.file = file
	}

	al.running.Store(true)
	al.writerWg.Add(2)
	go al.writerLoop()
	go al.cleanupLoop()

	return nil
}

// Stop flushes what it can and shuts the writer down.
func (al *AuditLog) Stop() {
	al.stopOnce.Do(func() {
		al.running.Store(false)
		close(al.stopChan)
		al.writerWg.Wait()

		al.fileMu.Lock()
		if al.file != nil {
			al.file.Close()
		}
		al.fileMu.Unlock()
	})
}

// Record appends a consumed event to the trail. Returns false if the record
// was dropped by rate limiting or backpressure.
func (al *AuditLog) Record(event Event, tick uint64, clientID uint64) bool {
	if !al.running.Load() {
		return false
	}

	if !al.globalLimiter.Allow() {
		atomic.AddUint64(&al.droppedCount, 1)
		return false
	}

	// Per-session limit so one flooding client can't evict everyone else's
	// records from the window.
	if clientID != 0 {
		limiter := al.getClientLimiter(clientID)
		if !limiter.Allow() {
			atomic.AddUint64(&al.droppedCount, 1)
			return false
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		atomic.AddUint64(&al.droppedCount, 1)
		return false
	}

	head := atomic.AddUint64(&al.writeHead, 1)
	tail := atomic.LoadUint64(&al.readHead)

	// Buffer full: drop the oldest record (rolling window).
	if head-tail >= auditBufferSize {
		atomic.AddUint64(&al.readHead, 1)
		atomic.AddUint64(&al.droppedCount, 1)
	}

	idx := head % auditBufferSize
	al.buffer[idx] = AuditRecord{
		Sequence:  head,
		Type:      event.Type(),
		Timestamp: time.Now().UnixNano(),
		Tick:      tick,
		ClientID:  clientID,
		Payload:   payload,
	}

	atomic.AddUint64(&al.totalCount, 1)
	return true
}

func (al *AuditLog) getClientLimiter(clientID uint64) *rate.Limiter {
	if entry, ok := al.clientLimiters.Load(clientID); ok {
		e := entry.(*clientLimiterEntry)
		e.lastUsed = time.Now()
		return e.limiter
	}

	entry := &clientLimiterEntry{
		limiter:  rate.NewLimiter(auditMaxPerClient, auditMaxPerClient/10),
		lastUsed: time.Now(),
	}
	actual, _ := al.clientLimiters.LoadOrStore(clientID, entry)
	return actual.(*clientLimiterEntry).limiter
}

func (al *AuditLog) writerLoop() {
	defer al.writerWg.Done()

	ticker := time.NewTicker(auditFlushInterval)
	defer ticker.Stop()

	batch := make([]AuditRecord, 0, auditFlushSize)

	for {
		select {
		case <-al.stopChan:
			batch = al.collectBatch(batch[:0])
			if len(batch) > 0 {
				al.flushBatch(batch)
			}
			return

		case <-ticker.C:
			batch = al.collectBatch(batch[:0])
			if len(batch) > 0 {
				al.flushBatch(batch)
			}
		}
	}
}

func (al *AuditLog) cleanupLoop() {
	defer al.writerWg.Done()

	ticker := time.NewTicker(auditLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-al.stopChan:
			return
		case <-ticker.C:
			al.cleanupClientLimiters()
		}
	}
}

func (al *AuditLog) cleanupClientLimiters() {
	cutoff := time.Now().Add(-auditLimiterCleanup)
	al.clientLimiters.Range(func(key, value interface{}) bool {
		entry := value.(*clientLimiterEntry)
		if entry.lastUsed.Before(cutoff) {
			al.clientLimiters.Delete(key)
		}
		return true
	})
}

func (al *AuditLog) collectBatch(batch []AuditRecord) []AuditRecord {
	head := atomic.LoadUint64(&al.writeHead)
	tail := atomic.LoadUint64(&al.readHead)

	for i := tail; i < head && len(batch) < auditFlushSize; i++ {
		idx := (i + 1) % auditBufferSize
		batch = append(batch, al.buffer[idx])
	}

	if len(batch) > 0 {
		atomic.AddUint64(&al.readHead, uint64(len(batch)))
	}

	return batch
}

func (al *AuditLog) flushBatch(batch []AuditRecord) {
	al.fileMu.Lock()
	defer al.fileMu.Unlock()

	if al.file == nil {
		return
	}

	for _, record := range batch {
		data, err := json.Marshal(record)
		if err != nil {
			continue
		}
		al.file.Write(data)
		al.file.Write([]byte("\n"))
	}
}

// Stats returns counters for monitoring.
func (al *AuditLog) Stats() map[string]interface{} {
	head := atomic.LoadUint64(&al.writeHead)
	tail := atomic.LoadUint64(&al.readHead)

	return map[string]interface{}{
		"total":   atomic.LoadUint64(&al.totalCount),
		"dropped": atomic.LoadUint64(&al.droppedCount),
		"pending": head - tail,
		"running": al.running.Load(),
	}
}

// DroppedCount returns how many records were discarded.
func (al *AuditLog) DroppedCount() uint64 {
	return atomic.LoadUint64(&al.droppedCount)
}

// TotalCount returns how many records were accepted.
func (al *AuditLog) TotalCount() uint64 {
	return atomic.LoadUint64(&al.totalCount)
}
