package msgworker

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrPoolStopped is returned by DispatchContext once Stop has been called.
var ErrPoolStopped = errors.New("room worker pool is stopped")

// activeRoomTTL is how long a room stays listed in ActiveRooms after its last job.
const activeRoomTTL = 2 * time.Second

// RoomJob is one unit of server work for a room: an inbound frame, a join or a
// leave. Jobs sharing a RoomKey run sequentially on the same worker.
type RoomJob struct {
	RoomKey string
	UserID  string
	Handler func(ctx context.Context) error
}

// PoolStats is a live snapshot of the pool, served by /api/health/status.
type PoolStats struct {
	NumWorkers      int            `json:"num_workers"`
	QueueSize       int            `json:"queue_size"`
	ActiveWorkers   int            `json:"active_workers"`
	TotalDispatched int64          `json:"total_dispatched"`
	TotalProcessed  int64          `json:"total_processed"`
	TotalDropped    int64          `json:"total_dropped"`
	TotalErrors     int64          `json:"total_errors"`
	Uptime          string         `json:"uptime"`
	WorkerStats     []WorkerStats  `json:"worker_stats"`
	ActiveRooms     map[string]int `json:"active_rooms"` // room key -> worker id
}

type WorkerStats struct {
	WorkerID      int   `json:"worker_id"`
	QueueDepth    int   `json:"queue_depth"`
	IsProcessing  bool  `json:"is_processing"`
	JobsProcessed int64 `json:"jobs_processed"`
}

type activeRoomEntry struct {
	workerID  int
	updatedAt time.Time
}

// RoomWorkerPool runs room jobs on a fixed set of workers, sharded by room key
// so that every room observes its envelopes in receipt order.
type RoomWorkerPool struct {
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopped    int32
	stopCh     chan struct{}

	totalDispatched int64
	totalProcessed  int64
	totalDropped    int64
	totalErrors     int64
	activeRoomsMu   sync.Mutex
	activeRooms     map[string]activeRoomEntry
	startTime       time.Time

	// Optional monitoring hooks.
	OnWorkerStart func(workerID int, roomKey string)
	OnWorkerEnd   func(workerID int, roomKey string)
}

type worker struct {
	id            int
	jobQueue      chan RoomJob
	ctx           context.Context
	cancel        context.CancelFunc
	isProcessing  int32 // atomic
	jobsProcessed int64 // atomic
	pool          *RoomWorkerPool
}

func NewRoomWorkerPool(numWorkers, queueSize int) *RoomWorkerPool {
	if numWorkers <= 0 {
		numWorkers = 10
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	return &RoomWorkerPool{
		numWorkers:  numWorkers,
		queueSize:   queueSize,
		workers:     make([]*worker, numWorkers),
		activeRooms: make(map[string]activeRoomEntry),
		stopCh:      make(chan struct{}),
		startTime:   time.Now(),
	}
}

// Start launches the workers and the janitor that expires idle rooms from the stats.
func (p *RoomWorkerPool) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.pruneActiveRooms(time.Now())
			}
		}
	}()

	for i := 0; i < p.numWorkers; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		w := &worker{
			id:       i,
			jobQueue: make(chan RoomJob, p.queueSize),
			ctx:      workerCtx,
			cancel:   cancel,
			pool:     p,
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(&p.wg)
	}

	logrus.Infof("[MSG_WORKER_POOL] Started with %d workers, queue size: %d", p.numWorkers, p.queueSize)
}

// TryDispatch enqueues job without blocking and reports whether it was accepted.
// A full worker queue drops the job.
func (p *RoomWorkerPool) TryDispatch(job RoomJob) bool {
	if atomic.LoadInt32(&p.stopped) == 1 {
		atomic.AddInt64(&p.totalDropped, 1)
		return false
	}

	shard := p.shardForRoom(job.RoomKey)
	atomic.AddInt64(&p.totalDispatched, 1)

	p.activeRoomsMu.Lock()
	p.activeRooms[job.RoomKey] = activeRoomEntry{workerID: shard, updatedAt: time.Now()}
	p.activeRoomsMu.Unlock()

	sent := func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				ok = false
			}
		}()
		select {
		case p.workers[shard].jobQueue <- job:
			return true
		default:
			return false
		}
	}()
	if sent {
		return true
	}

	p.activeRoomsMu.Lock()
	delete(p.activeRooms, job.RoomKey)
	p.activeRoomsMu.Unlock()

	atomic.AddInt64(&p.totalDropped, 1)
	logrus.Warnf("[MSG_WORKER_POOL] Worker %d queue full (or stopped), dropping job for room %s", shard, job.RoomKey)
	return false
}

// Dispatch enqueues job, waiting while the room's worker queue is full. It
// returns false only when the pool is stopped.
func (p *RoomWorkerPool) Dispatch(job RoomJob) bool {
	return p.DispatchContext(context.Background(), job) == nil
}

// DispatchContext enqueues job, waiting while the room's worker queue is full.
// It returns ErrPoolStopped once the pool or the worker is shut down, or
// ctx.Err() if ctx ends first. A job that is not accepted never runs.
func (p *RoomWorkerPool) DispatchContext(ctx context.Context, job RoomJob) (err error) {
	if atomic.LoadInt32(&p.stopped) == 1 {
		atomic.AddInt64(&p.totalDropped, 1)
		return ErrPoolStopped
	}

	shard := p.shardForRoom(job.RoomKey)
	w := p.workers[shard]
	if w == nil {
		atomic.AddInt64(&p.totalDropped, 1)
		return ErrPoolStopped
	}
	atomic.AddInt64(&p.totalDispatched, 1)

	p.activeRoomsMu.Lock()
	p.activeRooms[job.RoomKey] = activeRoomEntry{workerID: shard, updatedAt: time.Now()}
	p.activeRoomsMu.Unlock()

	defer func() {
		// Stop closes the queue under a blocked sender.
		if r := recover(); r != nil {
			err = ErrPoolStopped
		}
		if err != nil {
			atomic.AddInt64(&p.totalDropped, 1)
			logrus.WithError(err).Warnf("[MSG_WORKER_POOL] Worker %d did not accept job for room %s", shard, job.RoomKey)
		}
	}()

	select {
	case w.jobQueue <- job:
		return nil
	default:
	}

	logrus.Debugf("[MSG_WORKER_POOL] Worker %d queue full, waiting for room %s", shard, job.RoomKey)
	select {
	case w.jobQueue <- job:
		return nil
	case <-p.stopCh:
		return ErrPoolStopped
	case <-w.ctx.Done():
		return ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop drains the queues and waits for every worker.
func (p *RoomWorkerPool) Stop() {
	p.stopOnce.Do(func() {
		atomic.StoreInt32(&p.stopped, 1)
		close(p.stopCh)
		logrus.Info("[MSG_WORKER_POOL] Stopping workers...")

		for _, w := range p.workers {
			if w == nil {
				continue
			}
			w.cancel()
			close(w.jobQueue)
		}
		p.wg.Wait()

		logrus.Info("[MSG_WORKER_POOL] All workers stopped")
	})
}

func (p *RoomWorkerPool) shardForRoom(roomKey string) int {
	h := fnv.New32a()
	h.Write([]byte(roomKey))
	return int(h.Sum32() % uint32(p.numWorkers))
}

func (p *RoomWorkerPool) pruneActiveRooms(now time.Time) {
	p.activeRoomsMu.Lock()
	defer p.activeRoomsMu.Unlock()
	for k, v := range p.activeRooms {
		if now.Sub(v.updatedAt) > activeRoomTTL {
			delete(p.activeRooms, k)
		}
	}
}

func (p *RoomWorkerPool) GetStats() PoolStats {
	workerStats := make([]WorkerStats, 0, len(p.workers))
	activeWorkers := 0

	for _, w := range p.workers {
		if w == nil {
			continue
		}
		isProcessing := atomic.LoadInt32(&w.isProcessing) == 1
		if isProcessing {
			activeWorkers++
		}
		workerStats = append(workerStats, WorkerStats{
			WorkerID:      w.id,
			QueueDepth:    len(w.jobQueue),
			IsProcessing:  isProcessing,
			JobsProcessed: atomic.LoadInt64(&w.jobsProcessed),
		})
	}

	p.pruneActiveRooms(time.Now())
	p.activeRoomsMu.Lock()
	rooms := make(map[string]int, len(p.activeRooms))
	for k, v := range p.activeRooms {
		rooms[k] = v.workerID
	}
	p.activeRoomsMu.Unlock()

	return PoolStats{
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		ActiveWorkers:   activeWorkers,
		TotalDispatched: atomic.LoadInt64(&p.totalDispatched),
		TotalProcessed:  atomic.LoadInt64(&p.totalProcessed),
		TotalDropped:    atomic.LoadInt64(&p.totalDropped),
		TotalErrors:     atomic.LoadInt64(&p.totalErrors),
		Uptime:          time.Since(p.startTime).Round(time.Second).String(),
		WorkerStats:     workerStats,
		ActiveRooms:     rooms,
	}
}

func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()
	logrus.Debugf("[MSG_WORKER_POOL] Worker %d started", w.id)

	for {
		select {
		case job, ok := <-w.jobQueue:
			if !ok {
				logrus.Debugf("[MSG_WORKER_POOL] Worker %d shutting down", w.id)
				return
			}
			w.process(job)

		case <-w.ctx.Done():
			logrus.Debugf("[MSG_WORKER_POOL] Worker %d context cancelled, draining queue...", w.id)
			w.drainQueue()
			return
		}
	}
}

func (w *worker) process(job RoomJob) {
	if w.pool.OnWorkerStart != nil {
		w.pool.OnWorkerStart(w.id, job.RoomKey)
	}
	atomic.StoreInt32(&w.isProcessing, 1)
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&w.pool.totalErrors, 1)
			logrus.Errorf("[MSG_WORKER_POOL] Worker %d panic for room %s: %v", w.id, job.RoomKey, r)
		}
		if w.pool.OnWorkerEnd != nil {
			w.pool.OnWorkerEnd(w.id, job.RoomKey)
		}
		atomic.StoreInt32(&w.isProcessing, 0)
		atomic.AddInt64(&w.jobsProcessed, 1)
		atomic.AddInt64(&w.pool.totalProcessed, 1)
	}()

	if err := job.Handler(w.ctx); err != nil {
		atomic.AddInt64(&w.pool.totalErrors, 1)
		logrus.WithError(err).WithFields(logrus.Fields{
			"room":    job.RoomKey,
			"user_id": job.UserID,
		}).Errorf("[MSG_WORKER_POOL] Worker %d job failed", w.id)
	}
}

// drainQueue runs whatever is still queued at shutdown so leave jobs are not lost.
func (w *worker) drainQueue() {
	for {
		select {
		case job, ok := <-w.jobQueue:
			if !ok {
				return
			}
			w.process(job)
		default:
			return
		}
	}
}
