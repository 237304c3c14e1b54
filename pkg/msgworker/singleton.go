package msgworker

import (
	"context"
	"sync"

	coreconfig "github.com/AzielCF/az-collab/core/config"
	"github.com/sirupsen/logrus"
)

var (
	globalMu     sync.Mutex
	globalPool   *RoomWorkerPool
	globalCancel context.CancelFunc
)

// GetGlobalPool returns the process-wide room worker pool, starting it on first use.
func GetGlobalPool() *RoomWorkerPool {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalPool != nil {
		return globalPool
	}

	size := coreconfig.Global.WorkerPool.Size
	if size <= 0 {
		size = 6
	}
	queue := coreconfig.Global.WorkerPool.QueueSize
	if queue <= 0 {
		queue = 250
	}

	var ctx context.Context
	ctx, globalCancel = context.WithCancel(context.Background())
	globalPool = NewRoomWorkerPool(size, queue)
	globalPool.Start(ctx)
	logrus.Infof("[MSG_WORKER_POOL] Global instance started with %d workers and queue size %d", size, queue)
	return globalPool
}

// StopGlobalPool stops the singleton pool. A later GetGlobalPool starts a new one.
func StopGlobalPool() {
	globalMu.Lock()
	pool, cancel := globalPool, globalCancel
	globalPool, globalCancel = nil, nil
	globalMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if pool != nil {
		pool.Stop()
	}
}

func GetGlobalStats() PoolStats {
	return GetGlobalPool().GetStats()
}
