package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_ConcurrencyBound(t *testing.T) {
	p := NewWorkerPool(3, 64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	var wg sync.WaitGroup
	var executed atomic.Int32
	for i := 0; i < 30; i++ {
		wg.Add(1)
		p.Submit(func() {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			executed.Add(1)
		})
	}
	wg.Wait()
	p.Stop()

	assert.Equal(t, int32(30), executed.Load())
	assert.LessOrEqual(t, p.MaxInFlight(), 3)
	assert.Positive(t, p.MaxInFlight())
	assert.Equal(t, 0, p.InFlight())
}

func TestWorkerPool_StopDrainsQueuedTasks(t *testing.T) {
	p := NewWorkerPool(1, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	var executed atomic.Int32
	for i := 0; i < 10; i++ {
		p.Submit(func() {
			executed.Add(1)
		})
	}
	// Stop 关闭队列后已入队的任务仍被执行完
	p.Stop()
	assert.Equal(t, int32(10), executed.Load())
}

func TestWorkerPool_TrySubmit(t *testing.T) {
	p := NewWorkerPool(1, 1)
	// 未启动工作协程，队列容量 1：第一个入队成功，第二个立即失败
	assert.True(t, p.TrySubmit(func() {}))
	assert.False(t, p.TrySubmit(func() {}))
}

func TestWorkerPool_PanicIsolation(t *testing.T) {
	p := NewWorkerPool(2, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	var wg sync.WaitGroup
	var executed atomic.Int32

	wg.Add(2)
	p.Submit(func() {
		defer wg.Done()
		panic("task blew up")
	})
	p.Submit(func() {
		defer wg.Done()
		executed.Add(1)
	})

	wg.Wait()
	p.Stop()

	assert.Equal(t, int32(1), executed.Load(), "单个任务 panic 不影响其他任务")
	assert.Equal(t, 0, p.InFlight())
}

func TestWorkerPool_ContextCancelStopsWorkers(t *testing.T) {
	p := NewWorkerPool(2, 8)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	var executed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)
	p.Submit(func() {
		defer wg.Done()
		executed.Add(1)
	})
	wg.Wait()

	cancel()
	// 取消后工作协程退出，Stop 不再等待新任务
	p.Stop()
	assert.Equal(t, int32(1), executed.Load())
}
