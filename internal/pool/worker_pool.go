package pool

import (
	"context"
	"sync"
	"sync/atomic"
)

// WorkerPool 固定并发的协程池。
//
// 所有工作协程消费同一个任务队列，队列出队保证一个任务只被一个协程取走；
// 并发数量固定不弹性伸缩。
type WorkerPool struct {
	maxWorkers int
	taskQueue  chan func()
	wg         sync.WaitGroup
	inFlight   atomic.Int32
	maxSeen    atomic.Int32 // 观测到的最大并发，用于验证并发上界
}

// NewWorkerPool 创建协程池
//
// 参数:
//   - maxWorkers: 工作协程数量
//   - queueSize: 任务队列容量
func NewWorkerPool(maxWorkers, queueSize int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &WorkerPool{
		maxWorkers: maxWorkers,
		taskQueue:  make(chan func(), queueSize),
	}
}

// Start 启动全部工作协程。
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Submit 提交任务；队列已满时阻塞直到有空位。
func (p *WorkerPool) Submit(task func()) {
	p.taskQueue <- task
}

// TrySubmit 尝试提交任务；队列已满时立即返回 false。
func (p *WorkerPool) TrySubmit(task func()) bool {
	select {
	case p.taskQueue <- task:
		return true
	default:
		return false
	}
}

// Stop 关闭队列并等待在途任务完成。已入队但未开始的任务仍会被执行；
// 需要放弃排队任务时由调用方取消 ctx。
func (p *WorkerPool) Stop() {
	close(p.taskQueue)
	p.wg.Wait()
}

// InFlight 当前正在执行的任务数。
func (p *WorkerPool) InFlight() int {
	return int(p.inFlight.Load())
}

// MaxInFlight 观测到的最大并发任务数。
func (p *WorkerPool) MaxInFlight() int {
	return int(p.maxSeen.Load())
}

// worker 工作协程：ctx 取消后不再取新任务，在途任务自然结束。
func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			p.run(task)
		}
	}
}

// run 执行单个任务并维护在途计数，panic 不影响其他任务。
func (p *WorkerPool) run(task func()) {
	n := p.inFlight.Add(1)
	for {
		prev := p.maxSeen.Load()
		if n <= prev || p.maxSeen.CompareAndSwap(prev, n) {
			break
		}
	}
	defer p.inFlight.Add(-1)

	defer func() {
		_ = recover()
	}()
	task()
}
