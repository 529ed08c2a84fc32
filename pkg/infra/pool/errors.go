package pool

import "errors"

var (
	// ErrPoolClosed 池已释放，不再接收任务。
	ErrPoolClosed = errors.New("worker pool is closed")

	// ErrPoolOverload 非阻塞模式下池已满。
	ErrPoolOverload = errors.New("worker pool is overloaded")
)
