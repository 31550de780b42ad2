package lock

import (
	"context"
	"errors"
)

// Gate 推理闸门
type Gate interface {
	// Acquire 阻塞直到取得一个槽位或 ctx 结束。
	// 返回的 release 必须且只能调用一次。
	Acquire(ctx context.Context) (release func(), err error)

	// Mode 返回闸门类型（local / redis），用于指标与日志
	Mode() string

	// Slots 返回同时允许的推理数
	Slots() int

	// Close 释放底层资源
	Close() error
}

// ErrClosed 闸门已关闭
var ErrClosed = errors.New("inference gate is closed")

const (
	ModeLocal = "local"
	ModeRedis = "redis"
)
