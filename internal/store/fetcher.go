package store

import "context"

// snapshotFetcher 持有在途快照请求的取消句柄与序号。
// 字段受 MarketStore.mu 保护，只能在持锁时调用 *Locked 方法。
type snapshotFetcher struct {
	seq    uint64
	cancel context.CancelFunc
}

// beginLocked 取消在途请求（不等待其返回），为新请求分配序号与 ctx。
func (f *snapshotFetcher) beginLocked(parent context.Context) (uint64, context.Context) {
	if f.cancel != nil {
		f.cancel()
	}
	f.seq++
	ctx, cancel := context.WithCancel(parent)
	f.cancel = cancel
	return f.seq, ctx
}

// isCurrentLocked 判断 seq 是否仍是最新请求；被取代的请求结果必须丢弃。
func (f *snapshotFetcher) isCurrentLocked(seq uint64) bool {
	return f.seq == seq
}

// finishLocked 释放当前请求的 ctx。
func (f *snapshotFetcher) finishLocked(seq uint64) {
	if f.seq == seq && f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}
