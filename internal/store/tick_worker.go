package store

import (
	"context"
	"errors"
	"time"

	"coinwatch-go/gateway"
	"coinwatch-go/infrastructure/alert"
	"coinwatch-go/monitor/logschema"

	"go.uber.org/zap"
)

// runTickWorker 独占行情流连接，把过滤后的批次交给 applier。
// 退出时关闭 out；ctx 结束后不再投递任何批次。
func (s *MarketStore) runTickWorker(ctx context.Context, id uint64, keys map[string]struct{}, out chan<- map[string]float64) {
	defer close(out)
	send := func(batch map[string]float64) {
		select {
		case out <- batch:
		case <-ctx.Done():
		}
	}

	if len(keys) == 0 {
		if keys = s.waitForKeys(ctx, id); keys == nil {
			return
		}
	}

	retries := 0
	for {
		s.emit(logschema.EventStreamStatus, map[string]interface{}{
			"state":   "connecting",
			"session": id,
			"keys":    len(keys),
		})
		err := s.ticks.Run(ctx, keys, send)
		if ctx.Err() != nil {
			return
		}
		// 连上过再断开视为新一轮故障，计数清零
		if !errors.Is(err, gateway.ErrStreamDial) {
			retries = 0
		}
		if retries >= s.reconnect.MaxRetries {
			s.log.Warn("live prices stopped", zap.Uint64("session", id), zap.Error(err))
			s.emit(logschema.EventStreamStatus, map[string]interface{}{
				"state":   "stopped",
				"session": id,
				"keys":    len(keys),
			})
			fields := map[string]interface{}{"session": id}
			if err != nil {
				fields["error"] = err.Error()
			}
			s.alert(alert.KindStreamStopped, streamScope(id), "live price stream stopped", fields)
			return
		}
		retries++
		backoff := time.Duration(retries) * s.reconnect.Backoff
		s.log.Info("ticker stream reconnecting",
			zap.Uint64("session", id),
			zap.Int("attempt", retries),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if fresh := s.currentKeys(); len(fresh) > 0 {
			keys = fresh
		}
	}
}

// waitForKeys 阻塞到资产列表非空，返回其订阅集合；ctx 结束时返回 nil。
func (s *MarketStore) waitForKeys(ctx context.Context, id uint64) map[string]struct{} {
	s.emit(logschema.EventStreamStatus, map[string]interface{}{
		"state":   "waiting",
		"session": id,
		"keys":    0,
	})
	for {
		if keys := s.currentKeys(); len(keys) > 0 {
			return keys
		}
		select {
		case <-ctx.Done():
			return nil
		case <-s.symbolsCh:
		}
	}
}

// runApplier 按到达顺序合并批次。
func (s *MarketStore) runApplier(ctx context.Context, id uint64, batches <-chan map[string]float64) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			s.applySessionTicks(id, batch)
		}
	}
}

// runKeepalive 每个周期检查一次可见性，可见时做一次后台拉取。
func (s *MarketStore) runKeepalive(ctx context.Context) {
	for {
		var (
			timer *time.Timer
			tick  <-chan time.Time
		)
		if interval := s.RefreshInterval(); interval > 0 {
			timer = time.NewTimer(interval)
			tick = timer.C
		}
		select {
		case <-ctx.Done():
			stopTimer(timer)
			return
		case <-s.refreshCh:
			stopTimer(timer)
		case <-tick:
			if !s.gate.Visible() {
				s.mon.RecordKeepaliveSkipped()
				s.log.Debug("keepalive skipped, consumer hidden")
				continue
			}
			s.FetchMarketData(ctx, true)
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
