package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"coinwatch-go/gateway"
	"coinwatch-go/infrastructure/alert"
	"coinwatch-go/infrastructure/monitor"
	"coinwatch-go/market"
	"coinwatch-go/monitor/logschema"

	"go.uber.org/zap"
)

// DefaultRefreshInterval 可见时后台刷新的默认周期。
const DefaultRefreshInterval = 30 * time.Second

const tickBuffer = 16

// EventSink 接收结构化事件，一般转发到 logger.LogSync。
type EventSink func(string, map[string]interface{})

// Alerter 行情降级时的告警出口。kind/scope 标识同一个故障，恢复后调用 Resolve。
type Alerter interface {
	Warn(kind, scope, message string, fields map[string]interface{}) error
	Resolve(kind, scope string)
}

const fallbackScope = "market"

// MarketSource 批量行情来源。
type MarketSource interface {
	FetchMarkets(ctx context.Context, q gateway.MarketsQuery) ([]market.RawCoin, error)
}

// TickSource 实时价格来源；Run 阻塞直到 ctx 结束或连接断开。
type TickSource interface {
	Run(ctx context.Context, keys map[string]struct{}, onTick func(map[string]float64)) error
}

// ReconnectPolicy 行情流断开后的重连策略。MaxRetries 为 0 时不重连。
type ReconnectPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// Options MarketStore 的可选依赖，零值可用。
type Options struct {
	Query           gateway.MarketsQuery
	QuoteAsset      string
	RefreshInterval time.Duration
	Reconnect       ReconnectPolicy
	Gate            *VisibilityGate
	Logger          *zap.Logger
	Monitor         *monitor.Monitor
	Alerter         Alerter
	Sink            EventSink
}

type session struct {
	id     uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// MarketStore 维护资产列表并协调快照拉取、实时 tick 与后台刷新。
// 所有状态读写都经过 mu；对外只暴露副本。
type MarketStore struct {
	source    MarketSource
	ticks     TickSource
	query     gateway.MarketsQuery
	quote     string
	reconnect ReconnectPolicy
	gate      *VisibilityGate
	pub       *market.Publisher
	log       *zap.Logger
	mon       *monitor.Monitor
	alerter   Alerter
	sink      EventSink

	mu        sync.RWMutex
	coins     []market.Coin
	loading   bool
	errMsg    string
	phase     market.Phase
	updatedAt time.Time
	lastTick  map[string]time.Time
	refresh   time.Duration
	activeID  uint64
	fetcher   snapshotFetcher

	refreshCh chan struct{}
	// symbolsCh 拉取落地出非空资产列表时通知等待订阅的 tick worker
	symbolsCh chan struct{}

	// lifecycle 串行化 Start/Stop
	lifecycle sync.Mutex
	session   *session
	sessions  uint64
}

// New 创建 MarketStore。ticks 为 nil 时只做快照刷新。
func New(source MarketSource, ticks TickSource, opts Options) *MarketStore {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.QuoteAsset == "" {
		opts.QuoteAsset = market.DefaultQuoteAsset
	}
	if opts.Gate == nil {
		opts.Gate = NewVisibilityGate()
	}
	if opts.Query == (gateway.MarketsQuery{}) {
		opts.Query = gateway.DefaultMarketsQuery()
	}
	if opts.RefreshInterval < 0 {
		opts.RefreshInterval = 0
	}
	return &MarketStore{
		source:    source,
		ticks:     ticks,
		query:     opts.Query,
		quote:     opts.QuoteAsset,
		reconnect: opts.Reconnect,
		gate:      opts.Gate,
		pub:       market.NewPublisher(),
		log:       opts.Logger,
		mon:       opts.Monitor,
		alerter:   opts.Alerter,
		sink:      opts.Sink,
		coins:     []market.Coin{},
		phase:     market.PhaseIdle,
		lastTick:  make(map[string]time.Time),
		refresh:   opts.RefreshInterval,
		refreshCh: make(chan struct{}, 1),
		symbolsCh: make(chan struct{}, 1),
	}
}

// Start 拉取一次快照后启动实时行情与后台刷新。已在运行时直接返回。
// 会话生命周期由 Stop 结束，ctx 只约束首次拉取。
func (s *MarketStore) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.session != nil {
		return nil
	}

	s.setPhase(market.PhaseStarting)
	s.FetchMarketData(ctx, false)
	if err := ctx.Err(); err != nil {
		s.setPhase(market.PhaseIdle)
		return err
	}

	s.sessions++
	sessCtx, cancel := context.WithCancel(context.Background())
	sess := &session{id: s.sessions, cancel: cancel}

	s.mu.Lock()
	keys := market.SubscriptionKeys(s.coins, s.quote)
	s.activeID = sess.id
	s.phase = market.PhaseActive
	s.publishLocked()
	s.mu.Unlock()

	// 首次拉取被取代或结果为空时 keys 为空，worker 等到有资产后再连接
	if s.ticks != nil {
		batches := make(chan map[string]float64, tickBuffer)
		sess.wg.Add(2)
		go func() {
			defer sess.wg.Done()
			s.runTickWorker(sessCtx, sess.id, keys, batches)
		}()
		go func() {
			defer sess.wg.Done()
			s.runApplier(sessCtx, sess.id, batches)
		}()
	}
	sess.wg.Add(1)
	go func() {
		defer sess.wg.Done()
		s.runKeepalive(sessCtx)
	}()

	s.session = sess
	s.mon.UpdatePolling(true)
	s.log.Info("market sync started", zap.Uint64("session", sess.id), zap.Int("keys", len(keys)))
	s.emit(logschema.EventSyncSession, map[string]interface{}{
		"state":   "started",
		"session": sess.id,
	})
	return nil
}

// Stop 取消当前会话并等待其 goroutine 退出。返回后不会再有 tick 修改资产。
// 资产列表保留。
func (s *MarketStore) Stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	sess := s.session
	if sess == nil {
		return nil
	}

	s.mu.Lock()
	s.activeID = 0
	s.phase = market.PhaseIdle
	s.publishLocked()
	s.mu.Unlock()

	sess.cancel()
	sess.wg.Wait()
	s.session = nil

	s.mon.UpdatePolling(false)
	s.log.Info("market sync stopped", zap.Uint64("session", sess.id))
	s.emit(logschema.EventSyncSession, map[string]interface{}{
		"state":   "stopped",
		"session": sess.id,
	})
	return nil
}

// FetchMarketData 拉取一次完整快照。新调用会立即取消在途请求。
// background=true 时不会把 Loading 置为 true。失败不返回给调用方：
// 本地无数据时装入内置数据并设置 Error，否则保留旧数据。
func (s *MarketStore) FetchMarketData(ctx context.Context, background bool) {
	s.mu.Lock()
	seq, fctx := s.fetcher.beginLocked(ctx)
	if !background {
		s.loading = true
		s.errMsg = ""
		s.publishLocked()
	}
	s.mu.Unlock()

	start := time.Now()
	raws, err := s.source.FetchMarkets(fctx, s.query)
	elapsed := time.Since(start).Seconds()

	s.mu.Lock()
	outcome, assets := s.settleLocked(seq, fctx, raws, err)
	s.mu.Unlock()

	s.mon.RecordFetch(outcome, elapsed)
	if outcome != monitor.OutcomeCanceled {
		s.mon.UpdateAssets(assets)
	}
	s.emit(logschema.EventFetchResult, map[string]interface{}{
		"seq":        seq,
		"background": background,
		"outcome":    outcome,
		"assets":     assets,
	})

	switch outcome {
	case monitor.OutcomeOK:
		s.resolve(alert.KindMarketFallback, fallbackScope)
	case monitor.OutcomeFallback:
		s.log.Warn("market fetch failed, serving fallback data", zap.Uint64("seq", seq), zap.Error(err))
		s.alert(alert.KindMarketFallback, fallbackScope, "market data unavailable, serving fallback data", map[string]interface{}{
			"error": err.Error(),
		})
	case monitor.OutcomeStale:
		s.log.Warn("market fetch failed, keeping previous data", zap.Uint64("seq", seq), zap.Error(err))
	case monitor.OutcomeCanceled:
		s.log.Debug("market fetch canceled", zap.Uint64("seq", seq), zap.Bool("background", background))
	}
}

// settleLocked 在持锁状态下落地一次拉取结果。被取代或被取消的结果不修改资产。
func (s *MarketStore) settleLocked(seq uint64, fctx context.Context, raws []market.RawCoin, err error) (string, int) {
	if !s.fetcher.isCurrentLocked(seq) {
		return monitor.OutcomeCanceled, len(s.coins)
	}
	canceled := fctx.Err() != nil || errors.Is(err, context.Canceled)
	s.fetcher.finishLocked(seq)

	// 当前请求结束后总是清除 Loading，后台请求也可能取代了前台请求
	s.loading = false
	defer s.publishLocked()

	if canceled {
		return monitor.OutcomeCanceled, len(s.coins)
	}
	if err == nil {
		s.coins = market.NormalizeCoins(raws)
		s.errMsg = ""
		s.updatedAt = time.Now()
		s.pruneTicksLocked()
		s.notifySymbolsLocked()
		return monitor.OutcomeOK, len(s.coins)
	}
	if len(s.coins) == 0 {
		s.coins = market.FallbackCoins()
		s.errMsg = fmt.Sprintf("market data unavailable, showing fallback data: %v", err)
		s.updatedAt = time.Now()
		s.notifySymbolsLocked()
		return monitor.OutcomeFallback, len(s.coins)
	}
	return monitor.OutcomeStale, len(s.coins)
}

func (s *MarketStore) notifySymbolsLocked() {
	if len(s.coins) == 0 {
		return
	}
	select {
	case s.symbolsCh <- struct{}{}:
	default:
	}
}

func (s *MarketStore) pruneTicksLocked() {
	for id := range s.lastTick {
		if _, ok := market.Find(s.coins, id); !ok {
			delete(s.lastTick, id)
		}
	}
}

// ApplyTicks 合并一批实时价格，只修改匹配资产的 CurrentPrice。返回被更新的资产数。
func (s *MarketStore) ApplyTicks(batch map[string]float64) int {
	s.mu.Lock()
	n := s.applyLocked(batch)
	s.mu.Unlock()
	s.mon.RecordTicksApplied(n)
	return n
}

// applySessionTicks 只在会话仍有效时合并，Stop 之后到达的批次被丢弃。
func (s *MarketStore) applySessionTicks(id uint64, batch map[string]float64) {
	s.mu.Lock()
	if s.activeID != id {
		s.mu.Unlock()
		return
	}
	n := s.applyLocked(batch)
	s.mu.Unlock()
	s.mon.RecordTicksApplied(n)
}

func (s *MarketStore) applyLocked(batch map[string]float64) int {
	updated, n := market.ApplyTicks(s.coins, batch, s.quote)
	if n == 0 {
		return 0
	}
	now := time.Now()
	for _, id := range market.MatchTicks(s.coins, batch, s.quote) {
		s.lastTick[id] = now
	}
	s.coins = updated
	s.publishLocked()
	return n
}

// State 返回当前状态的副本。
func (s *MarketStore) State() market.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *MarketStore) snapshotLocked() market.Snapshot {
	return market.Snapshot{
		Coins:     market.CloneCoins(s.coins),
		Loading:   s.loading,
		Error:     s.errMsg,
		IsPolling: s.activeID != 0,
		Phase:     s.phase,
		UpdatedAt: s.updatedAt,
	}
}

// publishLocked 在持锁时发布，保证订阅者看到的顺序与修改顺序一致。
func (s *MarketStore) publishLocked() {
	s.pub.Publish(s.snapshotLocked())
}

func (s *MarketStore) setPhase(p market.Phase) {
	s.mu.Lock()
	s.phase = p
	s.publishLocked()
	s.mu.Unlock()
}

// PriceMap 返回 coinID -> 当前价格。
func (s *MarketStore) PriceMap() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return market.PriceMap(s.coins)
}

// Price 返回单个资产的当前价格。
func (s *MarketStore) Price(id string) (float64, bool) {
	c, ok := s.Coin(id)
	return c.CurrentPrice, ok
}

func (s *MarketStore) Coin(id string) (market.Coin, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return market.Find(s.coins, id)
}

// Staleness 距该资产最近一次 tick 的时间；从未收到 tick 时返回一年。
func (s *MarketStore) Staleness(id string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.lastTick[id]
	if !ok {
		return 365 * 24 * time.Hour
	}
	return time.Since(ts)
}

// IsActive 会话是否在运行。
func (s *MarketStore) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID != 0
}

func (s *MarketStore) Subscribe() <-chan market.Snapshot {
	return s.pub.Subscribe()
}

func (s *MarketStore) Unsubscribe(ch <-chan market.Snapshot) {
	s.pub.Unsubscribe(ch)
}

func (s *MarketStore) Gate() *VisibilityGate {
	return s.gate
}

// RefreshInterval 当前后台刷新周期，0 表示关闭。
func (s *MarketStore) RefreshInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

// SetRefreshInterval 修改后台刷新周期，运行中的会话从下一个周期生效。
func (s *MarketStore) SetRefreshInterval(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	changed := s.refresh != d
	s.refresh = d
	s.mu.Unlock()
	if !changed {
		return
	}
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
	s.log.Info("refresh interval updated", zap.Duration("interval", d))
}

func (s *MarketStore) currentKeys() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return market.SubscriptionKeys(s.coins, s.quote)
}

func (s *MarketStore) emit(event string, fields map[string]interface{}) {
	if s == nil || s.sink == nil {
		return
	}
	s.sink(event, fields)
}

func (s *MarketStore) alert(kind, scope, message string, fields map[string]interface{}) {
	if s.alerter == nil {
		return
	}
	if err := s.alerter.Warn(kind, scope, message, fields); err != nil {
		s.log.Warn("send alert failed", zap.String("kind", kind), zap.Error(err))
	}
}

func (s *MarketStore) resolve(kind, scope string) {
	if s.alerter != nil {
		s.alerter.Resolve(kind, scope)
	}
}

func streamScope(id uint64) string {
	return fmt.Sprintf("session-%d", id)
}
