package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"coinwatch-go/market"
)

// BinanceMiniTickerEndpoint 全市场 mini ticker 推送（每秒一批）。
const BinanceMiniTickerEndpoint = "wss://stream.binance.com:9443/ws/!miniTicker@arr"

// ErrStreamDial 建立连接失败；与连接建立后断开区分开，便于重连策略计数。
var ErrStreamDial = errors.New("ticker stream dial failed")

// StreamObserver 接收连接状态与坏消息计数，通常由 monitor.Monitor 实现。
type StreamObserver interface {
	RecordWSConnection()
	RecordWSDisconnect()
	RecordMalformedMessage()
}

// TickerStream 连接全市场 ticker 流，在客户端按订阅集合过滤后回调。
// 每次 Run 只持有一条连接，Run 返回时连接已关闭。
type TickerStream struct {
	Endpoint    string
	Dialer      *websocket.Dialer
	ReadTimeout time.Duration
	Logger      *zap.Logger
	Observer    StreamObserver
}

func NewTickerStream(endpoint string, logger *zap.Logger) *TickerStream {
	if endpoint == "" {
		endpoint = BinanceMiniTickerEndpoint
	}
	return &TickerStream{
		Endpoint:    endpoint,
		Dialer:      websocket.DefaultDialer,
		ReadTimeout: time.Minute,
		Logger:      logger,
	}
}

// Run 建立连接并读取消息，直到 ctx 取消或连接断开。
// 坏消息记录日志后丢弃，不会中断连接；ctx 取消后不再回调 onTick。
func (s *TickerStream) Run(ctx context.Context, keys map[string]struct{}, onTick func(map[string]float64)) error {
	if len(keys) == 0 {
		return fmt.Errorf("no symbols subscribed")
	}
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	log := s.logger()

	conn, _, err := dialer.DialContext(ctx, s.Endpoint, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrStreamDial, err)
	}
	if s.Observer != nil {
		s.Observer.RecordWSConnection()
	}
	log.Info("ticker stream connected", zap.String("endpoint", s.Endpoint), zap.Int("keys", len(keys)))

	// ReadMessage 阻塞时只能通过关闭连接打断
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()
	defer func() {
		_ = conn.Close()
		if s.Observer != nil {
			s.Observer.RecordWSDisconnect()
		}
	}()

	timeout := s.ReadTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(timeout))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			log.Info("ticker stream closed", zap.Error(err))
			return fmt.Errorf("read ticker stream: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(timeout))

		batch, err := ParseMiniTickers(msg)
		if err != nil {
			log.Warn("drop malformed ticker message", zap.Error(err), zap.Int("bytes", len(msg)))
			if s.Observer != nil {
				s.Observer.RecordMalformedMessage()
			}
			continue
		}
		relevant := market.FilterTicks(batch, keys)
		if len(relevant) == 0 {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		onTick(relevant)
	}
}

func (s *TickerStream) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
