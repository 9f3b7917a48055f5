package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
)

// ErrEmptyMessage 收到空消息。
var ErrEmptyMessage = errors.New("empty stream message")

// CombinedMessage 对应 binance combined stream 包装。
type CombinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// MiniTicker 提取 !miniTicker@arr 消息的核心字段。
type MiniTicker struct {
	Symbol string `json:"s"`
	Close  string `json:"c"`
}

// ParseMiniTickers 解析全市场 mini ticker 数组，返回 symbol -> 最新价。
// 同时兼容 combined stream 包装；价格无法解析或非正的条目被跳过。
func ParseMiniTickers(raw []byte) (map[string]float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, ErrEmptyMessage
	}
	if raw[0] == '{' {
		var msg CombinedMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if len(msg.Data) == 0 {
			return nil, ErrEmptyMessage
		}
		raw = msg.Data
	}
	var tickers []MiniTicker
	if err := json.Unmarshal(raw, &tickers); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		if t.Symbol == "" {
			continue
		}
		p, err := strconv.ParseFloat(t.Close, 64)
		if err != nil || p <= 0 || math.IsInf(p, 0) || math.IsNaN(p) {
			continue
		}
		out[t.Symbol] = p
	}
	return out, nil
}
