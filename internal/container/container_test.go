package container

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"coinwatch-go/config"
	"coinwatch-go/market"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marketsBody = `[
 {"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":60000,"market_cap_rank":1,"sparkline_in_7d":{"price":[1,2]}},
 {"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":3000,"market_cap_rank":2}
]`

func newUpstream(t *testing.T) (rest *httptest.Server, ws *httptest.Server) {
	t.Helper()
	rest = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(marketsBody))
	}))
	t.Cleanup(rest.Close)

	upgrader := websocket.Upgrader{}
	ws = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		msg := `[{"s":"BTCUSDT","c":"61000.5"},{"s":"DOGEUSDT","c":"0.1"}]`
		for i := 0; i < 50; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
	}))
	t.Cleanup(ws.Close)
	return rest, ws
}

func testConfig(t *testing.T, restURL, wsURL string) config.AppConfig {
	cfg := config.Default()
	cfg.Market.BaseURL = restURL
	cfg.Stream.Endpoint = "ws" + strings.TrimPrefix(wsURL, "http")
	cfg.Sync.RefreshIntervalMs = 0
	cfg.Portfolio.Path = filepath.Join(t.TempDir(), "portfolio.json")
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Log.Level = "error"
	return cfg
}

func TestContainerEndToEnd(t *testing.T) {
	rest, ws := newUpstream(t)
	c := NewWithConfig(testConfig(t, rest.URL, ws.URL))
	require.NoError(t, c.Build())
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	require.NoError(t, c.HealthCheck())
	require.Eventually(t, func() bool {
		p, _ := c.Store().Price("bitcoin")
		return p == 61000.5
	}, 3*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + c.Addr() + "/api/market")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap market.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.True(t, snap.IsPolling)
	assert.Len(t, snap.Coins, 2)
	eth, ok := market.Find(snap.Coins, "ethereum")
	require.True(t, ok)
	assert.Equal(t, 3000.0, eth.CurrentPrice)
}

func TestContainerFallbackWhenUpstreamDown(t *testing.T) {
	rest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer rest.Close()

	cfg := testConfig(t, rest.URL, "http://127.0.0.1:1")
	c := NewWithConfig(cfg)
	require.NoError(t, c.Build())
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	st := c.Store().State()
	assert.NotEmpty(t, st.Error)
	_, ok := market.Find(st.Coins, "bitcoin")
	assert.True(t, ok)
}

func TestContainerStartFailsOnBusyPort(t *testing.T) {
	rest, ws := newUpstream(t)
	first := NewWithConfig(testConfig(t, rest.URL, ws.URL))
	require.NoError(t, first.Build())
	require.NoError(t, first.Start(context.Background()))
	defer first.Stop()

	cfg := testConfig(t, rest.URL, ws.URL)
	cfg.HTTP.Addr = first.Addr()
	second := NewWithConfig(cfg)
	require.NoError(t, second.Build())
	require.Error(t, second.Start(context.Background()))
	assert.False(t, second.Store().IsActive(), "started components are rolled back")
}

func TestApplyConfigUpdatesRefreshInterval(t *testing.T) {
	rest, ws := newUpstream(t)
	c := NewWithConfig(testConfig(t, rest.URL, ws.URL))
	require.NoError(t, c.Build())

	next := c.Config()
	next.Sync.RefreshIntervalMs = 1234
	next.Log.Level = "debug"
	c.applyConfig(next)

	assert.Equal(t, 1234*time.Millisecond, c.Store().RefreshInterval())
	assert.Equal(t, "debug", c.Logger().Level())
}
