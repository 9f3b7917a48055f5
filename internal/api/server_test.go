package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coinwatch-go/gateway"
	"coinwatch-go/infrastructure/monitor"
	"coinwatch-go/internal/session"
	"coinwatch-go/internal/store"
	"coinwatch-go/market"
	"coinwatch-go/portfolio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	raws []market.RawCoin
}

func (s staticSource) FetchMarkets(context.Context, gateway.MarketsQuery) ([]market.RawCoin, error) {
	return s.raws, nil
}

type fixture struct {
	srv    *Server
	store  *store.MarketStore
	ledger *portfolio.Ledger
	sess   *session.Holder
	mon    *monitor.Monitor
}

func newFixture(t *testing.T) fixture {
	return newFixtureWith(t, []market.RawCoin{
		{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", CurrentPrice: 60000, MarketCapRank: 1},
		{ID: "ethereum", Symbol: "eth", Name: "Ethereum", CurrentPrice: 3000, MarketCapRank: 2},
	})
}

func newFixtureWith(t *testing.T, raws []market.RawCoin) fixture {
	t.Helper()
	src := staticSource{raws: raws}
	mon := monitor.New(monitor.DefaultConfig())
	st := store.New(src, nil, store.Options{Monitor: mon})
	st.FetchMarketData(context.Background(), false)
	ledger, err := portfolio.NewLedger(nil, nil, nil)
	require.NoError(t, err)
	sess := session.New(0, nil)
	srv := NewServer(st, st.Gate(), ledger, sess, mon, nil)
	return fixture{srv: srv, store: st, ledger: ledger, sess: sess, mon: mon}
}

func (f fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestMarketEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/market", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap market.Snapshot
	decode(t, rec, &snap)
	assert.Len(t, snap.Coins, 2)
	assert.False(t, snap.Loading)

	rec = f.do(t, http.MethodGet, "/api/market/ethereum", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var coin market.Coin
	decode(t, rec, &coin)
	assert.Equal(t, 3000.0, coin.CurrentPrice)

	rec = f.do(t, http.MethodGet, "/api/market/dogecoin", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarketSortedSearchAndPaged(t *testing.T) {
	raws := make([]market.RawCoin, 0, 12)
	for i := 12; i >= 1; i-- {
		raws = append(raws, market.RawCoin{
			ID:            fmt.Sprintf("coin-%02d", i),
			Symbol:        fmt.Sprintf("c%d", i),
			Name:          fmt.Sprintf("Coin %d", i),
			CurrentPrice:  float64(i),
			MarketCapRank: i,
		})
	}
	f := newFixtureWith(t, raws)

	var view marketView
	rec := f.do(t, http.MethodGet, "/api/market", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &view)
	require.Len(t, view.Coins, 12)
	assert.Equal(t, "coin-01", view.Coins[0].ID)
	assert.Equal(t, "coin-12", view.Coins[11].ID)
	assert.Equal(t, 12, view.Total)

	view = marketView{}
	rec = f.do(t, http.MethodGet, "/api/market?page=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &view)
	assert.Equal(t, 2, view.TotalPages)
	require.Len(t, view.Coins, 2)
	assert.Equal(t, "coin-11", view.Coins[0].ID)

	view = marketView{}
	rec = f.do(t, http.MethodGet, "/api/market?search=COIN%201", "")
	decode(t, rec, &view)
	// Coin 1, Coin 10, Coin 11, Coin 12
	assert.Equal(t, 4, view.Total)
	assert.Equal(t, "coin-01", view.Coins[0].ID)

	rec = f.do(t, http.MethodGet, "/api/market?page=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	f := newFixture(t)
	f.store.ApplyTicks(map[string]float64{"BTCUSDT": 99999})

	rec := f.do(t, http.MethodPost, "/api/market/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap market.Snapshot
	decode(t, rec, &snap)
	assert.Equal(t, 60000.0, snap.Coins[0].CurrentPrice, "refresh replaces tick prices with snapshot")

	rec = f.do(t, http.MethodPost, "/api/market/refresh?background=true", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/market/refresh?background=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVisibilityEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/visibility", `{"visible": false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.store.Gate().Visible())

	rec = f.do(t, http.MethodPut, "/api/visibility", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, f.store.Gate().Visible())

	f.do(t, http.MethodPut, "/api/visibility", `{"visible": true}`)
	assert.True(t, f.store.Gate().Visible())
}

func TestPortfolioEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/portfolio", `{"coinId":"bitcoin","quantity":0.5,"purchasePrice":50000}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var btc portfolio.Item
	decode(t, rec, &btc)
	assert.NotEmpty(t, btc.ID)

	// 未给买入价时使用当前行情价
	rec = f.do(t, http.MethodPost, "/api/portfolio", `{"coinId":"ethereum","quantity":10}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var eth portfolio.Item
	decode(t, rec, &eth)
	assert.Equal(t, 3000.0, eth.PurchasePrice)

	rec = f.do(t, http.MethodPost, "/api/portfolio", `{"coinId":"bitcoin","quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/portfolio", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/portfolio", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sum portfolio.Summary
	decode(t, rec, &sum)
	assert.Equal(t, 60000.0, sum.TotalValue)
	assert.Len(t, sum.Positions, 2)

	rec = f.do(t, http.MethodDelete, "/api/portfolio/"+btc.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, "/api/portfolio/"+btc.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1, f.ledger.Len())
}

func TestResetClearsPortfolioAndSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.sess.Login(context.Background(), "trader@example.com", "pw")
	require.NoError(t, err)
	rec := f.do(t, http.MethodPost, "/api/portfolio", `{"coinId":"bitcoin","quantity":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/portfolio", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, f.ledger.Len())
	assert.False(t, f.sess.State().IsAuthenticated)

	rec = f.do(t, http.MethodGet, "/api/portfolio", "")
	var sum portfolio.Summary
	decode(t, rec, &sum)
	assert.Empty(t, sum.Positions)
	assert.Equal(t, 0.0, sum.TotalValue)
}

func TestSessionEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/session/login", `{"email":"bad"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/session/login", `{"email":"trader@example.com","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var u session.User
	decode(t, rec, &u)
	assert.Equal(t, "trader@example.com", u.Email)

	rec = f.do(t, http.MethodGet, "/api/session", "")
	var st session.State
	decode(t, rec, &st)
	assert.True(t, st.IsAuthenticated)

	rec = f.do(t, http.MethodPost, "/api/session/logout", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/session", "")
	decode(t, rec, &st)
	assert.False(t, st.IsAuthenticated)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	f.do(t, http.MethodGet, "/api/market", "")
	rec = f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `coinwatch_http_requests_total{code="200",route="/api/market"} 1`)
	assert.Contains(t, body, "coinwatch_sync_snapshot_fetches_total")
}
