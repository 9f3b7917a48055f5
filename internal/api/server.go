package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"coinwatch-go/infrastructure/monitor"
	"coinwatch-go/internal/session"
	"coinwatch-go/market"
	"coinwatch-go/portfolio"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// MarketService 行情同步核心对外暴露的读写面。
type MarketService interface {
	State() market.Snapshot
	Coin(id string) (market.Coin, bool)
	PriceMap() map[string]float64
	FetchMarketData(ctx context.Context, background bool)
}

// Visibility 消费端可见性开关。
type Visibility interface {
	Visible() bool
	SetVisible(visible bool)
}

// Server HTTP 接口。
type Server struct {
	market  MarketService
	gate    Visibility
	ledger  *portfolio.Ledger
	session *session.Holder
	mon     *monitor.Monitor
	logger  *zap.Logger
	router  *mux.Router
}

// NewServer 注册所有路由。mon 为 nil 时不暴露 /metrics。
func NewServer(ms MarketService, gate Visibility, ledger *portfolio.Ledger, sess *session.Holder, mon *monitor.Monitor, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		market:  ms,
		gate:    gate,
		ledger:  ledger,
		session: sess,
		mon:     mon,
		logger:  logger,
		router:  mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.instrument)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.mon != nil {
		r.Handle("/metrics", s.mon.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/market", s.handleMarket).Methods(http.MethodGet)
	api.HandleFunc("/market/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/market/{id}", s.handleCoin).Methods(http.MethodGet)
	api.HandleFunc("/visibility", s.handleVisibility).Methods(http.MethodPut)

	api.HandleFunc("/portfolio", s.handlePortfolio).Methods(http.MethodGet)
	api.HandleFunc("/portfolio", s.handleAddItem).Methods(http.MethodPost)
	api.HandleFunc("/portfolio", s.handleReset).Methods(http.MethodDelete)
	api.HandleFunc("/portfolio/{id}", s.handleRemoveItem).Methods(http.MethodDelete)

	api.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)
	api.HandleFunc("/session/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/session/logout", s.handleLogout).Methods(http.MethodPost)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.market.State()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"polling":   st.IsPolling,
		"phase":     st.Phase,
		"assets":    len(st.Coins),
		"updatedAt": st.UpdatedAt,
	})
}

// marketView 按排名排序后的行情，可选搜索与分页。
type marketView struct {
	market.Snapshot
	Total      int `json:"total"`
	Page       int `json:"page,omitempty"`
	TotalPages int `json:"totalPages,omitempty"`
}

// handleMarket 支持 ?search= 过滤名称或 symbol，?page= 按每页 10 条分页。
func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := 0
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		page = n
	}

	view := marketView{Snapshot: s.market.State()}
	coins := market.Search(market.SortByRank(view.Coins), q.Get("search"))
	view.Total = len(coins)
	if page > 0 {
		coins, view.TotalPages = market.Paginate(coins, page, market.DefaultPageSize)
		view.Page = page
	}
	view.Coins = coins
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCoin(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	c, ok := s.market.Coin(id)
	if !ok {
		writeError(w, http.StatusNotFound, "coin not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleRefresh background=true 时异步触发并返回 202，否则等待拉取结束返回最新状态。
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	background := false
	if v := r.URL.Query().Get("background"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "background must be a boolean")
			return
		}
		background = b
	}
	if background {
		go s.market.FetchMarketData(context.Background(), true)
		writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
		return
	}
	s.market.FetchMarketData(r.Context(), false)
	writeJSON(w, http.StatusOK, s.market.State())
}

type visibilityRequest struct {
	Visible *bool `json:"visible"`
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Visible == nil {
		writeError(w, http.StatusBadRequest, `body must be {"visible": bool}`)
		return
	}
	s.gate.SetVisible(*req.Visible)
	s.logger.Debug("visibility changed", zap.Bool("visible", *req.Visible))
	writeJSON(w, http.StatusOK, map[string]bool{"visible": s.gate.Visible()})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, _ *http.Request) {
	sum := s.ledger.Valuate(s.market.PriceMap())
	s.mon.UpdatePortfolioValue(sum.TotalValue)
	writeJSON(w, http.StatusOK, sum)
}

type addItemRequest struct {
	CoinID        string   `json:"coinId"`
	Quantity      float64  `json:"quantity"`
	PurchasePrice *float64 `json:"purchasePrice"`
}

// handleAddItem 未提供买入价时使用当前行情价。
func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	n := portfolio.NewItem{CoinID: req.CoinID, Quantity: req.Quantity}
	if req.PurchasePrice != nil {
		n.PurchasePrice = *req.PurchasePrice
	} else if c, ok := s.market.Coin(req.CoinID); ok {
		n.PurchasePrice = c.CurrentPrice
	}
	item, err := s.ledger.Add(n)
	switch {
	case errors.Is(err, portfolio.ErrInvalidItem):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("add portfolio item failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save portfolio")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	err := s.ledger.Remove(mux.Vars(r)["id"])
	switch {
	case errors.Is(err, portfolio.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		s.logger.Error("remove portfolio item failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save portfolio")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleReset 清空持仓并退出登录。
func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	if err := s.ledger.Clear(); err != nil {
		s.logger.Error("reset portfolio failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save portfolio")
		return
	}
	s.session.Logout()
	s.mon.UpdatePortfolioValue(0)
	s.logger.Info("portfolio and session reset")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.State())
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	u, err := s.session.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, session.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrLoginPending):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusRequestTimeout, err.Error())
	default:
		writeJSON(w, http.StatusOK, u)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.session.Logout()
	w.WriteHeader(http.StatusNoContent)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument 按路由模板记录请求数与耗时。
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.mon.RecordHTTPRequest(route, strconv.Itoa(rec.status))
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
