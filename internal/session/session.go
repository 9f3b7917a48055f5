package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultLoginDelay 模拟认证服务的网络延迟。
const DefaultLoginDelay = time.Second

var (
	ErrInvalidEmail = errors.New("invalid email")
	ErrLoginPending = errors.New("login already in progress")
)

// User 登录用户。
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

// State 会话状态快照。
type State struct {
	User            *User `json:"user"`
	IsAuthenticated bool  `json:"isAuthenticated"`
	IsLoading       bool  `json:"isLoading"`
}

// Holder 本地模拟会话：接受任意密码，只校验邮箱格式。
// 退出登录不会清理持仓数据。
type Holder struct {
	mu       sync.RWMutex
	user     *User
	loading  bool
	delay    time.Duration
	logger   *zap.Logger
	validate *validator.Validate
}

func New(delay time.Duration, logger *zap.Logger) *Holder {
	if delay < 0 {
		delay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Holder{delay: delay, logger: logger, validate: validator.New()}
}

// Login 等待模拟延迟后建立会话。ctx 取消时放弃登录且不修改状态。
func (h *Holder) Login(ctx context.Context, email, password string) (User, error) {
	if err := h.validate.Var(email, "required,email"); err != nil {
		return User{}, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}

	h.mu.Lock()
	if h.loading {
		h.mu.Unlock()
		return User{}, ErrLoginPending
	}
	h.loading = true
	h.mu.Unlock()

	h.logger.Info("authenticating", zap.String("email", email), zap.Int("passwordLen", len(password)))

	timer := time.NewTimer(h.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		h.mu.Lock()
		h.loading = false
		h.mu.Unlock()
		return User{}, ctx.Err()
	case <-timer.C:
	}

	u := User{
		ID:     uuid.NewString(),
		Name:   "Alex Trader",
		Email:  email,
		Avatar: "https://images.unsplash.com/photo-1472099645785-5658abf4ff4e?w=256&h=256",
	}
	h.mu.Lock()
	h.user = &u
	h.loading = false
	h.mu.Unlock()
	return u, nil
}

// Logout 清除当前用户，可重复调用。
func (h *Holder) Logout() {
	h.mu.Lock()
	had := h.user != nil
	h.user = nil
	h.mu.Unlock()
	if had {
		h.logger.Info("user logged out, portfolio kept")
	}
}

// Current 返回当前用户。
func (h *Holder) Current() (User, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.user == nil {
		return User{}, false
	}
	return *h.user, true
}

func (h *Holder) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	st := State{IsLoading: h.loading, IsAuthenticated: h.user != nil}
	if h.user != nil {
		u := *h.user
		st.User = &u
	}
	return st
}
