package container

import (
	"context"
	"fmt"
	"net/http"

	"coinwatch-go/config"
	"coinwatch-go/gateway"
	"coinwatch-go/infrastructure/alert"
	"coinwatch-go/infrastructure/logger"
	"coinwatch-go/infrastructure/monitor"
	"coinwatch-go/internal/api"
	"coinwatch-go/internal/session"
	"coinwatch-go/internal/store"
	"coinwatch-go/monitor/logschema"
	"coinwatch-go/portfolio"

	"go.uber.org/zap"
)

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	// 配置
	cfg        *config.AppConfig
	configPath string

	// 基础设施
	logger  *logger.Logger
	monitor *monitor.Monitor
	alerts  *alert.Manager

	// 行情网关
	restClient *gateway.MarketRESTClient
	stream     *gateway.TickerStream

	// 核心服务
	store   *store.MarketStore
	ledger  *portfolio.Ledger
	session *session.Holder
	api     *api.Server

	reloader   *config.HotReloader
	httpServer *httpServerComponent

	// 生命周期管理
	lifecycle *LifecycleManager
}

// New 创建新的Container实例；configPath 为空时使用默认配置。
func New(configPath string) (*Container, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	c := NewWithConfig(cfg)
	c.configPath = configPath
	return c, nil
}

// NewWithConfig 使用已加载的配置创建容器，不启用热更新。
func NewWithConfig(cfg config.AppConfig) *Container {
	return &Container{
		cfg:       &cfg,
		lifecycle: NewLifecycleManager(),
	}
}

// Build 构建所有组件
func (c *Container) Build() error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}

	c.buildGateway()

	if err := c.buildCoreServices(); err != nil {
		return fmt.Errorf("build core services failed: %w", err)
	}

	if err := c.registerLifecycleComponents(); err != nil {
		return fmt.Errorf("register components failed: %w", err)
	}
	c.logger.Info("container built successfully")
	return nil
}

func (c *Container) buildInfrastructure() error {
	var err error
	c.logger, err = logger.New(c.cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger failed: %w", err)
	}

	c.monitor = monitor.New(monitor.DefaultConfig())

	channels := []alert.Channel{alert.NewLogChannel("log", c.logger.Logger)}
	if c.cfg.Alert.WebhookURL != "" {
		channels = append(channels, alert.NewWebhookChannel("webhook", c.cfg.Alert.WebhookURL))
	}
	c.alerts = alert.NewManager(channels, c.cfg.Alert.Throttle())

	c.logger.Info("infrastructure built")
	return nil
}

func (c *Container) buildGateway() {
	c.restClient = gateway.NewMarketRESTClient(c.cfg.Market.BaseURL, c.logger.Logger)
	if t := c.cfg.Market.Timeout(); t > 0 {
		c.restClient.HTTPClient = &http.Client{Timeout: t}
	}
	if rl := c.cfg.Market.RateLimit; rl.RPS > 0 {
		c.restClient.Limiter = gateway.NewTokenBucketLimiter(rl.RPS, rl.Burst)
	}
	if br := c.cfg.Market.Breaker; br.Threshold > 0 {
		c.restClient.Breaker = gateway.NewCircuitBreaker(gateway.CircuitBreakerConfig{
			Threshold: br.Threshold,
			Cooldown:  br.Cooldown(),
		})
	}

	c.stream = gateway.NewTickerStream(c.cfg.Stream.Endpoint, c.logger.Logger)
	if t := c.cfg.Stream.ReadTimeout(); t > 0 {
		c.stream.ReadTimeout = t
	}
	c.stream.Observer = c.monitor

	c.logger.Info("gateway built")
}

func (c *Container) buildCoreServices() error {
	c.store = store.New(c.restClient, c.stream, store.Options{
		Query: gateway.MarketsQuery{
			VsCurrency: c.cfg.Market.VsCurrency,
			Order:      c.cfg.Market.Order,
			PerPage:    c.cfg.Market.PerPage,
			Page:       c.cfg.Market.Page,
			Sparkline:  c.cfg.Market.Sparkline,
		},
		QuoteAsset:      c.cfg.Stream.QuoteAsset,
		RefreshInterval: c.cfg.Sync.RefreshInterval(),
		Reconnect: store.ReconnectPolicy{
			MaxRetries: c.cfg.Sync.Reconnect.MaxRetries,
			Backoff:    c.cfg.Sync.Reconnect.Backoff(),
		},
		Logger:  c.logger.Logger,
		Monitor: c.monitor,
		Alerter: c.alerts,
		Sink:    c.logEvent,
	})

	var err error
	c.ledger, err = portfolio.NewLedger(portfolio.NewFileStore(c.cfg.Portfolio.Path), c.logger.Logger, c.logEvent)
	if err != nil {
		return fmt.Errorf("load portfolio failed: %w", err)
	}
	c.monitor.UpdatePortfolioValue(c.ledger.TotalValue(c.store.PriceMap()))

	c.session = session.New(session.DefaultLoginDelay, c.logger.Logger)
	c.api = api.NewServer(c.store, c.store.Gate(), c.ledger, c.session, c.monitor, c.logger.Logger)

	c.logger.Info("core services built")
	return nil
}

func (c *Container) registerLifecycleComponents() error {
	c.lifecycle.Register(&storeComponent{store: c.store})

	if c.configPath != "" {
		var err error
		c.reloader, err = config.NewHotReloader(c.configPath, config.DefaultHotReloadConfig(), c.logger.Logger)
		if err != nil {
			return err
		}
		c.reloader.OnReload(c.applyConfig)
		c.lifecycle.Register(&reloaderComponent{reloader: c.reloader})
	}

	c.httpServer = &httpServerComponent{
		name:    "api_server",
		handler: c.api,
		addr:    c.cfg.HTTP.Addr,
		logger:  c.logger,
	}
	c.lifecycle.Register(c.httpServer)
	return nil
}

// applyConfig 热更新只处理刷新周期与日志级别，其余字段需要重启。
func (c *Container) applyConfig(cfg config.AppConfig) {
	c.store.SetRefreshInterval(cfg.Sync.RefreshInterval())
	if cfg.Log.Level != "" && cfg.Log.Level != c.logger.Level() {
		if err := c.logger.SetLevel(cfg.Log.Level); err != nil {
			c.logger.LogError(err, map[string]interface{}{"action": "set_log_level"})
		}
	}
}

// logEvent 按事件类型路由到对应的结构化日志。
func (c *Container) logEvent(event string, fields map[string]interface{}) {
	if err := logschema.Validate(event, fields); err != nil {
		c.logger.Warn("event schema mismatch", zap.Error(err))
	}
	switch event {
	case logschema.EventStreamStatus:
		c.logger.LogStream(event, fields)
	case logschema.EventPortfolioChange:
		c.logger.LogPortfolio(event, fields)
		c.monitor.UpdatePortfolioValue(c.ledger.TotalValue(c.store.PriceMap()))
	default:
		c.logger.LogSync(event, fields)
	}
}

func (c *Container) Start(ctx context.Context) error {
	c.logger.Info("starting container...")

	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	c.logger.Info("container started", zap.String("addr", c.httpServer.Addr()))
	return nil
}

func (c *Container) Stop() error {
	c.logger.Info("stopping container...")

	if err := c.lifecycle.StopAll(); err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
		return err
	}

	if c.alerts != nil {
		st := c.alerts.Stats()
		c.logger.Info("alert summary",
			zap.Int("sent", st.Sent),
			zap.Int("throttled", st.Throttled),
			zap.Int("failed", st.Failed))
	}
	if c.logger != nil {
		c.logger.Close()
	}
	return nil
}

func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}

func (c *Container) Config() config.AppConfig  { return *c.cfg }
func (c *Container) Logger() *logger.Logger    { return c.logger }
func (c *Container) Store() *store.MarketStore { return c.store }
func (c *Container) Ledger() *portfolio.Ledger { return c.ledger }
func (c *Container) Handler() http.Handler     { return c.api }

// Addr API 服务实际监听地址，启动前为空。
func (c *Container) Addr() string {
	if c.httpServer == nil {
		return ""
	}
	return c.httpServer.Addr()
}
