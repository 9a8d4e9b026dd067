package cli

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lucasfdcampos/lead-scraper/internal/cache"
	"github.com/lucasfdcampos/lead-scraper/internal/config"
	"github.com/lucasfdcampos/lead-scraper/internal/domain"
	"github.com/lucasfdcampos/lead-scraper/internal/fetch"
	"github.com/lucasfdcampos/lead-scraper/internal/pipeline"
	"github.com/lucasfdcampos/lead-scraper/internal/site"
	"github.com/lucasfdcampos/lead-scraper/internal/store"
	"github.com/lucasfdcampos/lead-scraper/internal/walker"
)

var errNoMongo = eris.New("tasks need MongoDB; set MONGO_URI")

// app is the wired runtime shared by every query of a process. The render
// fallbacks are built once so their rate limit spans queries.
type app struct {
	cfg       *config.Config
	redis     *cache.Client
	mongo     *store.Client
	fallbacks []fetch.Renderer
	workers   int
}

func newApp(c *config.Config, workers int) *app {
	a := &app{cfg: c, workers: workers}
	detector := c.Detector()
	if c.BrowserFallback {
		a.fallbacks = append(a.fallbacks, fetch.NewBrowserRenderer(true, detector))
	}
	a.fallbacks = append(a.fallbacks, fetch.NewRenderProxy(c.RenderProxyURL,
		fetch.WithRenderToken(c.RenderProxyToken),
		fetch.WithRenderDetector(detector),
		fetch.WithRenderRate(c.RenderRPM()),
	))
	return a
}

// connect attaches Redis and MongoDB. Either being unavailable only
// disables that layer.
func (a *app) connect(ctx context.Context) {
	rc := cache.New(a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
	ctx5s, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := rc.Ping(ctx5s); err != nil {
		zap.L().Warn("redis not available, results will not be cached", zap.String("addr", a.cfg.RedisAddr), zap.Error(err))
		_ = rc.Close()
	} else {
		a.redis = rc
		zap.L().Info("redis connected", zap.String("addr", a.cfg.RedisAddr))
	}
	cancel()

	ctx10s, cancel := context.WithTimeout(ctx, 10*time.Second)
	mc, err := store.New(ctx10s, a.cfg.MongoURI)
	cancel()
	if err != nil {
		zap.L().Warn("mongodb not available, results will not be persisted", zap.Error(err))
		return
	}
	a.mongo = mc
	zap.L().Info("mongodb connected")
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.mongo.Disconnect(ctx)
		cancel()
	}
}

// resolver builds the fetch chain for one site: a session client that warms
// up on the site's homepage, then the configured fallbacks.
func (a *app) resolver(s *site.Site) walker.Resolver {
	client := fetch.NewClient(fetch.ClientOptions{
		Homepage: s.Homepage,
		Cookies:  a.cfg.Cookies,
		Detector: a.cfg.Detector(),
	})
	return fetch.NewChain(client, a.cfg.Identities(), fetch.WithFallbacks(a.fallbacks...))
}

func (a *app) pipelineConfig() pipeline.Config {
	pc := pipeline.Config{
		Resolver: a.resolver,
		Tables:   a.cfg.Tables(),
		Workers:  a.workers,
	}
	// Assign only live clients so the interfaces stay nil otherwise.
	if a.redis != nil {
		pc.Redis = a.redis
	}
	if a.mongo != nil {
		pc.Mongo = a.mongo
	}
	return pc
}

func (a *app) run(ctx context.Context, q domain.Query) (*domain.Result, error) {
	return pipeline.Run(ctx, q, a.pipelineConfig())
}

func (a *app) taskConfig() pipeline.TaskConfig {
	tc := pipeline.TaskConfig{
		Pipeline:  a.pipelineConfig(),
		MinLeads:  a.cfg.TaskMinLeads,
		MaxCycles: a.cfg.TaskMaxCycles,
	}
	if a.mongo != nil {
		tc.Tasks = a.mongo
	}
	return tc
}

// processPending works the task queue. It needs MongoDB.
func (a *app) processPending(ctx context.Context, limit int64) ([]domain.TaskReport, error) {
	if a.mongo == nil {
		return nil, errNoMongo
	}
	return pipeline.ProcessPending(ctx, limit, a.taskConfig())
}
