package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	rcache "github.com/open-builders/exmatrikulator-bot/internal/cache/redis"
	"github.com/open-builders/exmatrikulator-bot/internal/common/logger"
	"github.com/open-builders/exmatrikulator-bot/internal/config"
	"github.com/open-builders/exmatrikulator-bot/internal/domain/chat"
	apphttp "github.com/open-builders/exmatrikulator-bot/internal/http"
	"github.com/open-builders/exmatrikulator-bot/internal/metrics"
	"github.com/open-builders/exmatrikulator-bot/internal/platform/db"
	redisp "github.com/open-builders/exmatrikulator-bot/internal/platform/redis"
	"github.com/open-builders/exmatrikulator-bot/internal/platform/telegram"
	pgrepo "github.com/open-builders/exmatrikulator-bot/internal/repository/postgres"
	"github.com/open-builders/exmatrikulator-bot/internal/service/commands"
	"github.com/open-builders/exmatrikulator-bot/internal/service/dispatcher"
	"github.com/open-builders/exmatrikulator-bot/internal/service/membership"
	"github.com/open-builders/exmatrikulator-bot/internal/service/verification"
	"github.com/open-builders/exmatrikulator-bot/internal/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("exmatrikulator-bot", false)
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init("exmatrikulator-bot", cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	if cfg.DBAutoMigrate {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		log.Info().Msg("Migrations applied")
	}

	pg, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pg.Close()
	log.Info().Msg("Database connection established")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewDBStatsCollector(pg, "postgres"))
	mx := metrics.New(reg)

	checks := []apphttp.Check{{Name: "postgres", Ping: pg.PingContext}}

	var (
		rdb        *redisp.Client
		cache      membership.Cache
		tracker    verification.Tracker = verification.NopTracker{}
		challenges *rcache.ChallengeStore
	)
	if cfg.RedisEnabled() {
		rdb, err = redisp.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		log.Info().Str("addr", cfg.RedisAddr).Msg("Redis connection established")

		cache = rcache.NewMemberCache(rdb, cfg.Verification.MemberCacheTTL)
		challenges = rcache.NewChallengeStore(rdb, cfg.Verification.ChallengeTTL)
		tracker = challenges
		checks = append(checks, apphttp.Check{Name: "redis", Ping: rdb.Check})
	} else {
		log.Warn().Msg("REDIS_ADDR not set: member cache, challenge expiry and /verifyAll tracking disabled")
	}

	tg := telegram.NewClient(cfg.Telegram.APIURL, cfg.Telegram.BotToken, cfg.Telegram.RPS)
	me, err := tg.GetMe(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to reach telegram")
	}
	log.Info().Str("username", me.Username).Int64("id", me.ID).Msg("Authorized on telegram")

	memberRepo := pgrepo.NewMemberRepository(pg)
	members := membership.NewService(memberRepo, cache)
	scheduler := verification.NewScheduler(tg, mx)
	issuer := verification.NewIssuer(members, tg, tracker, mx)
	resolver := verification.NewResolver(members, tg, tracker, scheduler, cfg.Verification.ConfirmationTTL, mx)
	cmds := commands.NewService(tg, me.Username, membership.DefaultAdminChecker(memberRepo, tg), resolver, scheduler, cfg.Verification.ConfirmationTTL)
	disp := dispatcher.New(members, tg, issuer, cmds, mx, resolver)

	events := make(chan chat.Event, 64)

	httpOpts := apphttp.Options{
		Addr:    cfg.HTTPAddr,
		Debug:   cfg.Debug,
		Logger:  log.Logger,
		Metrics: reg,
		Checks:  checks,
	}
	if cfg.Telegram.UpdateSource == config.SourceWebhook {
		httpOpts.Webhook = apphttp.NewWebhookHandler(cfg.Telegram.WebhookSecret, events)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return disp.Run(gctx, events) })
	g.Go(func() error { return apphttp.NewServer(httpOpts).Run(gctx) })

	switch cfg.Telegram.UpdateSource {
	case config.SourcePolling:
		poller := telegram.NewPoller(tg, cfg.Telegram.PollTimeout)
		g.Go(func() error { return poller.Run(gctx, events) })
	case config.SourceRedis:
		hostname, _ := os.Hostname()
		stream := workers.NewUpdateStreamWorker(rdb, hostname)
		g.Go(func() error { return stream.Run(gctx, events) })
	case config.SourceWebhook:
		log.Info().Str("path", apphttp.WebhookPath).Msg("Receiving updates via webhook")
	}

	if challenges != nil && cfg.Verification.ChallengeTTL > 0 {
		expiry := workers.NewChallengeExpiryWorker(challenges, tg, mx, cfg.Verification.SweepInterval)
		g.Go(func() error { return expiry.Run(gctx) })
	}

	log.Info().Str("source", cfg.Telegram.UpdateSource).Msg("Bot started")

	if err := g.Wait(); err != nil && !isShutdown(err) {
		log.Error().Err(err).Msg("bot stopped with error")
	}

	// Confirmation deletions still in flight finish before exit.
	scheduler.Wait()
	log.Info().Msg("Bot exited")
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled)
}
