package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	conversationx "github.com/baazlab/voicereach/agent/agents/conversation"
	callogx "github.com/baazlab/voicereach/agent/callog"
	contractx "github.com/baazlab/voicereach/agent/contract"
	generatex "github.com/baazlab/voicereach/agent/generate"
	intentx "github.com/baazlab/voicereach/agent/intent"
	retrievex "github.com/baazlab/voicereach/agent/retrieve"
	statex "github.com/baazlab/voicereach/agent/state"
	configx "github.com/baazlab/voicereach/pkg/config"
	_ "github.com/baazlab/voicereach/pkg/logger/autoload"
	twiliox "github.com/baazlab/voicereach/pkg/twilio"
	webhookx "github.com/baazlab/voicereach/webhook"
)

type AppConfig struct {
	RedisURL   string        `envconfig:"REDIS_URL"`
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"1h"`
}

func main() {
	appCfg := configx.MustNew[AppConfig]("")

	store := newSessionStore(*appCfg)
	defer store.Close()

	recorder := newRecorder()
	defer recorder.Close()

	classifier := intentx.New(*configx.MustNew[intentx.Config]("INTENT"))
	generator := newGenerator()
	retriever := newRetriever()

	turnCfg := configx.MustNew[conversationx.Config]("TURN")
	orchestrator, err := conversationx.New(store, generator, retriever, classifier, recorder, *turnCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build conversation orchestrator")
	}

	httpCfg := configx.MustNew[webhookx.Config]("HTTP")
	server := webhookx.NewServer(*httpCfg, store, orchestrator, newDialer(), recorder)

	srv := &http.Server{
		Addr:              httpCfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpCfg.Addr).Msg("webhook server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("webhook server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown webhook server")
	}
}

// newSessionStore prefers redis when a connection string is configured and
// falls back to the in-process store otherwise.
func newSessionStore(cfg AppConfig) statex.Store {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		store, err := statex.NewStore(statex.StoreTypeMemory, statex.WithTTL(cfg.SessionTTL))
		if err != nil {
			log.Fatal().Err(err).Msg("build memory session store")
		}
		log.Info().Msg("using in-memory session store")
		return store
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("parse redis url")
	}
	store, err := statex.NewStore(statex.StoreTypeRedis,
		statex.WithRedisClient(redis.NewClient(opts)),
		statex.WithTTL(cfg.SessionTTL))
	if err != nil {
		log.Fatal().Err(err).Msg("build redis session store")
	}
	log.Info().Msg("using redis session store")
	return store
}

// newGenerator uses the language model when an API key is present and the
// deterministic template bank otherwise.
func newGenerator() contractx.Generator {
	llmCfg := configx.MustNew[generatex.LLMConfig]("LLM")
	if strings.TrimSpace(llmCfg.APIKey) == "" {
		log.Info().Msg("no llm api key, using template reply generator")
		return generatex.NewTemplate()
	}

	gen, err := generatex.NewLLM(*llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build llm generator")
	}
	log.Info().Str("model", llmCfg.Model).Msg("using llm reply generator")
	return gen
}

func newRetriever() contractx.Retriever {
	knowCfg := configx.MustNew[retrievex.HTTPConfig]("KNOWLEDGE")
	if strings.TrimSpace(knowCfg.URL) == "" {
		log.Info().Msg("no knowledge service url, using static retriever")
		return retrievex.NewStatic()
	}

	ret, err := retrievex.NewHTTP(*knowCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build knowledge retriever")
	}
	log.Info().Str("url", knowCfg.URL).Msg("using http knowledge retriever")
	return ret
}

// newDialer returns nil when the provider account is absent; outbound
// calling then answers with a configuration error while the webhook
// endpoints keep working.
func newDialer() webhookx.Dialer {
	twilioCfg := configx.MustNew[twiliox.Config]("TWILIO")
	if !twilioCfg.Configured() {
		log.Info().Msg("twilio account not configured, outbound calling disabled")
		return nil
	}

	client, err := twiliox.New(*twilioCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build twilio client")
	}
	return client
}

func newRecorder() callogx.Recorder {
	callogCfg := configx.MustNew[callogx.Config]("CALLOG")
	if strings.TrimSpace(callogCfg.DSN) == "" {
		log.Info().Msg("no call log dsn, outcomes will not be persisted")
		return callogx.NoopRecorder{}
	}

	recorder, err := callogx.NewBun(*callogCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build call log recorder")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := recorder.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("ensure call log schema")
	}
	return recorder
}
