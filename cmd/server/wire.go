package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-token-authority/account"
	"github.com/jrsteele09/go-token-authority/actiontoken"
	actiontokenmemstore "github.com/jrsteele09/go-token-authority/actiontoken/memstore"
	"github.com/jrsteele09/go-token-authority/auth"
	"github.com/jrsteele09/go-token-authority/authorization"
	"github.com/jrsteele09/go-token-authority/authorization/memstore"
	fakeclientrepo "github.com/jrsteele09/go-token-authority/clients/fakerepo"
	"github.com/jrsteele09/go-token-authority/identity"
	"github.com/jrsteele09/go-token-authority/internal/config"
	"github.com/jrsteele09/go-token-authority/metrics"
	"github.com/jrsteele09/go-token-authority/notify"
	"github.com/jrsteele09/go-token-authority/server"
	"github.com/jrsteele09/go-token-authority/storage/postgres"
	tokenredis "github.com/jrsteele09/go-token-authority/storage/redis"
	"github.com/jrsteele09/go-token-authority/token"
	"github.com/jrsteele09/go-token-authority/users"
	fakeuserrepo "github.com/jrsteele09/go-token-authority/users/repofake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

const healthPingTimeout = time.Second

// application is everything run needs to serve and later release.
type application struct {
	handler http.Handler
	closers []func()
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// stores are the persistence backends chosen by config.
type stores struct {
	authorizations authorization.Store
	actionTokens   actiontoken.Store
	healthChecks   []func(context.Context) error
	closers        []func()
}

func build(ctx context.Context, cfg config.Config) (*application, error) {
	app := &application{}

	st, err := buildStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, st.closers...)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	issuer, err := buildIssuer(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	userRepo := fakeuserrepo.NewFakeUserRepo()
	clientRepo := fakeclientrepo.NewFakeClientRepo()

	authService, err := auth.NewAuthorizationService(auth.Repos{
		Users:          userRepo,
		Clients:        clientRepo,
		Authorizations: st.authorizations,
	}, issuer, auth.WithMetrics(m), auth.WithAccessTokenParser(issuer))
	if err != nil {
		app.Close()
		return nil, err
	}

	tracker, err := actiontoken.NewTracker(st.actionTokens,
		actiontoken.WithTTL(actiontoken.PurposeActivation, cfg.GetActivationTokenTTL()),
		actiontoken.WithTTL(actiontoken.PurposePasswordReset, cfg.GetPasswordResetTokenTTL()),
		actiontoken.WithMetrics(m),
	)
	if err != nil {
		app.Close()
		return nil, err
	}

	sender, err := buildSender(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	accounts, err := account.NewService(userRepo, tracker, sender)
	if err != nil {
		app.Close()
		return nil, err
	}

	services := server.Services{
		Auth:        authService,
		Accounts:    accounts,
		Users:       userRepo,
		Clients:     clientRepo,
		Passwords:   users.NewPasswordVerifier(userRepo),
		Gatherer:    registry,
		HealthCheck: combineHealthChecks(st.healthChecks),
	}
	if cfg.GetOIDCIssuer() != "" {
		verifier, err := identity.NewOIDCVerifier(ctx, cfg.GetOIDCIssuer(), cfg.GetOIDCClientID(), cfg.GetOIDCClientSecret(), cfg.GetOIDCRedirectURL())
		if err != nil {
			app.Close()
			return nil, err
		}
		services.OIDC = verifier
		log.Info().Str("issuer", cfg.GetOIDCIssuer()).Msg("OIDC login enabled")
	}

	srv, err := server.New(cfg, services)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.handler = srv
	return app, nil
}

func buildStores(ctx context.Context, cfg config.Config) (*stores, error) {
	st := &stores{}

	var pool *pgxpool.Pool
	getPool := func() (*pgxpool.Pool, error) {
		if pool != nil {
			return pool, nil
		}
		p, err := postgres.NewPool(ctx, cfg.GetDatabaseURL(), cfg.GetDatabaseMaxConns())
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(ctx, p); err != nil {
			p.Close()
			return nil, err
		}
		pool = p
		st.closers = append(st.closers, p.Close)
		st.healthChecks = append(st.healthChecks, func(ctx context.Context) error {
			return postgres.Ping(ctx, p, healthPingTimeout)
		})
		return p, nil
	}

	switch kind := cfg.GetAuthorizationStore(); kind {
	case config.StoreMemory:
		st.authorizations = memstore.New()
	case config.StorePostgres:
		p, err := getPool()
		if err != nil {
			return nil, err
		}
		st.authorizations = postgres.NewAuthorizationStore(p)
	default:
		st.close()
		return nil, fmt.Errorf("[buildStores] unsupported authorization store %q", kind)
	}

	switch kind := cfg.GetActionTokenStore(); kind {
	case config.StoreMemory:
		st.actionTokens = actiontokenmemstore.New()
	case config.StorePostgres:
		p, err := getPool()
		if err != nil {
			st.close()
			return nil, err
		}
		st.actionTokens = postgres.NewActionTokenStore(p)
	case config.StoreRedis:
		client, err := tokenredis.NewClient(ctx, cfg.GetRedisURL())
		if err != nil {
			st.close()
			return nil, err
		}
		st.closers = append(st.closers, func() { _ = client.Close() })
		st.healthChecks = append(st.healthChecks, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		st.actionTokens = tokenredis.NewActionTokenStore(client, tokenredis.WithRetention(redisRetention(cfg)))
	default:
		st.close()
		return nil, fmt.Errorf("[buildStores] unsupported action token store %q", kind)
	}

	log.Info().
		Str("authorizations", cfg.GetAuthorizationStore()).
		Str("action_tokens", cfg.GetActionTokenStore()).
		Msg("stores ready")
	return st, nil
}

func (st *stores) close() {
	for i := len(st.closers) - 1; i >= 0; i-- {
		st.closers[i]()
	}
}

func buildIssuer(cfg config.Config) (*token.Manager, error) {
	var signer token.Signer
	if secret := cfg.GetTokenSigningSecret(); secret != "" {
		signer = token.NewHMACSigner(secret)
	} else {
		random, err := token.NewRandomHMACSigner()
		if err != nil {
			return nil, err
		}
		log.Warn().Msg("no token signing secret configured; access tokens will not verify after a restart")
		signer = random
	}

	return token.New(signer,
		token.WithTokenExpiry(cfg.GetDefaultAccessTokenExpiry(), cfg.GetDefaultRefreshTokenExpiry()),
		token.WithRefreshTokenLength(cfg.GetRefreshTokenLength()),
		token.WithIssuer(cfg.GetTokenIssuer()),
		token.WithAudience(cfg.GetTokenAudience()),
	), nil
}

func buildSender(cfg config.Config) (notify.Sender, error) {
	if cfg.GetSmtpHost() == "" {
		log.Info().Msg("no SMTP host configured; action token links will be logged")
		return notify.NewLogSender(cfg.GetBaseURL()), nil
	}
	return notify.NewSMTPSender(
		cfg.GetSmtpHost(),
		cfg.GetSmtpPort(),
		cfg.GetSmtpAccount(),
		cfg.GetSmtpPassword(),
		cfg.GetSmtpFrom(),
		cfg.GetAppName(),
		cfg.GetBaseURL(),
		notify.WithSMTPTimeout(cfg.GetSmtpTimeout()),
	)
}

// redisRetention keeps token documents for twice the longest TTL, long enough to still answer
// "already consumed" or "expired" for a link clicked late.
func redisRetention(cfg config.Config) time.Duration {
	longest := max(cfg.GetActivationTokenTTL(), cfg.GetPasswordResetTokenTTL())
	return 2 * longest
}

func combineHealthChecks(checks []func(context.Context) error) func(context.Context) error {
	if len(checks) == 0 {
		return nil
	}
	return func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
