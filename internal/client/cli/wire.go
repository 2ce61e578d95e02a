package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/storefront-auth/internal/client/callback"
	"github.com/dmitrijs2005/storefront-auth/internal/client/client"
	"github.com/dmitrijs2005/storefront-auth/internal/client/config"
	"github.com/dmitrijs2005/storefront-auth/internal/client/otp"
	"github.com/dmitrijs2005/storefront-auth/internal/client/repositories/kv"
	"github.com/dmitrijs2005/storefront-auth/internal/client/repositories/profiles"
	"github.com/dmitrijs2005/storefront-auth/internal/client/session"
	"github.com/dmitrijs2005/storefront-auth/internal/cryptox"
	"github.com/dmitrijs2005/storefront-auth/internal/filex"
	"github.com/dmitrijs2005/storefront-auth/internal/logging"
	"github.com/redis/go-redis/v9"
)

// NewApp builds the full client from cfg. The returned App owns every
// resource it opened; Run closes them on exit.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (app *App, err error) {
	var closers []func() error
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	closers = append(closers, closeStore)

	storage := session.NewStorage(store, session.NewKeys(cfg.Namespace))

	gc, err := client.NewIdentityClient(cfg.ServerEndpointAddr,
		client.WithLogger(log),
		client.WithRequestTimeout(cfg.RequestTimeout),
		client.WithSessionStore(storage),
	)
	if err != nil {
		return nil, fmt.Errorf("identity client: %w", err)
	}
	closers = append(closers, gc.Close)

	var profileStore client.ProfileStore = gc
	if cfg.ProfileBackend == config.ProfileBackendPostgres {
		db, err := profiles.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		closers = append(closers, db.Close)
		profileStore = profiles.NewPostgresRepository(db)
	}

	reconciler := session.NewReconciler(gc, profileStore, storage, cfg.SignupGracePeriod, log)
	coord := session.New(session.Deps{
		Provider:   gc,
		Profiles:   profileStore,
		Storage:    storage,
		Reconciler: reconciler,
		Log:        log,
	}, session.Options{
		PollDelay:       cfg.FallbackPollDelay,
		GracePeriod:     cfg.SignupGracePeriod,
		RequestTimeout:  cfg.RequestTimeout,
		ProfileCacheTTL: cfg.ProfileCacheTTL,
	})
	closers = append(closers, func() error { coord.Dispose(); return nil })

	flows := otp.NewController(otp.Deps{
		Provider:   gc,
		Sessions:   coord,
		Reconciler: reconciler,
		Storage:    storage,
		Log:        log,
	}, otp.Options{
		SignupCodeLength: cfg.SignupCodeLength,
		ResetCodeLength:  cfg.ResetCodeLength,
		ChangeCodeLength: cfg.ChangeCodeLength,
		ModalCodeLength:  cfg.ModalCodeLength,
		ResendCooldown:   cfg.ResendCooldown,
		TTL:              cfg.OTPTTL,
	})

	var redirect redirectSource
	if cfg.CallbackAddr != "" {
		cb := callback.NewServer(cfg.CallbackAddr, log)
		if err := cb.Start(); err != nil {
			log.Warn(ctx, "email links disabled", "error", err)
		} else {
			closers = append(closers, func() error { return cb.Shutdown(context.Background()) })
			redirect = cb
		}
	}

	// No fragment at start: a CLI is never opened through a redirect.
	if err := coord.Init(ctx, nil); err != nil {
		return nil, err
	}

	app = newApp(coord, flows, redirect, log, nil, nil)
	app.closers = closers
	return app, nil
}

func openStore(ctx context.Context, cfg *config.Config) (kv.Store, func() error, error) {
	var (
		store   kv.Store
		closeFn = func() error { return nil }
	)

	switch cfg.StorageBackend {
	case config.StorageMemory:
		store = kv.NewMemoryStore()
	case config.StorageRedis:
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rc.Ping(ctx).Err(); err != nil {
			rc.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		store, closeFn = kv.NewRedisStore(rc, cfg.Namespace), rc.Close
	default:
		path, err := filex.EnsureParentDir(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		s, err := kv.OpenSQLite(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		store, closeFn = s, s.Close
	}

	if cfg.StorageSecret == "" {
		return store, closeFn, nil
	}
	sealer, err := cryptox.NewSealer(cryptox.DeriveKey([]byte(cfg.StorageSecret), []byte(cfg.Namespace)))
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return kv.NewSealed(store, sealer), closeFn, nil
}
