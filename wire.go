package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/llehouerou/earworm/internal/audio"
	"github.com/llehouerou/earworm/internal/auth"
	"github.com/llehouerou/earworm/internal/catalog"
	"github.com/llehouerou/earworm/internal/config"
	dbutil "github.com/llehouerou/earworm/internal/db"
	"github.com/llehouerou/earworm/internal/embed"
	"github.com/llehouerou/earworm/internal/errmsg"
	"github.com/llehouerou/earworm/internal/itunes"
	"github.com/llehouerou/earworm/internal/lastfm"
	"github.com/llehouerou/earworm/internal/library"
	"github.com/llehouerou/earworm/internal/logging"
	"github.com/llehouerou/earworm/internal/loop"
	"github.com/llehouerou/earworm/internal/player"
	"github.com/llehouerou/earworm/internal/spotify"
)

const cacheCleanTimeout = 5 * time.Second

// environment holds the source-specific components.
type environment struct {
	catalog   catalog.Catalog
	factory   player.Factory
	bridgeURL string
	closers   []func() error
	logger    *zap.Logger
}

// Close releases resources in reverse creation order.
func (env *environment) Close() {
	for i := len(env.closers) - 1; i >= 0; i-- {
		if err := env.closers[i](); err != nil {
			env.logger.Warn("shutdown", zap.Error(err))
		}
	}
}

func build(cfg *config.Config, logger *zap.Logger) (*environment, error) {
	env := &environment{logger: logging.Component(logger, "startup")}
	pc := cfg.GetPlaybackConfig()
	providerCfg := player.Config{
		ReadyTimeout:         pc.ReadyTimeout,
		InitDelay:            pc.InitDelay,
		PlayGrace:            pc.PlayGrace,
		UnknownLengthCeiling: pc.UnknownLengthCeiling,
	}

	switch cfg.Source {
	case config.SourceITunes, "":
		var opts []itunes.Option
		it := cfg.GetITunesConfig()
		opts = append(opts,
			itunes.WithCountry(it.Country),
			itunes.WithChartLimit(it.ChartLimit),
			itunes.WithLogger(logger))
		if cfg.HasLastfmConfig() {
			opts = append(opts, itunes.WithChartSource(lastfm.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret)))
		}
		env.catalog = env.withCache(itunes.NewClient(opts...), cfg.CacheTTL())
		env.factory = directFactory(providerCfg, logger)

	case config.SourceSpotify:
		if !cfg.HasSpotifyConfig() {
			return nil, errors.New("spotify source needs [spotify] client_id and client_secret")
		}
		session := auth.NewSession(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret)
		client := spotify.NewClient(session,
			spotify.WithMainAlbumsOnly(cfg.MainAlbumsOnly()),
			spotify.WithChartPlaylist(cfg.Spotify.ChartPlaylist),
			spotify.WithLogger(logger))
		env.catalog = env.withCache(client, cfg.CacheTTL())

		bridge := embed.New(embed.WithLogger(logger))
		if err := bridge.Start(cfg.BridgeAddr()); err != nil {
			env.Close()
			return nil, fmt.Errorf("%s on %s: %w", errmsg.OpBridgeStart, cfg.BridgeAddr(), err)
		}
		env.closers = append(env.closers, bridge.Close)
		env.bridgeURL = bridge.URL()
		env.factory = embedFactory(bridge, providerCfg, logger)
		env.logger.Info("embed bridge listening", zap.String("url", env.bridgeURL))

	case config.SourceLibrary:
		if len(cfg.LibrarySources) == 0 {
			return nil, library.ErrNoSources
		}
		env.catalog = library.New(cfg.LibrarySources, logger)
		env.factory = directFactory(providerCfg, logger)

	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}

	return env, nil
}

// withCache wraps c with the on-disk TTL cache. Without a cache database
// the catalog is used directly.
func (env *environment) withCache(c catalog.Catalog, ttl time.Duration) catalog.Catalog {
	db, err := openCache()
	if err != nil {
		env.logger.Warn(errmsg.Format(errmsg.OpCacheOpen, err))
		return c
	}
	env.closers = append(env.closers, db.Close)

	cache := catalog.NewCache(db, ttl)
	ctx, cancel := context.WithTimeout(context.Background(), cacheCleanTimeout)
	defer cancel()
	if err := cache.CleanExpired(ctx); err != nil {
		env.logger.Warn("clean expired cache entries", zap.Error(err))
	}
	return catalog.WithCache(c, cache)
}

func openCache() (*sql.DB, error) {
	path, err := dbutil.DefaultPath()
	if err != nil {
		return nil, err
	}
	return dbutil.Open(path)
}

// directFactory plays fetchable previews through the speaker. Each provider
// owns a fresh element.
func directFactory(cfg player.Config, logger *zap.Logger) player.Factory {
	return func(l *loop.Loop, emit func(player.Event)) player.Provider {
		el := audio.NewElement(audio.WithLogger(logger))
		return player.NewDirectProvider(l, el, emit, cfg, logger)
	}
}

// embedFactory plays through the browser page connected to the bridge.
func embedFactory(bridge *embed.Bridge, cfg player.Config, logger *zap.Logger) player.Factory {
	return func(l *loop.Loop, emit func(player.Event)) player.Provider {
		return player.NewEmbedProvider(l, bridge, emit, cfg, logger)
	}
}
