package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sekou/sekou/internal/handler"
	"github.com/sekou/sekou/internal/mockapi"
	"github.com/sekou/sekou/pkg/logger"
)

func newServeCmd(c *cli) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				c.cfg.App.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "监听端口（覆盖配置）")
	return cmd
}

func serve(ctx context.Context, c *cli) error {
	cfg := c.cfg
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	metricsPath := ""
	if a.metrics != nil {
		metricsPath = cfg.Metrics.Path
	}
	var origins []string
	if cfg.API.CORS.Enabled {
		origins = cfg.API.CORS.Origins
	}

	h, err := handler.New(handler.Deps{
		Store:       a.store,
		Sessions:    a.sessions,
		Tenants:     a.tenants,
		Capacities:  a.capacities,
		Events:      a.events,
		Workers:     a.workers,
		View:        a.view,
		Slots:       a.slots,
		Recommender: a.client,
		Assigner:    a.client,
		Schedule:    a.client,
		Metrics:     a.metrics,
		Limiter:     a.limiter,
		CORSOrigins: origins,
		MetricsPath: metricsPath,
		Version:     Version,
	})
	if err != nil {
		return err
	}

	root := chi.NewRouter()
	if cfg.Mock.Enabled {
		mock := mockapi.New(mockapi.Config{
			DefaultTenant: cfg.App.DefaultTenant,
			Latency:       cfg.Mock.Latency,
			Keys:          a.keys,
			Metrics:       a.metrics,
		}, a.events, a.workers, a.capacities, a.view, a.slots)
		root.Mount(mockapi.Prefix, mock.Handler())
	}
	root.Mount("/", h.Router())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      http.TimeoutHandler(root, cfg.API.Timeout, `{"success":false,"error":{"code":"TIMEOUT","message":"请求超时"}}`),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.API.Timeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("version", Version).
			Str("storage", cfg.Storage.Driver).
			Bool("mock", cfg.Mock.Enabled).
			Str("assignment", cfg.Assignment.BaseURL).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("服务器启动失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// 会话按 TTL 过期后不会再登出，定期清理其推荐状态
		if cfg.Session.TTL <= 0 {
			<-gctx.Done()
			return nil
		}
		ticker := time.NewTicker(cfg.Session.TTL)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := h.PruneRecommendations(cfg.Session.TTL); n > 0 {
					logger.Debug().Int("pruned", n).Msg("已清理闲置的推荐状态")
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("正在关闭服务器...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("服务器异常退出")
		return err
	}
	logger.Info().Msg("服务器已关闭")
	return nil
}
