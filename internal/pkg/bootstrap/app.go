// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"rewardledger/internal/pkg/config"
	"rewardledger/internal/pkg/nacos"
	"rewardledger/internal/pkg/tracing"
)

const shutdownTimeout = 10 * time.Second

// AppCtx 是传给各服务注册函数的运行时上下文。
// Group 用来挂后台任务（如 Kafka 消费者），Ctx 在收到退出信号时取消。
type AppCtx struct {
	Ctx    context.Context
	Mux    *http.ServeMux
	Group  *errgroup.Group
	Config *config.Config
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	Config *config.Config

	// RegisterHandlers 注册服务自己的 HTTP 路由和后台任务
	RegisterHandlers func(appCtx AppCtx) error

	// OnShutdown 在 HTTP 服务关闭后按注册的逆序执行
	OnShutdown []func(ctx context.Context) error
}

// StartService 封装了服务的通用启动和优雅关停逻辑，阻塞直到收到退出信号或任一任务出错。
func StartService(info AppInfo) error {
	cfg := info.Config
	serviceName, port := cfg.App.ServiceName, cfg.App.Port

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(serviceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		return errors.Wrap(err, "failed to initialize tracer provider")
	}

	// 2. 服务注册（可选）
	deregister, err := registerWithNacos(cfg, port)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	// 3. 注册路由与后台任务
	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		if err := info.RegisterHandlers(AppCtx{Ctx: gctx, Mux: mux, Group: g, Config: cfg}); err != nil {
			deregister()
			return errors.Wrap(err, "register handlers")
		}
	}

	server := &http.Server{Addr: ":" + strconv.Itoa(port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	g.Go(func() error {
		log.Info().Str("service", serviceName).Int("port", port).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrapf(err, "could not listen on %s", server.Addr)
		}
		return nil
	})

	// 4. 优雅关停
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Str("service", serviceName).Msg("shutting down service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		deregister()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error shutting down http server")
		}
		for i := len(info.OnShutdown) - 1; i >= 0; i-- {
			if err := info.OnShutdown[i](shutdownCtx); err != nil {
				log.Error().Err(err).Msg("shutdown hook failed")
			}
		}
		// 最后关闭 Tracer Provider，确保所有缓冲的 trace 都被发送出去
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error shutting down tracer provider")
		}
		return nil
	})

	err = g.Wait()
	log.Info().Str("service", serviceName).Msg("service gracefully shut down")
	return err
}

// registerWithNacos 在启用时注册实例，返回对应的注销函数
func registerWithNacos(cfg *config.Config, port int) (func(), error) {
	noop := func() {}
	if !cfg.Infra.Nacos.Enabled {
		return noop, nil
	}
	client, err := nacos.NewNacosClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
	if err != nil {
		return noop, errors.Wrap(err, "failed to initialize nacos client")
	}
	ip, err := outboundIP()
	if err != nil {
		return noop, errors.Wrap(err, "failed to get outbound IP address")
	}
	if err := client.RegisterServiceInstance(cfg.App.ServiceName, ip, port); err != nil {
		return noop, err
	}
	return func() {
		if err := client.DeregisterServiceInstance(cfg.App.ServiceName, ip, port); err != nil {
			log.Error().Err(err).Msg("error deregistering from nacos")
		}
		client.Close()
	}, nil
}

// outboundIP 通过一次 UDP "连接" 取得本机对外的地址，不会真正发包
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
