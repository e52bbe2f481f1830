package main

import (
	"context"
	"flag"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"rewardledger/internal/pkg/bootstrap"
	"rewardledger/internal/pkg/config"
	"rewardledger/internal/pkg/httpclient"
	"rewardledger/internal/pkg/logger"
	"rewardledger/internal/pkg/metrics"
	"rewardledger/internal/pkg/mq"
	"rewardledger/internal/pkg/redis"
	"rewardledger/internal/pkg/zookeeper"
	"rewardledger/internal/service/loyalty/application"
	"rewardledger/internal/service/loyalty/domain/port"
	"rewardledger/internal/service/loyalty/infrastructure"
	"rewardledger/internal/service/loyalty/infrastructure/adapter"
	"rewardledger/internal/service/loyalty/infrastructure/rule"
	"rewardledger/internal/service/loyalty/interfaces"
)

func main() {
	configPath := flag.String("config", os.Getenv("LOYALTY_CONFIG"), "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.App.ServiceName, os.Stdout)

	var shutdownHooks []func(ctx context.Context) error

	db, err := infrastructure.OpenDatabase(cfg.Infra.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get sql.DB")
	}
	shutdownHooks = append(shutdownHooks, func(context.Context) error { return sqlDB.Close() })

	tracer := otel.Tracer(cfg.App.ServiceName)

	// --- 出站适配器 ---
	locker, closeLocker := newLocker(cfg)
	shutdownHooks = append(shutdownHooks, func(context.Context) error { return closeLocker() })

	var payments port.PaymentVerifier = adapter.StaticPaymentVerifier{}
	if cfg.App.PaymentMode == "http" {
		payments = adapter.NewPaymentHTTPAdapter(httpclient.NewClient(tracer), cfg.Infra.Payment.Endpoint)
	}

	rules, err := rule.NewCELRuleEngine()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create rule engine")
	}

	var publisher port.EventPublisher = adapter.NoopPublisher{}
	if cfg.Infra.Kafka.Enabled {
		txProducer := adapter.NewTransactionKafkaAdapter(mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.TransactionTopic))
		shutdownHooks = append(shutdownHooks, func(context.Context) error { return txProducer.Close() })
		publisher = txProducer
	}

	// --- 仓储与应用服务 ---
	policyRepo := infrastructure.NewGormPolicyRepository(db)
	accountRepo := infrastructure.NewGormAccountRepository(db)
	txnRepo := infrastructure.NewGormTransactionRepository(db)

	purchaseSvc := application.NewPurchaseService(application.PurchaseDeps{
		Policies:  application.NewPolicyLoader(policyRepo),
		Accounts:  accountRepo,
		Purchases: accountRepo,
		Locker:    locker,
		Payments:  payments,
		Publisher: publisher,
		Rules:     rules,
		Metrics:   metrics.NewRecorder(prometheus.DefaultRegisterer),
	}, tracer, cfg.App.ProcessingTimeout)
	policySvc := application.NewPolicyService(policyRepo, accountRepo, txnRepo, rules, tracer)
	customerSvc := application.NewCustomerService(accountRepo, txnRepo, policyRepo, locker, tracer, cfg.App.ExpiryWarningDays, cfg.App.LeaderboardSize)

	handler := interfaces.NewLoyaltyHandler(purchaseSvc, policySvc, customerSvc, tracer)

	err = bootstrap.StartService(bootstrap.AppInfo{
		Config: cfg,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) error {
			handler.RegisterRoutes(appCtx.Mux, promhttp.Handler())

			if cfg.Infra.Kafka.Enabled {
				reader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.PurchaseTopic, cfg.Infra.Kafka.GroupID)
				consumer := infrastructure.NewPurchaseConsumerAdapter(reader, purchaseSvc)
				consumer.Start(appCtx.Ctx)
				appCtx.Group.Go(func() error {
					<-appCtx.Ctx.Done()
					consumer.Stop()
					return nil
				})
			}
			return nil
		},
		OnShutdown: shutdownHooks,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("service exited with error")
	}
}

// newLocker 按配置选择客户锁的实现，返回对应的关闭函数
func newLocker(cfg *config.Config) (port.CustomerLocker, func() error) {
	switch cfg.App.LockBackend {
	case "redis":
		client, err := redis.NewClient(context.Background(), cfg.Infra.Redis.Addr, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		locker, err := adapter.NewRedisLocker(client, cfg.App.LockTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create redis locker")
		}
		return locker, client.Close
	case "zookeeper":
		conn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to zookeeper")
		}
		return adapter.NewZookeeperLocker(conn), func() error { conn.Close(); return nil }
	default:
		return adapter.NewMemoryLocker(), func() error { return nil }
	}
}
