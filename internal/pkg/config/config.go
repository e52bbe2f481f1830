// internal/pkg/config/config.go
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config 是积分服务的完整配置，对应 config.yaml 的结构。
// 所有字段都可以通过 LOYALTY_ 前缀的环境变量覆盖，例如 LOYALTY_INFRA_REDIS_ADDR。
type Config struct {
	App   AppConfig   `mapstructure:"app"`
	Infra InfraConfig `mapstructure:"infra"`
}

// AppConfig 包含业务相关的配置项
type AppConfig struct {
	ServiceName       string        `mapstructure:"service_name"`
	Port              int           `mapstructure:"port"`
	ExpiryWarningDays int           `mapstructure:"expiry_warning_days"`
	LockBackend       string        `mapstructure:"lock_backend"` // memory | redis | zookeeper
	LockTTL           time.Duration `mapstructure:"lock_ttl"`
	PaymentMode       string        `mapstructure:"payment_mode"` // static | http
	ProcessingTimeout time.Duration `mapstructure:"processing_timeout"`
	LeaderboardSize   int           `mapstructure:"leaderboard_size"`
}

// InfraConfig 包含所有基础设施的连接信息
type InfraConfig struct {
	Jaeger    JaegerConfig    `mapstructure:"jaeger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Zookeeper ZookeeperConfig `mapstructure:"zookeeper"`
	Nacos     NacosConfig     `mapstructure:"nacos"`
	Payment   PaymentConfig   `mapstructure:"payment"`
}

type JaegerConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

// DatabaseConfig 选择数据库驱动。driver 为 sqlite 时使用 Path，为 mysql 时使用 MySQL 段。
type DatabaseConfig struct {
	Driver string      `mapstructure:"driver"`
	Path   string      `mapstructure:"path"`
	MySQL  MySQLConfig `mapstructure:"mysql"`
}

type MySQLConfig struct {
	Addr     string `mapstructure:"addr"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"db_name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	Brokers          []string `mapstructure:"brokers"`
	PurchaseTopic    string   `mapstructure:"purchase_topic"`
	TransactionTopic string   `mapstructure:"transaction_topic"`
	GroupID          string   `mapstructure:"group_id"`
}

type ZookeeperConfig struct {
	Servers        []string      `mapstructure:"servers"`
	SessionTimeout time.Duration `mapstructure:"session_timeout"`
}

type NacosConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServerAddrs string `mapstructure:"server_addrs"`
	Namespace   string `mapstructure:"namespace"`
	Group       string `mapstructure:"group"`
}

type PaymentConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.service_name", "loyalty-service")
	v.SetDefault("app.port", 8090)
	v.SetDefault("app.expiry_warning_days", 30)
	v.SetDefault("app.lock_backend", "memory")
	v.SetDefault("app.lock_ttl", 10*time.Second)
	v.SetDefault("app.payment_mode", "static")
	v.SetDefault("app.processing_timeout", 30*time.Second)
	v.SetDefault("app.leaderboard_size", 5)

	v.SetDefault("infra.jaeger.endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("infra.database.driver", "sqlite")
	v.SetDefault("infra.database.path", "loyalty.db")
	v.SetDefault("infra.database.mysql.addr", "localhost:3306")
	v.SetDefault("infra.database.mysql.user", "root")
	v.SetDefault("infra.database.mysql.db_name", "loyalty")
	v.SetDefault("infra.redis.addr", "localhost:6379")
	v.SetDefault("infra.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("infra.kafka.purchase_topic", "loyalty-purchase-events")
	v.SetDefault("infra.kafka.transaction_topic", "loyalty-transactions")
	v.SetDefault("infra.kafka.group_id", "loyalty-purchase-consumer-group")
	v.SetDefault("infra.zookeeper.servers", []string{"localhost:2181"})
	v.SetDefault("infra.zookeeper.session_timeout", 5*time.Second)
	v.SetDefault("infra.nacos.server_addrs", "localhost:8848")
	v.SetDefault("infra.nacos.group", "DEFAULT_GROUP")
	v.SetDefault("infra.payment.endpoint", "http://localhost:8088/confirm_payment")
}

// Load 读取配置文件（可为空）并叠加环境变量。
// path 为空时在当前目录查找 config.yaml，找不到文件时只使用默认值。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("LOYALTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return &cfg, nil
}
