package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/fjod/go_shop/orders-service/internal/payment/ecpay"
	"github.com/fjod/go_shop/orders-service/internal/repository"
)

type Config struct {
	HTTPPort        string        `env:"HTTP_PORT" envDefault:"8080"`
	GRPCPort        string        `env:"GRPC_PORT" envDefault:"50055"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	HealthInterval  time.Duration `env:"HEALTH_INTERVAL" envDefault:"10s"`

	DB    DBConfig    `envPrefix:"DB_"`
	ECPay ECPayConfig `envPrefix:"ECPAY_"`

	RedisAddr        string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	KafkaBrokers     []string      `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	OrderEventsTopic string        `env:"ORDER_EVENTS_TOPIC" envDefault:"order-events"`
	OutboxInterval   time.Duration `env:"OUTBOX_INTERVAL" envDefault:"2s"`

	JWTSecret    string `env:"JWT_SECRET,required,notEmpty"`
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"json"`

	// CartPageURL is where the storefront's cart page lives; the map callback redirects there.
	CartPageURL  string `env:"CART_PAGE_URL" envDefault:"http://localhost:3000/cart"`
	SeedDemoData bool   `env:"SEED_DEMO_DATA" envDefault:"false"`
}

type DBConfig struct {
	Host           string `env:"HOST" envDefault:"localhost"`
	Port           int    `env:"PORT" envDefault:"5432"`
	User           string `env:"USER" envDefault:"postgres"`
	Password       string `env:"PASSWORD" envDefault:"postgres"`
	Name           string `env:"NAME" envDefault:"shop"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"./internal/repository/migrations"`
}

type ECPayConfig struct {
	MerchantID  string `env:"MERCHANT_ID" envDefault:"3002607"`
	HashKey     string `env:"HASH_KEY,required,notEmpty"`
	HashIV      string `env:"HASH_IV,required,notEmpty"`
	CheckoutURL string `env:"CHECKOUT_URL" envDefault:"https://payment-stage.ecpay.com.tw/Cashier/AioCheckOut/V5"`
	MapURL      string `env:"MAP_URL" envDefault:"https://logistics-stage.ecpay.com.tw/Express/map"`
	// PublicBaseURL is how the gateway reaches this service; the paths below are appended to it.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	ReturnPath    string `env:"RETURN_PATH" envDefault:"/api/v1/payments/ecpay/callback"`
	ClientBackURL string `env:"CLIENT_BACK_URL" envDefault:"http://localhost:3000/orders"`
	MapReplyPath  string `env:"MAP_REPLY_PATH" envDefault:"/api/v1/logistics/map-callback"`
	TradeDesc     string `env:"TRADE_DESC" envDefault:"Online order"`
	TimeZone      string `env:"TIME_ZONE" envDefault:"Asia/Taipei"`
}

// Load reads the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the given variables instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Credentials() *repository.Credentials {
	return &repository.Credentials{
		Host:              c.DB.Host,
		Port:              c.DB.Port,
		User:              c.DB.User,
		Password:          c.DB.Password,
		DBName:            c.DB.Name,
		MigrationsDirPath: c.DB.MigrationsPath,
	}
}

// Gateway builds the ECPay client settings, resolving the configured time zone.
func (c *ECPayConfig) Gateway() (ecpay.Config, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return ecpay.Config{}, fmt.Errorf("invalid ECPAY_TIME_ZONE %q: %w", c.TimeZone, err)
	}
	base := strings.TrimRight(c.PublicBaseURL, "/")
	return ecpay.Config{
		MerchantID:    c.MerchantID,
		HashKey:       c.HashKey,
		HashIV:        c.HashIV,
		CheckoutURL:   c.CheckoutURL,
		MapURL:        c.MapURL,
		ReturnURL:     base + c.ReturnPath,
		ClientBackURL: c.ClientBackURL,
		MapReplyURL:   base + c.MapReplyPath,
		TradeDesc:     c.TradeDesc,
		Location:      loc,
	}, nil
}
