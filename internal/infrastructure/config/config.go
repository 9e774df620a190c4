package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Messaging   MessagingConfig `mapstructure:"messaging"`
	Chain       ChainConfig     `mapstructure:"chain"`
	BadgeChain  BadgeConfig     `mapstructure:"badge_chain"`
	Relay       RelayConfig     `mapstructure:"relay"`
	Tracing     TracingConfig   `mapstructure:"tracing"`
	Cleanup     CleanupConfig   `mapstructure:"cleanup"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// MessagingConfig contains chat-provider credentials. AccountSID,
// AuthToken and FromNumber are required at boot.
type MessagingConfig struct {
	AccountSID    string `mapstructure:"account_sid"`
	AuthToken     string `mapstructure:"auth_token"`
	FromNumber    string `mapstructure:"from_number"`
	BaseURL       string `mapstructure:"base_url"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
	WebhookSecret string `mapstructure:"webhook_secret"` // optional HMAC secret
	Timeout       int    `mapstructure:"timeout"`        // seconds
}

// ChainConfig contains the primary network used for stablecoin mints and
// the rate oracle read.
type ChainConfig struct {
	RPCURL            string `mapstructure:"rpc_url"`
	ChainID           int64  `mapstructure:"chain_id"`
	PrivateKey        string `mapstructure:"private_key"`
	TokenContract     string `mapstructure:"token_contract"`
	OracleContract    string `mapstructure:"oracle_contract"`
	GasLimit          uint64 `mapstructure:"gas_limit"`
	CallTimeout       int    `mapstructure:"call_timeout"`    // seconds, per RPC round trip
	ConfirmTimeout    int    `mapstructure:"confirm_timeout"` // seconds, receipt wait
	ConfirmPollMillis int    `mapstructure:"confirm_poll_millis"`
}

// BadgeConfig contains the secondary network used for zero-value badge
// transactions. Disabled unless an RPC URL and key are configured.
type BadgeConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	RPCURL     string `mapstructure:"rpc_url"`
	ChainID    int64  `mapstructure:"chain_id"`
	PrivateKey string `mapstructure:"private_key"`
}

// RelayConfig contains the business knobs of the settlement pipeline
type RelayConfig struct {
	MaxSend         float64 `mapstructure:"max_send"`         // dollars
	BadgeThreshold  float64 `mapstructure:"badge_threshold"`  // dollars
	ReferralBonus   float64 `mapstructure:"referral_bonus"`   // dollars
	TokenDecimals   int32   `mapstructure:"token_decimals"`   // smallest-unit exponent
	EthUsdPrice     float64 `mapstructure:"eth_usd_price"`    // display only
	CurrencySymbol  string  `mapstructure:"currency_symbol"`  // local currency display
	JoinPhrase      string  `mapstructure:"join_phrase"`      // onboarding phrase
	EventTTLMinutes int     `mapstructure:"event_ttl_minutes"` // processed-event retention
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

type CleanupConfig struct {
	Schedule string `mapstructure:"schedule"` // cron expression
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Build database URL if not provided
	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "kuya_relay")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	viper.SetDefault("messaging.base_url", "https://api.twilio.com")
	viper.SetDefault("messaging.channel_prefix", "whatsapp:")
	viper.SetDefault("messaging.timeout", 15)

	viper.SetDefault("chain.gas_limit", 200000)
	viper.SetDefault("chain.call_timeout", 15)
	viper.SetDefault("chain.confirm_timeout", 120)
	viper.SetDefault("chain.confirm_poll_millis", 1500)

	viper.SetDefault("badge_chain.enabled", false)

	viper.SetDefault("relay.max_send", 100)
	viper.SetDefault("relay.badge_threshold", 100)
	viper.SetDefault("relay.referral_bonus", 5)
	viper.SetDefault("relay.token_decimals", 6)
	viper.SetDefault("relay.eth_usd_price", 2500)
	viper.SetDefault("relay.currency_symbol", "₱")
	viper.SetDefault("relay.join_phrase", "today-made")
	viper.SetDefault("relay.event_ttl_minutes", 1440)

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.collector_url", "localhost:4317")
	viper.SetDefault("tracing.sample_rate", 1.0)
	viper.SetDefault("tracing.insecure", true)

	viper.SetDefault("cleanup.schedule", "17 * * * *")
}

func overrideFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("server.port", p)
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}
	if sid := os.Getenv("MESSAGING_ACCOUNT_SID"); sid != "" {
		viper.Set("messaging.account_sid", sid)
	}
	if token := os.Getenv("MESSAGING_AUTH_TOKEN"); token != "" {
		viper.Set("messaging.auth_token", token)
	}
	if from := os.Getenv("MESSAGING_FROM_NUMBER"); from != "" {
		viper.Set("messaging.from_number", from)
	}
	if secret := os.Getenv("WEBHOOK_SECRET"); secret != "" {
		viper.Set("messaging.webhook_secret", secret)
	}
	if rpc := os.Getenv("CHAIN_RPC_URL"); rpc != "" {
		viper.Set("chain.rpc_url", rpc)
	}
	if key := os.Getenv("CHAIN_PRIVATE_KEY"); key != "" {
		viper.Set("chain.private_key", key)
	}
	if addr := os.Getenv("TOKEN_CONTRACT_ADDRESS"); addr != "" {
		viper.Set("chain.token_contract", addr)
	}
	if addr := os.Getenv("ORACLE_CONTRACT_ADDRESS"); addr != "" {
		viper.Set("chain.oracle_contract", addr)
	}
	if id := os.Getenv("CHAIN_ID"); id != "" {
		if v, err := strconv.ParseInt(id, 10, 64); err == nil {
			viper.Set("chain.chain_id", v)
		}
	}
	if rpc := os.Getenv("BADGE_RPC_URL"); rpc != "" {
		viper.Set("badge_chain.rpc_url", rpc)
		viper.Set("badge_chain.enabled", true)
	}
	if key := os.Getenv("BADGE_PRIVATE_KEY"); key != "" {
		viper.Set("badge_chain.private_key", key)
	}
	if id := os.Getenv("BADGE_CHAIN_ID"); id != "" {
		if v, err := strconv.ParseInt(id, 10, 64); err == nil {
			viper.Set("badge_chain.chain_id", v)
		}
	}
}

// validate enforces fail-fast startup: every credential the pipeline needs
// must be present before the server accepts traffic.
func validate(config *Config) error {
	var missing []string

	if config.Messaging.AccountSID == "" {
		missing = append(missing, "messaging.account_sid")
	}
	if config.Messaging.AuthToken == "" {
		missing = append(missing, "messaging.auth_token")
	}
	if config.Messaging.FromNumber == "" {
		missing = append(missing, "messaging.from_number")
	}
	if config.Chain.RPCURL == "" {
		missing = append(missing, "chain.rpc_url")
	}
	if config.Chain.PrivateKey == "" {
		missing = append(missing, "chain.private_key")
	}
	if config.Chain.TokenContract == "" {
		missing = append(missing, "chain.token_contract")
	}
	if config.Chain.OracleContract == "" {
		missing = append(missing, "chain.oracle_contract")
	}
	if config.Chain.ChainID == 0 {
		missing = append(missing, "chain.chain_id")
	}
	if config.BadgeChain.Enabled {
		if config.BadgeChain.RPCURL == "" {
			missing = append(missing, "badge_chain.rpc_url")
		}
		if config.BadgeChain.PrivateKey == "" {
			missing = append(missing, "badge_chain.private_key")
		}
		if config.BadgeChain.ChainID == 0 {
			missing = append(missing, "badge_chain.chain_id")
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if config.Relay.MaxSend <= 0 {
		return fmt.Errorf("relay.max_send must be positive, got %v", config.Relay.MaxSend)
	}
	if config.Relay.TokenDecimals < 0 {
		return fmt.Errorf("relay.token_decimals must be >= 0, got %d", config.Relay.TokenDecimals)
	}

	return nil
}
