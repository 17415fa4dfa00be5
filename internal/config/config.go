package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/paykg/deposit-gateway/pkg/logger"
	"github.com/pkg/errors"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Config holds config envs and values used across the gateway. Only this
// struct must be used to hold any configuration values, no direct access to
// env, ini or any other config source should be made
type Config struct {
	AppEnv              string `env:"APP_ENV" default:"dev"`
	AppName             string `env:"APP_NAME" default:"deposit_gateway"`
	AppDebug            bool   `env:"APP_DEBUG" default:"1"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI"`

	HttpListenAddr            string `env:"HTTP_LISTEN_ADDR" validation:"mustExists"`
	HttpServerReadTimeout     int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout    int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`
	HttpServerReadBufferSize  int    `env:"HTTP_SERVER_READ_BUFFER_SIZE"`
	HttpServerWriteBufferSize int    `env:"HTTP_SERVER_WRITE_BUFFER_SIZE"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`

	LogLevel []string `env:"LOG_LEVEL"`

	QueueName              string        `env:"QUEUE_NAME" default:"deposit-recheck"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ"`

	// Watched bank mailboxes. Each set is one IMAP account; Bank tags the
	// parser profile used for its messages.
	MailboxPrimaryHost     string `env:"MAILBOX_PRIMARY_HOST"`
	MailboxPrimaryUser     string `env:"MAILBOX_PRIMARY_USER"`
	MailboxPrimaryPassword string `env:"MAILBOX_PRIMARY_PASSWORD"`
	MailboxPrimaryFolder   string `env:"MAILBOX_PRIMARY_FOLDER" default:"INBOX"`
	MailboxPrimaryBank     string `env:"MAILBOX_PRIMARY_BANK" default:"mbank"`

	MailboxSecondaryHost     string `env:"MAILBOX_SECONDARY_HOST"`
	MailboxSecondaryUser     string `env:"MAILBOX_SECONDARY_USER"`
	MailboxSecondaryPassword string `env:"MAILBOX_SECONDARY_PASSWORD"`
	MailboxSecondaryFolder   string `env:"MAILBOX_SECONDARY_FOLDER" default:"INBOX"`
	MailboxSecondaryBank     string `env:"MAILBOX_SECONDARY_BANK" default:"optima"`

	// Used when the mailbox host stops resolving; the TLS ServerName keeps
	// the original host so the certificate still verifies.
	MailboxFallbackAddr    string        `env:"MAILBOX_FALLBACK_ADDR"`
	MailboxPollInterval    time.Duration `env:"MAILBOX_POLL_INTERVAL" default:"4s"`
	MailboxMaxEmailAge     time.Duration `env:"MAILBOX_MAX_EMAIL_AGE" default:"24h"`
	MailboxDedupWindow     time.Duration `env:"MAILBOX_DEDUP_WINDOW" default:"72h"`
	MailboxBankTimezone    string        `env:"MAILBOX_BANK_TIMEZONE" default:"Asia/Bishkek"`
	MailboxDNSFailureLimit int           `env:"MAILBOX_DNS_FAILURE_LIMIT" default:"3"`

	MatcherPaymentMaxAge    time.Duration `env:"MATCHER_PAYMENT_MAX_AGE" default:"10m"`
	MatcherRequestMaxAge    time.Duration `env:"MATCHER_REQUEST_MAX_AGE" default:"10m"`
	MatcherMatchWindow      time.Duration `env:"MATCHER_MATCH_WINDOW" default:"5m"`
	MatcherAllowWholeAmount bool          `env:"MATCHER_ALLOW_WHOLE_AMOUNTS"`
	MatcherAmountCeiling    int64         `env:"MATCHER_AMOUNT_CEILING" default:"100000"`
	MatcherSettleTxTimeout  time.Duration `env:"MATCHER_SETTLE_TX_TIMEOUT" default:"3m"`
	MatcherRescanInterval   time.Duration `env:"MATCHER_RESCAN_INTERVAL" default:"2s"`
	MatcherRescanWorkers    int           `env:"MATCHER_RESCAN_WORKERS" default:"4"`

	PlatformXbetUrl    string `env:"PLATFORM_XBET_URL"`
	PlatformMelbetUrl  string `env:"PLATFORM_MELBET_URL"`
	PlatformMostbetUrl string `env:"PLATFORM_MOSTBET_URL"`
	PlatformApiKey     string `env:"PLATFORM_API_KEY"`

	TelegramApiUrl  string `env:"TELEGRAM_API_URL"`
	TelegramChatID  string `env:"TELEGRAM_CHAT_ID"`
	TelegramEnabled bool   `env:"TELEGRAM_ENABLED"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)

	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

// Mailbox is one resolved mailbox set out of the flat env pairs.
type Mailbox struct {
	Host     string
	User     string
	Password string
	Folder   string
	Bank     string
}

// Mailboxes returns the configured mailbox sets, skipping empty ones.
func (c *Config) Mailboxes() []Mailbox {
	var boxes []Mailbox
	if c.MailboxPrimaryHost != "" {
		boxes = append(boxes, Mailbox{
			Host:     c.MailboxPrimaryHost,
			User:     c.MailboxPrimaryUser,
			Password: c.MailboxPrimaryPassword,
			Folder:   c.MailboxPrimaryFolder,
			Bank:     c.MailboxPrimaryBank,
		})
	}
	if c.MailboxSecondaryHost != "" {
		boxes = append(boxes, Mailbox{
			Host:     c.MailboxSecondaryHost,
			User:     c.MailboxSecondaryUser,
			Password: c.MailboxSecondaryPassword,
			Folder:   c.MailboxSecondaryFolder,
			Bank:     c.MailboxSecondaryBank,
		})
	}
	return boxes
}
