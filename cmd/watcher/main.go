package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/paykg/deposit-gateway/internal/casino"
	"github.com/paykg/deposit-gateway/internal/config"
	"github.com/paykg/deposit-gateway/internal/matcher"
	"github.com/paykg/deposit-gateway/internal/notify"
	"github.com/paykg/deposit-gateway/internal/parser"
	"github.com/paykg/deposit-gateway/internal/queue"
	"github.com/paykg/deposit-gateway/internal/repository"
	"github.com/paykg/deposit-gateway/internal/services"
	"github.com/paykg/deposit-gateway/internal/watcher"
	"github.com/paykg/deposit-gateway/pkg/logger"
	"github.com/paykg/deposit-gateway/pkg/pg"
	"github.com/paykg/deposit-gateway/pkg/prom"
	"github.com/paykg/deposit-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	paymentRepo := repository.NewPaymentRepository(db)
	requestRepo := repository.NewRequestRepository(db)

	creditClient := casino.NewClient(casino.Config{
		PlatformURLs: map[string]string{
			"xbet":    config.Get().PlatformXbetUrl,
			"melbet":  config.Get().PlatformMelbetUrl,
			"mostbet": config.Get().PlatformMostbetUrl,
		},
		APIKey: config.Get().PlatformApiKey,
	})

	var notifier notify.Notifier = notify.NopNotifier{}
	if config.Get().TelegramEnabled {
		notifier = notify.NewTelegramNotifier(notify.TelegramConfig{
			ApiURL: config.Get().TelegramApiUrl,
			ChatID: config.Get().TelegramChatID,
		})
	}

	m := matcher.New(paymentRepo, requestRepo, db, creditClient, notifier, matcher.Options{
		PaymentMaxAge:     config.Get().MatcherPaymentMaxAge,
		RequestMaxAge:     config.Get().MatcherRequestMaxAge,
		MatchWindow:       config.Get().MatcherMatchWindow,
		AllowWholeAmounts: config.Get().MatcherAllowWholeAmount,
		SettleTxTimeout:   config.Get().MatcherSettleTxTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := matcher.NewScheduler(m, requestRepo, matcher.SchedulerConfig{
		Interval: config.Get().MatcherRescanInterval,
		MaxAge:   config.Get().MatcherRequestMaxAge,
		Workers:  config.Get().MatcherRescanWorkers,
	})
	sched.Start(ctx)

	q, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}
	err = q.Consume(func(ctx context.Context, msg *queue.Message) error {
		var ev services.RecheckEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logger.Error("recheck: bad event payload", "error", err)
			return nil // unparseable events are acked, not retried
		}
		return m.RecheckRequest(ctx, ev.RequestID)
	})
	if err != nil {
		logger.Error("failed to start recheck consumer", "error", err)
		return
	}

	p := parser.New(config.Get().MatcherAmountCeiling, config.Get().MailboxBankTimezone)

	sup := watcher.NewSupervisor()
	for _, mb := range config.Get().Mailboxes() {
		dialer := watcher.NewIMAPDialer(watcher.IMAPConfig{
			Host:            mb.Host,
			User:            mb.User,
			Password:        mb.Password,
			Folder:          mb.Folder,
			FallbackAddr:    config.Get().MailboxFallbackAddr,
			DNSFailureLimit: config.Get().MailboxDNSFailureLimit,
		})
		unit := watcher.NewUnit(dialer, paymentRepo, redisAdap, p, m, watcher.Options{
			Bank:         mb.Bank,
			PollInterval: config.Get().MailboxPollInterval,
			MaxEmailAge:  config.Get().MailboxMaxEmailAge,
			DedupWindow:  config.Get().MailboxDedupWindow,
		})
		sup.Add(mb.Bank, unit)
	}
	sup.Start(ctx)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill, os.Interrupt, syscall.SIGTERM)

	select {
	case <-c:
		cancel()
		sched.Stop()
		if err := q.Stop(time.Second * 10); err != nil {
			logger.Error("failed to stop queue cleanly", "error", err)
		}
		sup.Wait()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
