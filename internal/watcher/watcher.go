package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/paykg/deposit-gateway/internal/model"
	"github.com/paykg/deposit-gateway/internal/parser"
	"github.com/paykg/deposit-gateway/pkg/backoff"
	"github.com/paykg/deposit-gateway/pkg/logger"
	"github.com/paykg/deposit-gateway/pkg/prom"
)

// ErrAuthFailed means the mailbox rejected our credentials. Retrying in a
// tight loop would get the account locked, so the unit stops instead.
var ErrAuthFailed = errors.New("mailbox authentication failed")

// MailMessage is one fetched unseen message.
type MailMessage struct {
	UID  uint32
	Date time.Time
	Body string
}

// Session is an authenticated connection to one mailbox folder.
type Session interface {
	SearchUnseen() ([]uint32, error)
	MarkSeen(uids []uint32) error
	Fetch(uids []uint32) ([]MailMessage, error)
	// Updates fires when the server pushes new mail. A session without
	// push support may return a channel that never fires; the poll ticker
	// covers it.
	Updates() <-chan struct{}
	Close() error
}

// Dialer opens mailbox sessions. The production implementation speaks
// IMAP-over-TLS; tests substitute a fake.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) (*model.Payment, error)
	ExistsFingerprint(ctx context.Context, fingerprint string) (bool, error)
}

// DedupCache is the fast-path fingerprint check in front of the payments
// table. SetNX semantics: true means the fingerprint was not seen yet.
type DedupCache interface {
	SetNX(key string, value []byte, ttl time.Duration) (bool, error)
	Del(key string) error
}

// Settler is the inline settlement hook fired after each ingested payment.
type Settler interface {
	SettlePayment(ctx context.Context, paymentID int64) error
}

type Options struct {
	Bank         string
	PollInterval time.Duration
	MaxEmailAge  time.Duration
	DedupWindow  time.Duration
	Reconnect    backoff.Policy
}

// Unit watches one mailbox: connects, drains unseen mail, and turns bank
// notifications into payments. It reconnects forever on transport errors and
// stops only on ErrAuthFailed or context cancellation.
type Unit struct {
	dialer   Dialer
	payments PaymentStore
	dedup    DedupCache
	parser   *parser.Parser
	settler  Settler
	opts     Options

	// set after the first successful connect; the backlog present at
	// startup is marked seen and never processed, so a restart cannot
	// replay weeks of old mail
	drainedFirstRun bool
}

func NewUnit(dialer Dialer, payments PaymentStore, dedup DedupCache, p *parser.Parser, settler Settler, opts Options) *Unit {
	if opts.PollInterval == 0 {
		opts.PollInterval = 4 * time.Second
	}
	if opts.MaxEmailAge == 0 {
		opts.MaxEmailAge = 24 * time.Hour
	}
	if opts.DedupWindow == 0 {
		opts.DedupWindow = 72 * time.Hour
	}
	if opts.Reconnect.Initial == 0 {
		opts.Reconnect = backoff.Policy{Initial: 2 * time.Second, Max: 2 * time.Minute, Factor: 2}
	}
	return &Unit{
		dialer:   dialer,
		payments: payments,
		dedup:    dedup,
		parser:   p,
		settler:  settler,
		opts:     opts,
	}
}

func (u *Unit) Run(ctx context.Context) error {
	failures := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		session, err := u.dialer.Dial(ctx)
		if err != nil {
			if errors.Is(err, ErrAuthFailed) {
				logger.Error("watcher: authentication failed, unit stopping", "bank", u.opts.Bank)
				return err
			}
			logger.Warn("watcher: connect failed", "bank", u.opts.Bank, "attempt", failures, "error", err)
			if serr := u.opts.Reconnect.Sleep(ctx, failures); serr != nil {
				return serr
			}
			failures++
			continue
		}
		failures = 0
		logger.Info("watcher: connected", "bank", u.opts.Bank)

		if !u.drainedFirstRun {
			if err := u.drainBacklog(session); err != nil {
				logger.Warn("watcher: backlog drain failed", "bank", u.opts.Bank, "error", err)
				_ = session.Close()
				continue
			}
			u.drainedFirstRun = true
		}

		err = u.listen(ctx, session)
		_ = session.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("watcher: session ended, reconnecting", "bank", u.opts.Bank, "error", err)
	}
}

// drainBacklog marks everything unseen as seen without processing it.
func (u *Unit) drainBacklog(session Session) error {
	uids, err := session.SearchUnseen()
	if err != nil {
		return err
	}
	if len(uids) == 0 {
		return nil
	}
	logger.Info("watcher: marking startup backlog as seen", "bank", u.opts.Bank, "count", len(uids))
	return session.MarkSeen(uids)
}

func (u *Unit) listen(ctx context.Context, session Session) error {
	ticker := time.NewTicker(u.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-session.Updates():
			if err := u.processUnseen(ctx, session); err != nil {
				return err
			}
		case <-ticker.C:
			if err := u.processUnseen(ctx, session); err != nil {
				return err
			}
		}
	}
}

func (u *Unit) processUnseen(ctx context.Context, session Session) error {
	uids, err := session.SearchUnseen()
	if err != nil {
		return err
	}
	if len(uids) == 0 {
		return nil
	}

	// seen first: if ingestion crashes mid-way the message is dropped, not
	// processed twice. Duplicated credits hurt more than a lost email the
	// operator can replay by hand.
	if err := session.MarkSeen(uids); err != nil {
		return err
	}

	messages, err := session.Fetch(uids)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		u.ingest(ctx, msg)
	}
	return nil
}

func (u *Unit) ingest(ctx context.Context, msg MailMessage) {
	bank := u.opts.Bank

	if !msg.Date.IsZero() && time.Since(msg.Date) > u.opts.MaxEmailAge {
		logger.Info("watcher: skipping stale email", "bank", bank, "uid", msg.UID, "date", msg.Date)
		prom.AddEmailProcessed(bank, "stale")
		return
	}

	note, err := u.parser.Parse(msg.Body, bank)
	if err != nil {
		logger.Info("watcher: unparseable email", "bank", bank, "uid", msg.UID)
		prom.AddEmailProcessed(bank, "unparseable")
		return
	}

	fp := Fingerprint(bank, msg.Body)
	dedupKey := "email:fp:" + fp

	fresh, err := u.dedup.SetNX(dedupKey, []byte("1"), u.opts.DedupWindow)
	if err != nil {
		// cache down: fall through, the table constraint still protects us
		logger.Warn("watcher: dedup cache unavailable", "bank", bank, "error", err)
	} else if !fresh {
		logger.Info("watcher: duplicate email (cache)", "bank", bank, "uid", msg.UID)
		prom.AddEmailProcessed(bank, "duplicate")
		return
	}

	exists, err := u.payments.ExistsFingerprint(ctx, fp)
	if err != nil {
		logger.Error("watcher: fingerprint lookup failed", "bank", bank, "error", err)
		return
	}
	if exists {
		logger.Info("watcher: duplicate email (table)", "bank", bank, "uid", msg.UID)
		prom.AddEmailProcessed(bank, "duplicate")
		return
	}

	receivedAt := note.NotifiedAt
	if receivedAt == nil && !msg.Date.IsZero() {
		d := msg.Date.UTC()
		receivedAt = &d
	}

	payment, err := u.payments.Create(ctx, &model.Payment{
		Bank:        bank,
		Amount:      note.Amount,
		ReceivedAt:  receivedAt,
		IngestedAt:  time.Now().UTC(),
		Fingerprint: fp,
		RawExcerpt:  excerpt(msg.Body),
	})
	if err != nil {
		logger.Error("watcher: payment create failed", "bank", bank, "uid", msg.UID, "error", err)
		// release the fingerprint claim so a redelivery can retry the insert
		if derr := u.dedup.Del(dedupKey); derr != nil {
			logger.Warn("watcher: dedup release failed", "bank", bank, "error", derr)
		}
		return
	}

	prom.AddEmailProcessed(bank, "ingested")
	prom.AddPaymentIngested(bank)
	logger.Info("watcher: payment ingested",
		"bank", bank, "payment_id", payment.ID, "amount", payment.Amount.StringFixed(2))

	if err := u.settler.SettlePayment(ctx, payment.ID); err != nil {
		logger.Warn("watcher: inline settle failed, rescan will retry",
			"payment_id", payment.ID, "error", err)
	}
}

// Fingerprint identifies an email by bank plus the first 500 normalized
// characters of its body. Stable across redeliveries of the same message.
func Fingerprint(bank, body string) string {
	normalized := strings.Join(strings.Fields(body), " ")
	runes := []rune(normalized)
	if len(runes) > 500 {
		runes = runes[:500]
	}
	sum := sha256.Sum256([]byte(bank + ":" + string(runes)))
	return hex.EncodeToString(sum[:])
}

func excerpt(body string) string {
	normalized := strings.Join(strings.Fields(body), " ")
	runes := []rune(normalized)
	if len(runes) > 200 {
		runes = runes[:200]
	}
	return string(runes)
}
