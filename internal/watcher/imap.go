package watcher

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/paykg/deposit-gateway/pkg/logger"
)

type IMAPConfig struct {
	Host     string
	User     string
	Password string
	Folder   string
	// FallbackAddr is dialed when Host stops resolving. The TLS ServerName
	// stays Host so certificate verification still passes.
	FallbackAddr    string
	DNSFailureLimit int
	DialTimeout     time.Duration
}

// IMAPDialer opens IMAP-over-TLS sessions.
type IMAPDialer struct {
	cfg         IMAPConfig
	dnsFailures int
}

func NewIMAPDialer(cfg IMAPConfig) *IMAPDialer {
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	if cfg.DNSFailureLimit == 0 {
		cfg.DNSFailureLimit = 3
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	return &IMAPDialer{cfg: cfg}
}

func (d *IMAPDialer) Dial(ctx context.Context) (Session, error) {
	addr := d.cfg.Host
	if !strings.Contains(addr, ":") {
		addr += ":993"
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = d.cfg.Host
	}
	tlsCfg := &tls.Config{ServerName: host}

	if d.dnsFailures >= d.cfg.DNSFailureLimit && d.cfg.FallbackAddr != "" {
		logger.Warn("watcher: host not resolving, using fallback address",
			"host", host, "fallback", d.cfg.FallbackAddr)
		addr = d.cfg.FallbackAddr
	}

	dialer := &net.Dialer{Timeout: d.cfg.DialTimeout}
	c, err := client.DialWithDialerTLS(dialer, addr, tlsCfg)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			d.dnsFailures++
		}
		return nil, err
	}
	d.dnsFailures = 0

	if err := c.Login(d.cfg.User, d.cfg.Password); err != nil {
		_ = c.Logout()
		logger.Error("watcher: login rejected", "host", host, "user", d.cfg.User, "error", err)
		return nil, ErrAuthFailed
	}

	if _, err := c.Select(d.cfg.Folder, false); err != nil {
		_ = c.Logout()
		return nil, err
	}

	return newIMAPSession(c), nil
}

type imapSession struct {
	client  *client.Client
	updates chan struct{}
	stop    chan struct{}

	// guards the connection. While idling the server accepts nothing but
	// DONE, so every command must interrupt IDLE first and resume it after.
	mu       sync.Mutex
	idleStop chan struct{}
	idleDone chan struct{}
}

func newIMAPSession(c *client.Client) *imapSession {
	s := &imapSession{
		client:  c,
		updates: make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}

	raw := make(chan client.Update, 16)
	c.Updates = raw
	go s.forwardUpdates(raw)

	s.beginIdle()
	return s
}

// forwardUpdates coalesces server pushes into the updates channel.
func (s *imapSession) forwardUpdates(raw <-chan client.Update) {
	for {
		select {
		case <-s.stop:
			return
		case u, ok := <-raw:
			if !ok {
				return
			}
			if _, isMailbox := u.(*client.MailboxUpdate); !isMailbox {
				continue
			}
			select {
			case s.updates <- struct{}{}:
			default:
			}
		}
	}
}

// beginIdle parks the connection in IDLE so the server can push new-mail
// notices. go-imap falls back to NOOP polling on servers without IDLE
// support. Callers must hold mu.
func (s *imapSession) beginIdle() {
	s.idleStop = make(chan struct{})
	s.idleDone = make(chan struct{})
	stop, done := s.idleStop, s.idleDone
	go func() {
		defer close(done)
		if err := s.client.Idle(stop, nil); err != nil {
			logger.Debug("watcher: idle ended", "error", err)
		}
	}()
}

// withConn interrupts IDLE (DONE), runs one command, and re-enters IDLE.
func (s *imapSession) withConn(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.idleStop)
	<-s.idleDone
	err := fn()
	s.beginIdle()
	return err
}

func (s *imapSession) SearchUnseen() ([]uint32, error) {
	var uids []uint32
	err := s.withConn(func() error {
		criteria := imap.NewSearchCriteria()
		criteria.WithoutFlags = []string{imap.SeenFlag}
		var err error
		uids, err = s.client.UidSearch(criteria)
		return err
	})
	return uids, err
}

func (s *imapSession) MarkSeen(uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}
	return s.withConn(func() error {
		seqset := new(imap.SeqSet)
		seqset.AddNum(uids...)
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		return s.client.UidStore(seqset, item, []interface{}{imap.SeenFlag}, nil)
	})
}

func (s *imapSession) Fetch(uids []uint32) ([]MailMessage, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	var out []MailMessage
	err := s.withConn(func() error {
		seqset := new(imap.SeqSet)
		seqset.AddNum(uids...)

		section := &imap.BodySectionName{Peek: true}
		items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, section.FetchItem()}

		ch := make(chan *imap.Message, len(uids))
		done := make(chan error, 1)
		go func() {
			done <- s.client.UidFetch(seqset, items, ch)
		}()

		for msg := range ch {
			m := MailMessage{UID: msg.Uid}
			if msg.Envelope != nil {
				m.Date = msg.Envelope.Date
			}
			if r := msg.GetBody(section); r != nil {
				m.Body = extractText(r)
			}
			out = append(out, m)
		}
		return <-done
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// extractText decodes the MIME structure and returns the first text part,
// preferring text/plain over text/html.
func extractText(r io.Reader) string {
	mr, err := mail.CreateReader(r)
	if err != nil {
		raw, _ := io.ReadAll(r)
		return string(raw)
	}

	var plain, html string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		body, _ := io.ReadAll(part.Body)
		switch ct {
		case "text/plain":
			if plain == "" {
				plain = string(body)
			}
		case "text/html":
			if html == "" {
				html = string(body)
			}
		}
	}
	if plain != "" {
		return plain
	}
	return stripTags(html)
}

var tagReplacer = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`)

// stripTags is a crude HTML-to-text pass, enough for the amount regexes.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return tagReplacer.Replace(b.String())
}

func (s *imapSession) Updates() <-chan struct{} {
	return s.updates
}

func (s *imapSession) Close() error {
	close(s.stop)
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.idleStop)
	<-s.idleDone
	return s.client.Logout()
}
