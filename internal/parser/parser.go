package parser

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/paykg/deposit-gateway/pkg/logger"
	"github.com/shopspring/decimal"
)

// ErrNoAmount is returned when no credible amount could be extracted.
var ErrNoAmount = errors.New("parser: no amount found")

// Notification is what a bank email yields: the credited amount and,
// when the email states one, the bank-side time of the transfer in UTC.
type Notification struct {
	Amount     decimal.Decimal
	NotifiedAt *time.Time
}

// Amount patterns are ordered most-specific first. HTML bodies are full of
// stray numbers (timestamps, card masks), so keyword-anchored patterns run
// before bare "N KGS" forms, and the bare forms forbid spaces inside the
// number so that seconds out of "10:48:58" are never captured.
var demirAmountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)([0-9]{1,6}(?:\.[0-9]{1,2})?)\s*KGS\s*суммасында`),
	regexp.MustCompile(`(?i)на\s+сумму\s+([0-9]{1,3}(?:,\s*[0-9]{3})*(?:\.[0-9]{1,2})?)\s*(?:KGS|сом|сомов)`),
	regexp.MustCompile(`(?i)на\s+сумму\s+([0-9]{1,6}(?:\.[0-9]{1,2})?)\s*(?:KGS|сом|сомов)`),
	regexp.MustCompile(`(?i)\d{2}\.\d{2}\.\d{4}\s+\d{2}:\d{2}:\d{2}\s+([0-9]{1,6}(?:\.[0-9]{1,2})?)\s*(?:KGS|сом|сомов)`),
	regexp.MustCompile(`(?i)([0-9]{1,3}(?:,\s*[0-9]{3})*(?:\.[0-9]{1,2})?)\s*(?:KGS|сом|сомов)`),
	regexp.MustCompile(`(?i)([0-9]{1,6}(?:\.[0-9]{1,2})?)\s*(?:KGS|сом|сомов)`),
	regexp.MustCompile(`(?i)([0-9]{1,6}(?:,[0-9]{1,2})?)\s*(?:KGS|сом|сомов)`),
	regexp.MustCompile(`(?i)сумма[:\s]+([0-9]{1,3}(?:,\s*[0-9]{3})*(?:\.[0-9]{1,2})?)`),
	regexp.MustCompile(`(?i)сумма[:\s]+([0-9]{1,6}(?:\.[0-9]{1,2})?)`),
}

// Generic ladder for banks without a dedicated profile.
var genericAmountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)([0-9]{1,3}(?:\s+[0-9]{3})*(?:\.[0-9]{1,2})?)\s*(?:KGS|сом|сомов)`),
	regexp.MustCompile(`(?i)([0-9]{1,3}(?:,\s*[0-9]{3})*(?:\.[0-9]{1,2})?)\s*(?:KGS|сом|сомов)`),
	regexp.MustCompile(`(?i)([0-9]+(?:\.[0-9]{1,2})?)\s*(?:KGS|сом|сомов)`),
}

type datePattern struct {
	re     *regexp.Regexp
	layout string
}

var datePatterns = []datePattern{
	{regexp.MustCompile(`(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2})`), "2006-01-02 15:04:05"},
	{regexp.MustCompile(`(?:от\s+)?(\d{2}\.\d{2}\.\d{4}\s+\d{2}:\d{2}:\d{2})`), "02.01.2006 15:04:05"},
	{regexp.MustCompile(`(\d{2}\.\d{2}\.\d{4}\s+\d{2}:\d{2})`), "02.01.2006 15:04"},
	{regexp.MustCompile(`(\d{2}/\d{2}/\d{4}\s+\d{2}:\d{2})`), "02/01/2006 15:04"},
}

type Parser struct {
	ceiling decimal.Decimal
	loc     *time.Location
}

// New builds a parser with the given amount sanity ceiling and the timezone
// the banks stamp their emails in.
func New(ceiling int64, bankTimezone string) *Parser {
	loc, err := time.LoadLocation(bankTimezone)
	if err != nil {
		logger.Warn("parser: unknown bank timezone, falling back to UTC+6", "tz", bankTimezone)
		loc = time.FixedZone("UTC+6", 6*3600)
	}
	return &Parser{
		ceiling: decimal.NewFromInt(ceiling),
		loc:     loc,
	}
}

// Parse extracts the credited amount and the bank-stated time from an email
// body. Banks without a dedicated profile go through the generic ladder.
// Amounts above the ceiling are treated as pattern misfires and the ladder
// keeps trying.
func (p *Parser) Parse(text, bank string) (*Notification, error) {
	ladder := genericAmountPatterns
	if strings.Contains(strings.ToUpper(bank), "DEMIR") {
		ladder = demirAmountPatterns
	}

	var amount decimal.Decimal
	found := false
	for _, re := range ladder {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		a, err := decimal.NewFromString(normalizeAmount(m[1]))
		if err != nil || !a.IsPositive() {
			continue
		}
		if a.GreaterThan(p.ceiling) {
			logger.Warn("parser: amount above ceiling, trying next pattern",
				"bank", bank, "amount", a.String())
			continue
		}
		amount = a.Round(2)
		found = true
		break
	}
	if !found {
		return nil, ErrNoAmount
	}

	return &Notification{
		Amount:     amount,
		NotifiedAt: p.parseDate(text),
	}, nil
}

func (p *Parser) parseDate(text string) *time.Time {
	for _, dp := range datePatterns {
		m := dp.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.Join(strings.Fields(m[1]), " ")
		t, err := time.ParseInLocation(dp.layout, raw, p.loc)
		if err != nil {
			continue
		}
		utc := t.UTC()
		return &utc
	}
	return nil
}

// normalizeAmount resolves thousand vs decimal separators. With both a dot
// and a comma present, whichever sits closer to the end is the decimal
// separator. A lone comma followed by 1-2 digits is a decimal separator,
// otherwise it groups thousands. Spaces always group thousands.
func normalizeAmount(s string) string {
	hasDot := strings.Contains(s, ".")
	hasComma := strings.Contains(s, ",")

	stripSpace := func(v string) string {
		return strings.Join(strings.Fields(v), "")
	}

	switch {
	case hasDot && hasComma:
		if strings.LastIndex(s, ".") > strings.LastIndex(s, ",") {
			return strings.ReplaceAll(stripSpace(s), ",", "")
		}
		v := strings.ReplaceAll(stripSpace(s), ".", "")
		return strings.Replace(v, ",", ".", 1)
	case hasComma:
		parts := strings.Split(s, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 && len(stripSpace(parts[0])) <= 6 {
			return stripSpace(parts[0]) + "." + parts[1]
		}
		return strings.ReplaceAll(stripSpace(s), ",", "")
	default:
		return stripSpace(s)
	}
}
