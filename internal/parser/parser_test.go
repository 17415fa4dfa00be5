package parser

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	return New(100000, "Asia/Bishkek")
}

func TestParse_KyrgyzSummasindaFormat(t *testing.T) {
	p := newTestParser(t)

	n, err := p.Parse("07.12.2025 10:14:42 100.36 KGS суммасында которулду", "demirbank")
	require.NoError(t, err)
	assert.True(t, n.Amount.Equal(decimal.RequireFromString("100.36")))

	require.NotNil(t, n.NotifiedAt)
	// 10:14:42 Bishkek time is 04:14:42 UTC
	assert.Equal(t, time.Date(2025, 12, 7, 4, 14, 42, 0, time.UTC), *n.NotifiedAt)
}

func TestParse_NaSummuWithThousandsSeparator(t *testing.T) {
	p := newTestParser(t)

	n, err := p.Parse("Пополнение на сумму 7,363.00 сом выполнено", "DemirBank")
	require.NoError(t, err)
	assert.True(t, n.Amount.Equal(decimal.RequireFromString("7363.00")))
	assert.Nil(t, n.NotifiedAt)
}

func TestParse_NaSummuSimple(t *testing.T) {
	p := newTestParser(t)

	n, err := p.Parse("Перевод на сумму 170.03 KGS от 05.12.2025 00:47:56", "demir")
	require.NoError(t, err)
	assert.True(t, n.Amount.Equal(decimal.RequireFromString("170.03")))

	require.NotNil(t, n.NotifiedAt)
	assert.Equal(t, time.Date(2025, 12, 4, 18, 47, 56, 0, time.UTC), *n.NotifiedAt)
}

func TestParse_SecondsNeverCapturedAsAmount(t *testing.T) {
	p := newTestParser(t)

	// the timestamp carries "58" as seconds right before the amount
	n, err := p.Parse("07.12.2025 10:48:58 245.00 KGS суммасында", "demirbank")
	require.NoError(t, err)
	assert.True(t, n.Amount.Equal(decimal.RequireFromString("245.00")))
}

func TestParse_UnknownBankUsesGenericLadder(t *testing.T) {
	p := newTestParser(t)

	n, err := p.Parse("Поступление 1 500.00 сом на ваш счет", "optima")
	require.NoError(t, err)
	assert.True(t, n.Amount.Equal(decimal.RequireFromString("1500.00")))
}

func TestParse_NoAmount(t *testing.T) {
	p := newTestParser(t)

	_, err := p.Parse("Ваш код подтверждения: 4821", "demirbank")
	assert.ErrorIs(t, err, ErrNoAmount)
}

func TestParse_ZeroAmountRejected(t *testing.T) {
	p := newTestParser(t)

	_, err := p.Parse("Списание 0.00 KGS", "optima")
	assert.ErrorIs(t, err, ErrNoAmount)
}

func TestParse_CeilingExhaustsLadder(t *testing.T) {
	p := newTestParser(t)

	_, err := p.Parse("Зачисление 200000 KGS", "demirbank")
	assert.ErrorIs(t, err, ErrNoAmount)
}

func TestParse_ISODate(t *testing.T) {
	p := newTestParser(t)

	n, err := p.Parse("2025-12-07 10:30:00 на сумму 42.00 KGS", "demirbank")
	require.NoError(t, err)
	require.NotNil(t, n.NotifiedAt)
	assert.Equal(t, time.Date(2025, 12, 7, 4, 30, 0, 0, time.UTC), *n.NotifiedAt)
}

func TestParse_SlashDateWithoutSeconds(t *testing.T) {
	p := newTestParser(t)

	n, err := p.Parse("07/12/2025 10:30 на сумму 55.50 сом", "demirbank")
	require.NoError(t, err)
	require.NotNil(t, n.NotifiedAt)
	assert.Equal(t, time.Date(2025, 12, 7, 4, 30, 0, 0, time.UTC), *n.NotifiedAt)
}

func TestNormalizeAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1,000.79", "1000.79"},   // comma groups thousands
		{"1 000,79", "1000.79"},   // comma is the decimal separator
		{"100,79", "100.79"},      // lone comma with 2 digits after
		{"1,000", "1000"},         // lone comma with 3 digits after
		{"1 000.79", "1000.79"}, // spaces group thousands
		{"7,363.00", "7363.00"},
		{"1000", "1000"},
		{"1.000,50", "1000.50"}, // dot groups, comma decimal
		{"12 345 678", "12345678"},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, normalizeAmount(c.in), "input %q", c.in)
	}
}
