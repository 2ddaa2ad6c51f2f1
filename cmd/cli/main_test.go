package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/budget-ledger/internal/statement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cliOFX = `<OFX><BANKTRANLIST>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115
<TRNAMT>-45.90
<FITID>A1
<MEMO>PADARIA SAO JOSE
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240112
<TRNAMT>-12.00
<FITID>A2
<MEMO>PADARIA SAO JOSE
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240110
<TRNAMT>1500.00
<FITID>A3
<MEMO>SALARIO EMPRESA
</STMTTRN>
</BANKTRANLIST></OFX>`

func TestParseMonth(t *testing.T) {
	today := civil.Date{Year: 2024, Month: time.March, Day: 9}

	y, m, err := parseMonth("", today)
	require.NoError(t, err)
	assert.Equal(t, 2024, y)
	assert.Equal(t, time.March, m)

	y, m, err = parseMonth("2023-11", today)
	require.NoError(t, err)
	assert.Equal(t, 2023, y)
	assert.Equal(t, time.November, m)

	_, _, err = parseMonth("11/2023", today)
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	d, err = parseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.February, Day: 29}, d)

	_, err = parseDate("29/02/2024")
	assert.Error(t, err)
}

func TestParseOptionalDecimal(t *testing.T) {
	v, err := parseOptionalDecimal("")
	require.NoError(t, err)
	assert.False(t, v.Valid)

	v, err = parseOptionalDecimal("12,50")
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, "12.5", v.Decimal.String())

	_, err = parseOptionalDecimal("abc")
	assert.Error(t, err)
}

func TestSplitIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitIDs(" a, ,b,"))
	assert.Nil(t, splitIDs(""))
}

func writeStatement(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jan.ofx")
	require.NoError(t, os.WriteFile(path, []byte(cliOFX), 0o644))
	return path
}

func TestFilterFlagsSelectFrom(t *testing.T) {
	result, err := parseFile(writeStatement(t))
	require.NoError(t, err)
	require.Len(t, result.Transactions, 3)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"everything", nil, 3},
		{"debits", []string{"-kind", "debit"}, 2},
		{"minimum", []string{"-min", "40"}, 2},
		{"query", []string{"-q", "salario"}, 1},
		{"merchant", []string{"-merchant", "PADARIA SAO JOSE"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			ff := newFilterFlags(fs)
			require.NoError(t, fs.Parse(tt.args))

			txs, err := ff.selectFrom(result)
			require.NoError(t, err)
			assert.Len(t, txs, tt.want)
		})
	}
}

func TestFilterFlagsRejectsUnknownKind(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	ff := newFilterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-kind", "transfer"}))

	_, err := ff.selectFrom(statement.Result{})
	assert.Error(t, err)
}
