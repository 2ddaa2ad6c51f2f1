package statement

import (
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHeader = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
CHARSET:1252

<OFX>
<BANKMSGSRSV1>
<STMTTRNRS>
<STMTRS>
<BANKTRANLIST>
`

const sampleFooter = `</BANKTRANLIST>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>
`

func block(fields ...string) string {
	return "<STMTTRN>\n" + strings.Join(fields, "\n") + "\n</STMTTRN>\n"
}

func statement(blocks ...string) string {
	return sampleHeader + strings.Join(blocks, "") + sampleFooter
}

func fixedParser() *Parser {
	return &Parser{
		Clock:    func() time.Time { return time.UnixMilli(1700000000000) },
		NewToken: func() string { return "tok" },
	}
}

func TestParseSingleDebit(t *testing.T) {
	raw := statement(block(
		"<TRNTYPE>DEBIT",
		"<DTPOSTED>20240115",
		"<TRNAMT>-45.90",
		"<FITID>X1",
		"<MEMO>PADARIA SAO JOSE 12/34",
	))

	result := fixedParser().Parse(raw)

	require.Len(t, result.Transactions, 1)
	tx := result.Transactions[0]
	assert.Equal(t, civil.Date{Year: 2024, Month: time.January, Day: 15}, tx.Date)
	assert.Equal(t, "45.90", tx.Amount.StringFixed(2))
	assert.Equal(t, "-45.90", tx.SignedAmount.StringFixed(2))
	assert.Equal(t, KindDebit, tx.Kind)
	assert.Equal(t, "X1", tx.ExternalID)
	assert.Equal(t, "PADARIA SAO JOSE 12/34", tx.Description)
	assert.Equal(t, "PADARIA SAO JOSE", tx.Merchant)
	assert.False(t, tx.Selected)
	assert.Equal(t, 1, result.Blocks)
	assert.Zero(t, result.Skipped)
}

func TestParseSkipsZeroAmountAndMissingDate(t *testing.T) {
	raw := statement(
		block("<TRNTYPE>CREDIT", "<DTPOSTED>20240110", "<TRNAMT>0", "<FITID>Z", "<MEMO>ZERO"),
		block("<TRNTYPE>CREDIT", "<DTPOSTED>20240110", "<TRNAMT>0.00", "<FITID>Z2", "<MEMO>ZERO AGAIN"),
		block("<TRNTYPE>DEBIT", "<TRNAMT>-10.00", "<FITID>NODATE", "<MEMO>NO DATE"),
		block("<TRNTYPE>DEBIT", "<DTPOSTED>2024011", "<TRNAMT>-10.00", "<MEMO>SHORT DATE"),
		block("<TRNTYPE>DEBIT", "<DTPOSTED>20240110", "<TRNAMT>abc", "<MEMO>BAD AMOUNT"),
		block("<TRNTYPE>CREDIT", "<DTPOSTED>20240110", "<TRNAMT>10.00", "<FITID>OK", "<MEMO>SALARY"),
	)

	result := fixedParser().Parse(raw)

	require.Len(t, result.Transactions, 1)
	assert.Equal(t, "OK", result.Transactions[0].ExternalID)
	assert.Equal(t, 6, result.Blocks)
	assert.Equal(t, 5, result.Skipped)
}

func TestParseDescriptionFallbacks(t *testing.T) {
	raw := statement(
		block("<TRNTYPE>DEBIT", "<DTPOSTED>20240103", "<TRNAMT>-1.00", "<FITID>A", "<NAME>NAME ONLY"),
		block("<TRNTYPE>DEBIT", "<DTPOSTED>20240102", "<TRNAMT>-1.00", "<FITID>B"),
		block("<TRNTYPE>DEBIT", "<DTPOSTED>20240101", "<TRNAMT>-1.00", "<FITID>C", "<MEMO>  ", "<NAME>BLANK MEMO"),
	)

	result := fixedParser().Parse(raw)

	require.Len(t, result.Transactions, 3)
	assert.Equal(t, "NAME ONLY", result.Transactions[0].Description)
	assert.Equal(t, NoDescription, result.Transactions[1].Description)
	assert.Equal(t, "BLANK MEMO", result.Transactions[2].Description)
}

func TestParseGeneratesIDWithoutFITID(t *testing.T) {
	raw := statement(block("<TRNTYPE>CREDIT", "<DTPOSTED>20240101", "<TRNAMT>5", "<MEMO>REFUND"))

	result := fixedParser().Parse(raw)

	require.Len(t, result.Transactions, 1)
	assert.Equal(t, "gen-1700000000000-tok", result.Transactions[0].ExternalID)
}

func TestParseOrdersByDateDescendingStable(t *testing.T) {
	raw := statement(
		block("<TRNTYPE>DEBIT", "<DTPOSTED>20240105", "<TRNAMT>-1", "<FITID>first-of-5th", "<MEMO>A"),
		block("<TRNTYPE>DEBIT", "<DTPOSTED>20240120", "<TRNAMT>-1", "<FITID>20th", "<MEMO>B"),
		block("<TRNTYPE>DEBIT", "<DTPOSTED>20240105", "<TRNAMT>-1", "<FITID>second-of-5th", "<MEMO>C"),
		block("<TRNTYPE>DEBIT", "<DTPOSTED>20231231", "<TRNAMT>-1", "<FITID>last-year", "<MEMO>D"),
	)

	result := fixedParser().Parse(raw)

	var ids []string
	for i, tx := range result.Transactions {
		ids = append(ids, tx.ExternalID)
		assert.Equal(t, i, tx.Seq)
	}
	assert.Equal(t, []string{"20th", "first-of-5th", "second-of-5th", "last-year"}, ids)
}

func TestParseFormats(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind Kind
		wantAmt  string
		wantMemo string
	}{
		{
			name:     "xml closing tags",
			raw:      "<STMTTRN><TRNTYPE>CREDIT</TRNTYPE><DTPOSTED>20240201</DTPOSTED><TRNAMT>1500.00</TRNAMT><FITID>9</FITID><MEMO>SALARIO EMPRESA</MEMO></STMTTRN>",
			wantKind: KindCredit,
			wantAmt:  "1500.00",
			wantMemo: "SALARIO EMPRESA",
		},
		{
			name:     "lowercase tags and crlf",
			raw:      "<stmttrn>\r\n<trntype>DEBIT\r\n<dtposted>20240201000000[-3:BRT]\r\n<trnamt>-12.5\r\n<memo>UBER TRIP\r\n</stmttrn>",
			wantKind: KindDebit,
			wantAmt:  "12.50",
			wantMemo: "UBER TRIP",
		},
		{
			name:     "comma decimal",
			raw:      block("<TRNTYPE>DEBIT", "<DTPOSTED>20240201", "<TRNAMT>-7,25", "<MEMO>BAKERY"),
			wantKind: KindDebit,
			wantAmt:  "7.25",
			wantMemo: "BAKERY",
		},
		{
			name:     "other type follows sign",
			raw:      block("<TRNTYPE>DEP", "<DTPOSTED>20240201", "<TRNAMT>30", "<MEMO>DEPOSIT"),
			wantKind: KindCredit,
			wantAmt:  "30.00",
			wantMemo: "DEPOSIT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := fixedParser().Parse(tt.raw)
			require.Len(t, result.Transactions, 1)
			tx := result.Transactions[0]
			assert.Equal(t, tt.wantKind, tx.Kind)
			assert.Equal(t, tt.wantAmt, tx.Amount.StringFixed(2))
			assert.Equal(t, tt.wantMemo, tx.Description)
		})
	}
}

func TestParseEmptyStatement(t *testing.T) {
	result := Parse("OFXHEADER:100\n<OFX></OFX>")
	assert.True(t, result.Empty())
	assert.Zero(t, result.Blocks)
}

func TestParseBytesWindows1252(t *testing.T) {
	raw := []byte(block("<TRNTYPE>DEBIT", "<DTPOSTED>20240201", "<TRNAMT>-3.00", "<MEMO>CAF\xc9 CENTRAL"))

	result, err := fixedParser().ParseBytes(raw)

	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, "CAFÉ CENTRAL", result.Transactions[0].Description)
	assert.Equal(t, "CAFÉ CENTRAL", result.Transactions[0].Merchant)
}

func TestParseReader(t *testing.T) {
	raw := statement(block("<TRNTYPE>DEBIT", "<DTPOSTED>20240201", "<TRNAMT>-3.00", "<MEMO>KIOSK"))

	result, err := fixedParser().ParseReader(strings.NewReader(raw))

	require.NoError(t, err)
	assert.Len(t, result.Transactions, 1)
}
