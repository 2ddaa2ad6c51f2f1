package statement

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

// NoDescription is used when a block has neither MEMO nor NAME.
const NoDescription = "no description"

var (
	blockPattern  = regexp.MustCompile(`(?is)<STMTTRN>(.*?)</STMTTRN>`)
	fieldPatterns = map[string]*regexp.Regexp{}
)

func init() {
	for _, name := range []string{"TRNTYPE", "DTPOSTED", "TRNAMT", "FITID", "MEMO", "NAME"} {
		fieldPatterns[name] = regexp.MustCompile(`(?i)<` + name + `>([^<\r\n]*)`)
	}
}

// Parser extracts transactions from OFX text. Clock and NewToken only matter
// for blocks without a FITID.
type Parser struct {
	Clock    func() time.Time
	NewToken func() string
}

// NewParser returns a parser using the wall clock and random tokens.
func NewParser() *Parser {
	return &Parser{
		Clock:    time.Now,
		NewToken: func() string { return uuid.New().String()[:8] },
	}
}

// Parse is a convenience wrapper around NewParser().Parse.
func Parse(raw string) Result {
	return NewParser().Parse(raw)
}

// ParseReader reads a whole statement and parses it. Payloads that are not
// valid UTF-8 are decoded as Windows-1252, the charset most OFX exports
// declare.
func (p *Parser) ParseReader(r io.Reader) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("ParseReader: reading statement: %w", err)
	}
	return p.ParseBytes(data)
}

// ParseBytes decodes data and parses it.
func (p *Parser) ParseBytes(data []byte) (Result, error) {
	if utf8.Valid(data) {
		return p.Parse(string(data)), nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return Result{}, fmt.Errorf("ParseBytes: decoding windows-1252: %w", err)
	}
	return p.Parse(string(decoded)), nil
}

// Parse extracts every <STMTTRN> block of raw. Blocks without a posted date
// or with a zero amount are skipped. The result is ordered by date, most
// recent first, keeping input order for equal dates.
func (p *Parser) Parse(raw string) Result {
	var result Result

	for _, match := range blockPattern.FindAllStringSubmatch(raw, -1) {
		result.Blocks++
		tx, ok := p.parseBlock(match[1])
		if !ok {
			result.Skipped++
			continue
		}
		result.Transactions = append(result.Transactions, tx)
	}

	sort.SliceStable(result.Transactions, func(i, j int) bool {
		return result.Transactions[i].Date.After(result.Transactions[j].Date)
	})
	for i := range result.Transactions {
		result.Transactions[i].Seq = i
	}

	return result
}

func (p *Parser) parseBlock(block string) (Transaction, bool) {
	posted := field(block, "DTPOSTED")
	if len(posted) < 8 {
		return Transaction{}, false
	}
	date, err := civil.ParseDate(posted[0:4] + "-" + posted[4:6] + "-" + posted[6:8])
	if err != nil {
		return Transaction{}, false
	}

	signed, err := parseAmount(field(block, "TRNAMT"))
	if err != nil || signed.IsZero() {
		return Transaction{}, false
	}

	memo := field(block, "MEMO")
	if memo == "" {
		memo = field(block, "NAME")
	}
	if memo == "" {
		memo = NoDescription
	}

	rawType := strings.ToUpper(field(block, "TRNTYPE"))

	id := field(block, "FITID")
	if id == "" {
		id = fmt.Sprintf("gen-%d-%s", p.now().UnixMilli(), p.token())
	}

	return Transaction{
		ExternalID:   id,
		Kind:         kindOf(rawType, signed),
		RawType:      rawType,
		Date:         date,
		SignedAmount: signed,
		Amount:       signed.Abs(),
		Description:  memo,
		Merchant:     MerchantLabel(memo),
	}, true
}

func (p *Parser) now() time.Time {
	if p.Clock == nil {
		return time.Now()
	}
	return p.Clock()
}

func (p *Parser) token() string {
	if p.NewToken == nil {
		return uuid.New().String()[:8]
	}
	return p.NewToken()
}

// field returns the trimmed value of a tag, which runs until the next tag
// or line break.
func field(block, name string) string {
	m := fieldPatterns[name].FindStringSubmatch(block)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// parseAmount accepts "-45.90" and the comma decimal form "-45,90".
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return decimal.NewFromString(s)
}

// kindOf normalizes TRNTYPE. Types other than CREDIT and DEBIT (DEP, POS,
// XFER, ...) follow the sign of the amount.
func kindOf(rawType string, signed decimal.Decimal) Kind {
	switch rawType {
	case "CREDIT":
		return KindCredit
	case "DEBIT":
		return KindDebit
	}
	if signed.IsPositive() {
		return KindCredit
	}
	return KindDebit
}
