package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/budget-ledger/internal/statement"
	"github.com/rs/zerolog"
)

// filterFlags registers the statement filter flags shared by parse and
// import.
type filterFlags struct {
	kind     *string
	min      *string
	max      *string
	query    *string
	merchant *string
}

func newFilterFlags(fs *flag.FlagSet) *filterFlags {
	return &filterFlags{
		kind:     fs.String("kind", "", "Only credit or debit transactions"),
		min:      fs.String("min", "", "Minimum absolute amount"),
		max:      fs.String("max", "", "Maximum absolute amount"),
		query:    fs.String("q", "", "Case-insensitive text the description must contain"),
		merchant: fs.String("merchant", "", "Only transactions with this merchant label"),
	}
}

func (f *filterFlags) filter() (statement.Filter, error) {
	lo, err := parseOptionalDecimal(*f.min)
	if err != nil {
		return statement.Filter{}, err
	}
	hi, err := parseOptionalDecimal(*f.max)
	if err != nil {
		return statement.Filter{}, err
	}
	kind := statement.Kind(*f.kind)
	if kind != "" && kind != statement.KindCredit && kind != statement.KindDebit {
		return statement.Filter{}, fmt.Errorf("invalid kind %q, expected credit or debit", *f.kind)
	}
	return statement.Filter{Kind: kind, Min: lo, Max: hi, Query: *f.query}, nil
}

// selectFrom applies the filter flags to a parsed statement, narrowing to one
// merchant when -merchant is set.
func (f *filterFlags) selectFrom(result statement.Result) ([]statement.Transaction, error) {
	filter, err := f.filter()
	if err != nil {
		return nil, err
	}
	staging := statement.NewStaging(result)
	if *f.merchant != "" {
		staging.SelectMerchant(filter, *f.merchant, true)
	} else {
		staging.SelectMatching(filter, true)
	}
	return staging.Selected(), nil
}

func parseFile(path string) (statement.Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return statement.Result{}, err
	}
	defer file.Close()
	return statement.NewParser().ParseReader(file)
}

func runParse(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to local OFX file")
	groups := fs.Bool("groups", false, "Group transactions by merchant")
	ff := newFilterFlags(fs)
	fs.Parse(args)

	if *filePath == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	result, err := parseFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to parse statement")
	}
	if result.Empty() {
		fmt.Printf("No transactions found (%d blocks, %d skipped).\n", result.Blocks, result.Skipped)
		return
	}

	txs, err := ff.selectFrom(result)
	if err != nil {
		log.Fatal().Err(err).Msg("Error: invalid filter")
	}

	tw := newTable()
	if *groups {
		fmt.Fprintln(tw, "MERCHANT\tCOUNT\tTOTAL")
		for _, g := range statement.GroupByMerchant(txs) {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", g.Merchant, g.Count, g.Total.StringFixed(2))
		}
	} else {
		fmt.Fprintln(tw, "SEQ\tDATE\tKIND\tAMOUNT\tMERCHANT\tDESCRIPTION")
		for _, tx := range txs {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", tx.Seq, tx.Date, tx.Kind, tx.Amount.StringFixed(2), tx.Merchant, tx.Description)
		}
	}
	tw.Flush()
	fmt.Printf("\n%d of %d transactions (%d blocks skipped).\n", len(txs), len(result.Transactions), result.Skipped)
}

func runImport(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	user := userFlag(fs)
	filePath := fs.String("file", "", "Path to local OFX file")
	ff := newFilterFlags(fs)
	fs.Parse(args)

	if *filePath == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	e, done := open(log, *user)
	defer done()

	result, err := parseFile(*filePath)
	if err != nil {
		e.log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to parse statement")
	}
	selected, err := ff.selectFrom(result)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Error: invalid filter")
	}
	if len(selected) == 0 {
		fmt.Println("No transactions selected.")
		return
	}

	counts, err := e.app.Importer.Import(e.ctx, e.session, selected)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Import failed")
	}
	fmt.Printf("Imported %d, skipped %d duplicate(s), %d error(s).\n", counts.Imported, counts.Duplicates, counts.Errors)
}

func runUpload(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	user := userFlag(fs)
	filePath := fs.String("file", "", "Path to local OFX file")
	fs.Parse(args)

	if *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -user ID -file PATH")
	}

	e, done := open(log, *user)
	defer done()

	data, err := os.ReadFile(*filePath)
	if err != nil {
		e.log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to read file")
	}

	rec, duplicate, err := e.app.Ingestor.Register(e.ctx, e.session, filepath.Base(*filePath), data)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Upload failed")
	}
	if duplicate {
		fmt.Printf("Statement already uploaded as %s (%s).\n", rec.ID, rec.Status)
		return
	}

	counts, err := e.app.Ingestor.Ingest(e.ctx, e.session, rec.ID)
	if err != nil {
		e.log.Fatal().Err(err).Str("statement_id", rec.ID).Msg("Import failed")
	}
	fmt.Printf("Uploaded %s to %s: imported %d, skipped %d duplicate(s), %d error(s).\n",
		*filePath, rec.URI, counts.Imported, counts.Duplicates, counts.Errors)
}
