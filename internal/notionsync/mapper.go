package notionsync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the entries database.
const (
	PropDescription = "Description"
	PropEntryID     = "Entry ID"
	PropDate        = "Date"
	PropAmount      = "Amount"
	PropDirection   = "Direction"
	PropStatus      = "Status"
	PropCategory    = "Category"
	PropInstallment = "Installment"
	PropSeries      = "Series"
	PropSettlement  = "Settlement"
	PropNotes       = "Notes"
	PropFingerprint = "Fingerprint"
)

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: content,
			},
		},
	}
}

func dateProperty(d civil.Date) notionapi.DateProperty {
	start := notionapi.Date(time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC))
	return notionapi.DateProperty{
		Date: &notionapi.DateObject{
			Start: &start,
		},
	}
}

// Fingerprint summarizes the mirrored fields of an entry. A page whose
// fingerprint matches needs no update.
func Fingerprint(e domain.Entry, categoryName string) string {
	parts := []string{
		e.ID,
		e.Description,
		e.Date.String(),
		e.Amount.StringFixed(2),
		string(e.Direction),
		string(e.Status),
		categoryName,
		e.SeriesID,
		e.Notes,
	}
	if e.Position != nil {
		parts = append(parts, e.Position.Label())
	}
	if e.Settlement != nil {
		parts = append(parts, string(e.Settlement.Kind))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:8])
}

// EntryToNotionProperties converts a ledger entry to Notion properties.
// categoryName is written as a select option; empty leaves it unset.
func EntryToNotionProperties(e domain.Entry, categoryName string) notionapi.Properties {
	amount, _ := e.Amount.Float64()

	props := notionapi.Properties{
		PropDescription: notionapi.TitleProperty{
			Title: richText(e.Description),
		},
		PropEntryID: notionapi.RichTextProperty{
			RichText: richText(e.ID),
		},
		PropDate: dateProperty(e.Date),
		PropAmount: notionapi.NumberProperty{
			Number: amount,
		},
		PropDirection: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(e.Direction)},
		},
		PropStatus: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(e.Status)},
		},
		PropFingerprint: notionapi.RichTextProperty{
			RichText: richText(Fingerprint(e, categoryName)),
		},
	}

	if categoryName != "" {
		props[PropCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: categoryName},
		}
	}

	if e.Position != nil {
		props[PropInstallment] = notionapi.RichTextProperty{
			RichText: richText(e.Position.Label()),
		}
	}

	if e.SeriesID != "" {
		props[PropSeries] = notionapi.RichTextProperty{
			RichText: richText(e.SeriesID),
		}
	}

	// Settlement kind; the breakdown stays in the ledger
	if e.Settlement != nil {
		props[PropSettlement] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(e.Settlement.Kind)},
		}
	}

	if e.Notes != "" {
		props[PropNotes] = notionapi.RichTextProperty{
			RichText: richText(e.Notes),
		}
	}

	return props
}

// plainText reads a title or rich text property. Returns empty string if not
// found.
func plainText(page notionapi.Page, name string) string {
	prop, ok := page.Properties[name]
	if !ok {
		return ""
	}
	var parts []notionapi.RichText
	switch p := prop.(type) {
	case *notionapi.RichTextProperty:
		parts = p.RichText
	case *notionapi.TitleProperty:
		parts = p.Title
	default:
		return ""
	}
	var b strings.Builder
	for _, rt := range parts {
		if rt.PlainText != "" {
			b.WriteString(rt.PlainText)
		} else if rt.Text != nil {
			b.WriteString(rt.Text.Content)
		}
	}
	return b.String()
}

// pageDate reads the start of the Date property.
func pageDate(page notionapi.Page) (civil.Date, bool) {
	prop, ok := page.Properties[PropDate]
	if !ok {
		return civil.Date{}, false
	}
	dp, ok := prop.(*notionapi.DateProperty)
	if !ok || dp.Date == nil || dp.Date.Start == nil {
		return civil.Date{}, false
	}
	return civil.DateOf(time.Time(*dp.Date.Start)), true
}

// EntryIDFromPage extracts the ledger entry ID of a page.
func EntryIDFromPage(page notionapi.Page) string {
	return plainText(page, PropEntryID)
}

// FingerprintFromPage extracts the stored fingerprint of a page.
func FingerprintFromPage(page notionapi.Page) string {
	return plainText(page, PropFingerprint)
}

func describePage(page notionapi.Page) string {
	if id := EntryIDFromPage(page); id != "" {
		return fmt.Sprintf("%s (entry %s)", page.ID, id)
	}
	return string(page.ID)
}
