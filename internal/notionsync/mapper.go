package notionsync

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the transactions database.
const (
	PropDescription   = "Description"
	PropTransactionID = "Transaction ID"
	PropOwner         = "Owner"
	PropDate          = "Date"
	PropAmount        = "Amount"
	PropType          = "Type"
	PropCurrency      = "Currency"
	PropCategory      = "Category"
	PropRawText       = "Raw Text"
	PropRecordedAt    = "Recorded At"
)

// TransactionKey identifies a ledger transaction across owners.
func TransactionKey(ownerID, id int64) string {
	return fmt.Sprintf("%d:%d", ownerID, id)
}

// keyOwner returns the owner encoded in a TransactionKey.
func keyOwner(key string) (int64, bool) {
	owner, _, ok := strings.Cut(key, ":")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(owner, 10, 64)
	return id, err == nil
}

func text(content string) []notionapi.RichText {
	return []notionapi.RichText{{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: content},
	}}
}

func date(d civil.Date) *notionapi.Date {
	nd := notionapi.Date(time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC))
	return &nd
}

// TransactionToNotionProperties maps a ledger transaction onto a database row.
func TransactionToNotionProperties(tx domain.Transaction) notionapi.Properties {
	title := tx.Description
	if title == "" {
		title = tx.Category
	}

	props := notionapi.Properties{
		PropDescription:   notionapi.TitleProperty{Title: text(title)},
		PropTransactionID: notionapi.RichTextProperty{RichText: text(TransactionKey(tx.OwnerID, tx.ID))},
		PropOwner:         notionapi.NumberProperty{Number: float64(tx.OwnerID)},
		PropDate:          notionapi.DateProperty{Date: &notionapi.DateObject{Start: date(tx.Date)}},
		PropAmount:        notionapi.NumberProperty{Number: tx.Amount.InexactFloat64()},
		PropType:          notionapi.SelectProperty{Select: notionapi.Option{Name: string(tx.Kind)}},
		PropCurrency:      notionapi.SelectProperty{Select: notionapi.Option{Name: tx.Currency}},
		PropCategory:      notionapi.SelectProperty{Select: notionapi.Option{Name: tx.Category}},
	}

	if tx.RawText != "" {
		props[PropRawText] = notionapi.RichTextProperty{RichText: text(tx.RawText)}
	}
	if !tx.CreatedAt.IsZero() {
		created := notionapi.Date(tx.CreatedAt.UTC())
		props[PropRecordedAt] = notionapi.DateProperty{Date: &notionapi.DateObject{Start: &created}}
	}
	return props
}

// extractTransactionKey reads the Transaction ID of a row, or "".
func extractTransactionKey(page notionapi.Page) string {
	prop, ok := page.Properties[PropTransactionID]
	if !ok {
		return ""
	}
	rt, ok := prop.(*notionapi.RichTextProperty)
	if !ok || len(rt.RichText) == 0 {
		return ""
	}
	if rt.RichText[0].PlainText != "" {
		return rt.RichText[0].PlainText
	}
	if rt.RichText[0].Text != nil {
		return rt.RichText[0].Text.Content
	}
	return ""
}

// extractDate reads the Date of a row.
func extractDate(page notionapi.Page) (civil.Date, bool) {
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
