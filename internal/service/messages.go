package service

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/receiptsplit/internal/calculator"
	"github.com/mmynk/receiptsplit/internal/models"
)

// Empty is the request or response of procedures that carry no data.
type Empty struct{}

type CreateReceiptRequest struct {
	Name     string `json:"name"`
	Date     string `json:"date"`
	ImageURL string `json:"image_url,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type ReceiptRequest struct {
	ReceiptID string `json:"receipt_id"`
}

// ReceiptView is a receipt with its computed totals.
type ReceiptView struct {
	Receipt *models.Receipt `json:"receipt"`
	Summary Summary         `json:"summary"`
}

// Summary is the wire form of calculator.ReceiptSummary.
type Summary struct {
	Total       decimal.Decimal `json:"total"`
	Paid        decimal.Decimal `json:"paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
	ItemCount   int             `json:"item_count"`
	PaidCount   int             `json:"paid_count"`
	PeopleCount int             `json:"people_count"`
	Settled     bool            `json:"settled"`
	Description string          `json:"description"`
}

type ListReceiptsResponse struct {
	Receipts []ReceiptView `json:"receipts"`
}

type UpdateReceiptImageRequest struct {
	ReceiptID string `json:"receipt_id"`
	ImageURL  string `json:"image_url"`
}

type UpdateReceiptDateRequest struct {
	ReceiptID string `json:"receipt_id"`
	Date      string `json:"date"`
}

type UpdateReceiptNotesRequest struct {
	ReceiptID string `json:"receipt_id"`
	Notes     string `json:"notes"`
}

type AddBillItemRequest struct {
	ReceiptID  string          `json:"receipt_id"`
	PersonName string          `json:"person_name"`
	Amount     decimal.Decimal `json:"amount"`
}

type BillItemResponse struct {
	Item *models.BillItem `json:"item"`
}

type BillItemRequest struct {
	ItemID string `json:"item_id"`
}

type ToggleBillItemPaidRequest struct {
	ItemID string `json:"item_id"`
	Paid   bool   `json:"paid"`
}

// BulkAddBillItemsRequest carries an uploaded JSON document: an array of
// objects, or a string holding one.
type BulkAddBillItemsRequest struct {
	ReceiptID string          `json:"receipt_id"`
	Data      json.RawMessage `json:"data"`
}

type BulkAddBillItemsResponse struct {
	Count int                `json:"count"`
	Items []*models.BillItem `json:"items"`
}

// ImportSplitRequest saves a computed split onto a receipt.
type ImportSplitRequest struct {
	ReceiptID         string             `json:"receipt_id"`
	Items             []models.SplitLine `json:"items"`
	Explanation       string             `json:"explanation,omitempty"`
	AppendExplanation bool               `json:"append_explanation"`
}

type ImportSplitResponse struct {
	Items          []*models.BillItem `json:"items"`
	NotesUpdated   bool               `json:"notes_updated"`
	DuplicateNames []string           `json:"duplicate_names,omitempty"`
	Failures       []string           `json:"failures,omitempty"`
}

// ComputeSplitRequest holds an allocation request document.
type ComputeSplitRequest struct {
	Allocation json.RawMessage `json:"allocation"`
}

// SplitResponse is a computed split as returned to clients.
type SplitResponse struct {
	Items       []models.SplitLine           `json:"items"`
	Explanation string                       `json:"explanation"`
	Warnings    []calculator.ValidationIssue `json:"warnings,omitempty"`
}

type PublicLinkResponse struct {
	LinkID string `json:"link_id"`
	URL    string `json:"url"`
}

type GetPublicBillRequest struct {
	LinkID string `json:"link_id"`
}

type PublicBillResponse struct {
	Receipt       *models.Receipt `json:"receipt"`
	Summary       Summary         `json:"summary"`
	PaymentHandle string          `json:"payment_handle,omitempty"`
}

func newSummary(r *models.Receipt) Summary {
	s := r.Summary()
	return Summary{
		Total:       s.Total,
		Paid:        s.Paid,
		Outstanding: s.Outstanding,
		ItemCount:   s.ItemCount,
		PaidCount:   s.PaidCount,
		PeopleCount: len(s.People),
		Settled:     s.Settled(),
		Description: s.Description(r.Name, displayDate(r.Date)),
	}
}

// displayDate renders a stored YYYY-MM-DD date as "Jan 2, 2006".
func displayDate(date string) string {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return date
	}
	return t.Format("Jan 2, 2006")
}

func newSplitResponse(result *calculator.BillSplitResult) *SplitResponse {
	return &SplitResponse{
		Items:       models.SplitLines(result),
		Explanation: result.Explanation,
		Warnings:    result.Warnings,
	}
}
