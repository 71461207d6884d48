// Package service implements the ReceiptService RPC handlers and the REST
// endpoints used by the web client.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/receiptsplit/internal/blob"
	"github.com/mmynk/receiptsplit/internal/calculator"
	"github.com/mmynk/receiptsplit/internal/metrics"
	"github.com/mmynk/receiptsplit/internal/models"
	"github.com/mmynk/receiptsplit/internal/reconcile"
	"github.com/mmynk/receiptsplit/internal/splitter"
	"github.com/mmynk/receiptsplit/internal/storage"
)

// Options holds the optional collaborators of the services.
type Options struct {
	// Images stores receipt photos. Nil disables image cleanup and uploads.
	Images blob.Store

	// Metrics records split outcomes. May be nil.
	Metrics *metrics.Metrics

	Logger *slog.Logger

	// PublicBaseURL prefixes share links, e.g. "https://split.example.com".
	PublicBaseURL string

	// PaymentHandle is shown on public bills.
	PaymentHandle string
}

// ReceiptService implements the ReceiptService procedures.
type ReceiptService struct {
	store      storage.Store
	images     blob.Store
	local      splitter.Computer
	reconciler *reconcile.Reconciler
	metrics    *metrics.Metrics
	logger     *slog.Logger

	publicBaseURL string
	paymentHandle string
}

// NewReceiptService creates a ReceiptService with the given storage backend.
func NewReceiptService(store storage.Store, opts Options) *ReceiptService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ReceiptService{
		store:         store,
		images:        opts.Images,
		local:         splitter.NewLocalComputer(),
		reconciler:    reconcile.NewReconciler(storeWriter{store}, logger),
		metrics:       opts.Metrics,
		logger:        logger,
		publicBaseURL: strings.TrimSuffix(opts.PublicBaseURL, "/"),
		paymentHandle: opts.PaymentHandle,
	}
}

// storeWriter lets the reconciler write through a Store.
type storeWriter struct {
	store storage.Store
}

func (w storeWriter) AddBillItem(ctx context.Context, item *models.BillItem) error {
	return w.store.AddBillItem(ctx, item)
}

func (w storeWriter) SetNotes(ctx context.Context, receiptID, notes string) error {
	return w.store.UpdateReceipt(ctx, receiptID, storage.ReceiptUpdate{Notes: &notes})
}

// storeError maps storage errors to RPC errors.
func storeError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return connect.NewError(connect.CodeNotFound, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

func invalid(format string, args ...any) error {
	return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf(format, args...))
}

func validDate(date string) bool {
	_, err := time.Parse(time.DateOnly, date)
	return err == nil
}

// CreateReceipt creates an empty receipt.
func (s *ReceiptService) CreateReceipt(ctx context.Context, req *connect.Request[CreateReceiptRequest]) (*connect.Response[ReceiptView], error) {
	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		return nil, invalid("name is required")
	}
	if req.Msg.Date == "" {
		return nil, invalid("date is required")
	}
	if !validDate(req.Msg.Date) {
		return nil, invalid("date must be YYYY-MM-DD, got %q", req.Msg.Date)
	}

	receipt := &models.Receipt{
		Name:     name,
		Date:     req.Msg.Date,
		ImageURL: req.Msg.ImageURL,
		Notes:    req.Msg.Notes,
	}
	if err := s.store.CreateReceipt(ctx, receipt); err != nil {
		s.logger.Error("CreateReceipt failed", "error", err)
		return nil, storeError(err)
	}

	s.logger.Info("Receipt created", "receipt_id", receipt.ID, "name", receipt.Name)
	return connect.NewResponse(&ReceiptView{Receipt: receipt, Summary: newSummary(receipt)}), nil
}

// GetReceipt returns a receipt with its items and totals.
func (s *ReceiptService) GetReceipt(ctx context.Context, req *connect.Request[ReceiptRequest]) (*connect.Response[ReceiptView], error) {
	if req.Msg.ReceiptID == "" {
		return nil, invalid("receipt_id is required")
	}
	receipt, err := s.store.GetReceipt(ctx, req.Msg.ReceiptID)
	if err != nil {
		return nil, storeError(err)
	}
	return connect.NewResponse(&ReceiptView{Receipt: receipt, Summary: newSummary(receipt)}), nil
}

// ListReceipts returns every receipt, newest first.
func (s *ReceiptService) ListReceipts(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ListReceiptsResponse], error) {
	receipts, err := s.store.ListReceipts(ctx)
	if err != nil {
		s.logger.Error("ListReceipts failed", "error", err)
		return nil, storeError(err)
	}

	views := make([]ReceiptView, len(receipts))
	for i, r := range receipts {
		views[i] = ReceiptView{Receipt: r, Summary: newSummary(r)}
	}
	return connect.NewResponse(&ListReceiptsResponse{Receipts: views}), nil
}

// DeleteReceipt removes a receipt and its stored image.
func (s *ReceiptService) DeleteReceipt(ctx context.Context, req *connect.Request[ReceiptRequest]) (*connect.Response[Empty], error) {
	receipt, err := s.store.GetReceipt(ctx, req.Msg.ReceiptID)
	if err != nil {
		return nil, storeError(err)
	}

	s.deleteImage(ctx, receipt.ImageURL)

	if err := s.store.DeleteReceipt(ctx, receipt.ID); err != nil {
		s.logger.Error("DeleteReceipt failed", "receipt_id", receipt.ID, "error", err)
		return nil, storeError(err)
	}
	s.logger.Info("Receipt deleted", "receipt_id", receipt.ID)
	return connect.NewResponse(&Empty{}), nil
}

// deleteImage removes an image from the bucket. Failures are logged only; a
// leftover object does not block the receipt change.
func (s *ReceiptService) deleteImage(ctx context.Context, imageURL string) {
	if s.images == nil || imageURL == "" {
		return
	}
	if err := s.images.Delete(ctx, imageURL); err != nil {
		s.logger.Warn("failed to delete image", "image_url", imageURL, "error", err)
	}
}

// UpdateReceiptImage replaces the receipt image, deleting the previous one.
func (s *ReceiptService) UpdateReceiptImage(ctx context.Context, req *connect.Request[UpdateReceiptImageRequest]) (*connect.Response[ReceiptView], error) {
	if strings.TrimSpace(req.Msg.ImageURL) == "" {
		return nil, invalid("image_url is required")
	}
	receipt, err := s.store.GetReceipt(ctx, req.Msg.ReceiptID)
	if err != nil {
		return nil, storeError(err)
	}

	if receipt.ImageURL != req.Msg.ImageURL {
		s.deleteImage(ctx, receipt.ImageURL)
	}
	return s.update(ctx, receipt.ID, storage.ReceiptUpdate{ImageURL: &req.Msg.ImageURL})
}

// UpdateReceiptDate changes the receipt date.
func (s *ReceiptService) UpdateReceiptDate(ctx context.Context, req *connect.Request[UpdateReceiptDateRequest]) (*connect.Response[ReceiptView], error) {
	if !validDate(req.Msg.Date) {
		return nil, invalid("date must be YYYY-MM-DD, got %q", req.Msg.Date)
	}
	return s.update(ctx, req.Msg.ReceiptID, storage.ReceiptUpdate{Date: &req.Msg.Date})
}

// UpdateReceiptNotes replaces the receipt notes.
func (s *ReceiptService) UpdateReceiptNotes(ctx context.Context, req *connect.Request[UpdateReceiptNotesRequest]) (*connect.Response[ReceiptView], error) {
	return s.update(ctx, req.Msg.ReceiptID, storage.ReceiptUpdate{Notes: &req.Msg.Notes})
}

func (s *ReceiptService) update(ctx context.Context, receiptID string, update storage.ReceiptUpdate) (*connect.Response[ReceiptView], error) {
	if receiptID == "" {
		return nil, invalid("receipt_id is required")
	}
	if err := s.store.UpdateReceipt(ctx, receiptID, update); err != nil {
		s.logger.Error("UpdateReceipt failed", "receipt_id", receiptID, "error", err)
		return nil, storeError(err)
	}
	receipt, err := s.store.GetReceipt(ctx, receiptID)
	if err != nil {
		return nil, storeError(err)
	}
	return connect.NewResponse(&ReceiptView{Receipt: receipt, Summary: newSummary(receipt)}), nil
}

// AddBillItem adds one person's amount to a receipt.
func (s *ReceiptService) AddBillItem(ctx context.Context, req *connect.Request[AddBillItemRequest]) (*connect.Response[BillItemResponse], error) {
	name := strings.TrimSpace(req.Msg.PersonName)
	if name == "" {
		return nil, invalid("name and amount are required")
	}
	if req.Msg.Amount.IsNegative() {
		return nil, invalid("amount must not be negative")
	}

	item := &models.BillItem{ReceiptID: req.Msg.ReceiptID, PersonName: name, Amount: req.Msg.Amount}
	if err := s.store.AddBillItem(ctx, item); err != nil {
		s.logger.Error("AddBillItem failed", "receipt_id", req.Msg.ReceiptID, "error", err)
		return nil, storeError(err)
	}
	return connect.NewResponse(&BillItemResponse{Item: item}), nil
}

// DeleteBillItem removes one bill item.
func (s *ReceiptService) DeleteBillItem(ctx context.Context, req *connect.Request[BillItemRequest]) (*connect.Response[Empty], error) {
	if err := s.store.DeleteBillItem(ctx, req.Msg.ItemID); err != nil {
		return nil, storeError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

// ToggleBillItemPaid sets an item's paid flag.
func (s *ReceiptService) ToggleBillItemPaid(ctx context.Context, req *connect.Request[ToggleBillItemPaidRequest]) (*connect.Response[Empty], error) {
	if err := s.store.SetBillItemPaid(ctx, req.Msg.ItemID, req.Msg.Paid); err != nil {
		return nil, storeError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

// BulkAddBillItems imports people and amounts from an uploaded JSON array.
// Parsing is all-or-nothing; rows are then inserted one by one.
func (s *ReceiptService) BulkAddBillItems(ctx context.Context, req *connect.Request[BulkAddBillItemsRequest]) (*connect.Response[BulkAddBillItemsResponse], error) {
	rows, err := ParseBulkItems(req.Msg.Data)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if _, err := s.store.GetReceipt(ctx, req.Msg.ReceiptID); err != nil {
		return nil, storeError(err)
	}

	resp := &BulkAddBillItemsResponse{}
	for _, row := range rows {
		item := &models.BillItem{ReceiptID: req.Msg.ReceiptID, PersonName: row.Name, Amount: row.Amount}
		if err := s.store.AddBillItem(ctx, item); err != nil {
			s.logger.Error("BulkAddBillItems failed", "receipt_id", req.Msg.ReceiptID, "added", resp.Count, "error", err)
			return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("failed to add items: %w", err))
		}
		resp.Items = append(resp.Items, item)
		resp.Count++
	}

	s.logger.Info("Bulk items added", "receipt_id", req.Msg.ReceiptID, "count", resp.Count)
	return connect.NewResponse(resp), nil
}

// ImportSplit saves a computed split as bill items: one new item per person
// carrying the breakdown, never merged with existing items. The explanation
// is optionally appended to the notes.
func (s *ReceiptService) ImportSplit(ctx context.Context, req *connect.Request[ImportSplitRequest]) (*connect.Response[ImportSplitResponse], error) {
	if len(req.Msg.Items) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, ErrNoItems)
	}
	for i, line := range req.Msg.Items {
		if strings.TrimSpace(line.Name) == "" {
			return nil, invalid("item %d has no name", i+1)
		}
		if line.Amount.IsNegative() {
			return nil, invalid("%s has a negative amount", line.Name)
		}
	}

	receipt, err := s.store.GetReceipt(ctx, req.Msg.ReceiptID)
	if err != nil {
		return nil, storeError(err)
	}

	result := models.ResultFromLines(req.Msg.Items, req.Msg.Explanation)
	if err := calculator.Validate(result, calculator.ImpliedAggregate(result)).Err(); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	plan := reconcile.Reconcile(result, receipt.Items, reconcile.Options{
		ReceiptID:         receipt.ID,
		AppendExplanation: req.Msg.AppendExplanation,
		ExistingNotes:     receipt.Notes,
	})
	outcome, err := s.reconciler.Apply(ctx, receipt.ID, plan)

	resp := &ImportSplitResponse{
		Items:          outcome.Inserted,
		NotesUpdated:   outcome.NotesUpdated,
		DuplicateNames: plan.DuplicateNames,
	}
	if err != nil {
		if len(outcome.Inserted) == 0 {
			s.logger.Error("ImportSplit failed", "receipt_id", receipt.ID, "error", err)
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		var insertErr *reconcile.InsertError
		for _, e := range splitJoined(err) {
			if errors.As(e, &insertErr) {
				resp.Failures = append(resp.Failures, insertErr.PersonName)
			}
		}
	}

	s.logger.Info("Split imported",
		"receipt_id", receipt.ID,
		"inserted", len(outcome.Inserted),
		"failed", len(resp.Failures),
		"notes_updated", outcome.NotesUpdated,
	)
	return connect.NewResponse(resp), nil
}

// splitJoined unpacks an errors.Join result.
func splitJoined(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

// ComputeSplit runs the local allocator on an allocation request.
func (s *ReceiptService) ComputeSplit(ctx context.Context, req *connect.Request[ComputeSplitRequest]) (*connect.Response[SplitResponse], error) {
	if len(req.Msg.Allocation) == 0 {
		return nil, invalid("allocation is required")
	}

	result, err := s.local.Compute(ctx, splitter.Request{Instruction: string(req.Msg.Allocation)})
	s.metrics.ObserveSplit("local", result, err)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return connect.NewResponse(newSplitResponse(result)), nil
}

// GeneratePublicLink returns the receipt's share link, creating it once.
func (s *ReceiptService) GeneratePublicLink(ctx context.Context, req *connect.Request[ReceiptRequest]) (*connect.Response[PublicLinkResponse], error) {
	link, err := s.store.GetOrCreatePublicLink(ctx, req.Msg.ReceiptID)
	if err != nil {
		return nil, storeError(err)
	}
	return connect.NewResponse(&PublicLinkResponse{
		LinkID: link.ID,
		URL:    s.publicBaseURL + "/bill/" + link.ID,
	}), nil
}

// GetPublicBill resolves a share link. It needs no session.
func (s *ReceiptService) GetPublicBill(ctx context.Context, req *connect.Request[GetPublicBillRequest]) (*connect.Response[PublicBillResponse], error) {
	if req.Msg.LinkID == "" {
		return nil, invalid("link_id is required")
	}
	receipt, err := s.store.GetReceiptByPublicLink(ctx, req.Msg.LinkID)
	if err != nil {
		return nil, storeError(err)
	}

	// Shared bills show amounts only; notes stay private.
	receipt.Notes = ""
	return connect.NewResponse(&PublicBillResponse{
		Receipt:       receipt,
		Summary:       newSummary(receipt),
		PaymentHandle: s.paymentHandle,
	}), nil
}
