package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/receiptsplit/internal/auth"
	"github.com/mmynk/receiptsplit/internal/blob"
	"github.com/mmynk/receiptsplit/internal/calculator"
	"github.com/mmynk/receiptsplit/internal/middleware"
	"github.com/mmynk/receiptsplit/internal/models"
	"github.com/mmynk/receiptsplit/internal/reconcile"
	"github.com/mmynk/receiptsplit/internal/storage/sqlite"
)

// testAuthInterceptor returns a Connect interceptor that marks every call as
// authenticated.
func testAuthInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			return next(middleware.WithSession(ctx, &auth.Session{ID: "test-session"}), req)
		}
	}
}

// fakeImages records deletions and hands out predictable uploads.
type fakeImages struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakeImages) PresignUpload(ctx context.Context, filename, contentType string) (*blob.Upload, error) {
	return &blob.Upload{
		SignedURL: "https://bucket.example.com/upload/" + filename + "?X-Amz-Expires=60",
		Path:      filename,
		PublicURL: "https://cdn.example.com/" + filename,
	}, nil
}

func (f *fakeImages) Delete(ctx context.Context, urlOrKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, urlOrKey)
	return nil
}

type testServer struct {
	url    string
	images *fakeImages
}

// setupTestServer creates a test server backed by a temporary SQLite database.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	images := &fakeImages{}
	svc := NewReceiptService(store, Options{
		Images:        images,
		PublicBaseURL: "https://split.example.com/",
		PaymentHandle: "5551234567",
	})
	path, handler := NewReceiptServiceHandler(svc, connect.WithInterceptors(testAuthInterceptor()))

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testServer{url: server.URL, images: images}
}

func call[Req, Res any](t *testing.T, ts *testServer, procedure string, msg *Req) (*Res, error) {
	t.Helper()
	client := connect.NewClient[Req, Res](http.DefaultClient, ts.url+procedure, WithJSON())
	resp, err := client.CallUnary(context.Background(), connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func mustCall[Req, Res any](t *testing.T, ts *testServer, procedure string, msg *Req) *Res {
	t.Helper()
	res, err := call[Req, Res](t, ts, procedure, msg)
	if err != nil {
		t.Fatalf("%s failed: %v", procedure, err)
	}
	return res
}

func createReceipt(t *testing.T, ts *testServer, name, imageURL string) *models.Receipt {
	t.Helper()
	view := mustCall[CreateReceiptRequest, ReceiptView](t, ts, CreateReceiptProcedure, &CreateReceiptRequest{
		Name:     name,
		Date:     "2026-01-02",
		ImageURL: imageURL,
	})
	return view.Receipt
}

func assertCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected %v error, got nil", want)
	}
	if got := connect.CodeOf(err); got != want {
		t.Errorf("Expected code %v, got %v (%v)", want, got, err)
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCreateReceipt_Validation(t *testing.T) {
	ts := setupTestServer(t)

	_, err := call[CreateReceiptRequest, ReceiptView](t, ts, CreateReceiptProcedure, &CreateReceiptRequest{Date: "2026-01-02"})
	assertCode(t, err, connect.CodeInvalidArgument)

	_, err = call[CreateReceiptRequest, ReceiptView](t, ts, CreateReceiptProcedure, &CreateReceiptRequest{Name: "Dinner"})
	assertCode(t, err, connect.CodeInvalidArgument)

	_, err = call[CreateReceiptRequest, ReceiptView](t, ts, CreateReceiptProcedure, &CreateReceiptRequest{Name: "Dinner", Date: "01/02/2026"})
	assertCode(t, err, connect.CodeInvalidArgument)
}

func TestReceiptLifecycle(t *testing.T) {
	ts := setupTestServer(t)
	receipt := createReceipt(t, ts, "Dinner", "")

	alice := mustCall[AddBillItemRequest, BillItemResponse](t, ts, AddBillItemProcedure, &AddBillItemRequest{
		ReceiptID: receipt.ID, PersonName: " Alice ", Amount: dec("73.80"),
	})
	if alice.Item.PersonName != "Alice" {
		t.Errorf("Expected trimmed name, got %q", alice.Item.PersonName)
	}
	mustCall[AddBillItemRequest, BillItemResponse](t, ts, AddBillItemProcedure, &AddBillItemRequest{
		ReceiptID: receipt.ID, PersonName: "Bob", Amount: dec("49.20"),
	})

	_, err := call[AddBillItemRequest, BillItemResponse](t, ts, AddBillItemProcedure, &AddBillItemRequest{
		ReceiptID: receipt.ID, PersonName: "Carol", Amount: dec("-1"),
	})
	assertCode(t, err, connect.CodeInvalidArgument)

	_, err = call[AddBillItemRequest, BillItemResponse](t, ts, AddBillItemProcedure, &AddBillItemRequest{
		ReceiptID: "missing", PersonName: "Carol", Amount: dec("1"),
	})
	assertCode(t, err, connect.CodeNotFound)

	mustCall[ToggleBillItemPaidRequest, Empty](t, ts, ToggleBillItemPaidProcedure, &ToggleBillItemPaidRequest{ItemID: alice.Item.ID, Paid: true})

	view := mustCall[ReceiptRequest, ReceiptView](t, ts, GetReceiptProcedure, &ReceiptRequest{ReceiptID: receipt.ID})
	if !view.Summary.Total.Equal(dec("123.00")) {
		t.Errorf("Expected total 123.00, got %s", view.Summary.Total)
	}
	if !view.Summary.Outstanding.Equal(dec("49.20")) {
		t.Errorf("Expected outstanding 49.20, got %s", view.Summary.Outstanding)
	}
	if view.Summary.Description != "Dinner - $123.00 split between 2 people on Jan 2, 2026" {
		t.Errorf("Unexpected description %q", view.Summary.Description)
	}

	mustCall[UpdateReceiptNotesRequest, ReceiptView](t, ts, UpdateReceiptNotesProcedure, &UpdateReceiptNotesRequest{ReceiptID: receipt.ID, Notes: "birthday"})
	updated := mustCall[UpdateReceiptDateRequest, ReceiptView](t, ts, UpdateReceiptDateProcedure, &UpdateReceiptDateRequest{ReceiptID: receipt.ID, Date: "2026-01-03"})
	if updated.Receipt.Date != "2026-01-03" || updated.Receipt.Notes != "birthday" {
		t.Errorf("Unexpected receipt after updates: %+v", updated.Receipt)
	}

	_, err = call[UpdateReceiptDateRequest, ReceiptView](t, ts, UpdateReceiptDateProcedure, &UpdateReceiptDateRequest{ReceiptID: receipt.ID, Date: "tomorrow"})
	assertCode(t, err, connect.CodeInvalidArgument)

	mustCall[BillItemRequest, Empty](t, ts, DeleteBillItemProcedure, &BillItemRequest{ItemID: alice.Item.ID})
	_, err = call[BillItemRequest, Empty](t, ts, DeleteBillItemProcedure, &BillItemRequest{ItemID: alice.Item.ID})
	assertCode(t, err, connect.CodeNotFound)

	list := mustCall[Empty, ListReceiptsResponse](t, ts, ListReceiptsProcedure, &Empty{})
	if len(list.Receipts) != 1 || len(list.Receipts[0].Receipt.Items) != 1 {
		t.Fatalf("Expected one receipt with one item, got %+v", list.Receipts)
	}
}

func TestReceiptImages(t *testing.T) {
	ts := setupTestServer(t)
	receipt := createReceipt(t, ts, "Lunch", "https://cdn.example.com/old.jpg")

	view := mustCall[UpdateReceiptImageRequest, ReceiptView](t, ts, UpdateReceiptImageProcedure, &UpdateReceiptImageRequest{
		ReceiptID: receipt.ID, ImageURL: "https://cdn.example.com/new.jpg",
	})
	if view.Receipt.ImageURL != "https://cdn.example.com/new.jpg" {
		t.Errorf("Expected new image URL, got %q", view.Receipt.ImageURL)
	}

	mustCall[ReceiptRequest, Empty](t, ts, DeleteReceiptProcedure, &ReceiptRequest{ReceiptID: receipt.ID})

	want := []string{"https://cdn.example.com/old.jpg", "https://cdn.example.com/new.jpg"}
	if strings.Join(ts.images.deleted, ",") != strings.Join(want, ",") {
		t.Errorf("Expected deletions %v, got %v", want, ts.images.deleted)
	}

	_, err := call[ReceiptRequest, ReceiptView](t, ts, GetReceiptProcedure, &ReceiptRequest{ReceiptID: receipt.ID})
	assertCode(t, err, connect.CodeNotFound)
}

func splitLines() []models.SplitLine {
	return []models.SplitLine{
		{
			Name:   "Alice",
			Amount: dec("73.80"),
			Breakdown: &models.Breakdown{
				Subtotal: dec("60"), TaxShare: dec("4.80"), TipShare: dec("9.00"),
			},
		},
		{Name: "Bob", Amount: dec("49.20")},
	}
}

func TestImportSplit(t *testing.T) {
	ts := setupTestServer(t)
	receipt := createReceipt(t, ts, "Dinner", "")
	mustCall[UpdateReceiptNotesRequest, ReceiptView](t, ts, UpdateReceiptNotesProcedure, &UpdateReceiptNotesRequest{ReceiptID: receipt.ID, Notes: "Table 4"})

	first := mustCall[ImportSplitRequest, ImportSplitResponse](t, ts, ImportSplitProcedure, &ImportSplitRequest{
		ReceiptID:         receipt.ID,
		Items:             splitLines(),
		Explanation:       "Tax and tip split by subtotal.",
		AppendExplanation: true,
	})
	if len(first.Items) != 2 || !first.NotesUpdated || len(first.DuplicateNames) != 0 {
		t.Fatalf("Unexpected first import: %+v", first)
	}

	second := mustCall[ImportSplitRequest, ImportSplitResponse](t, ts, ImportSplitProcedure, &ImportSplitRequest{
		ReceiptID: receipt.ID,
		Items:     splitLines(),
	})
	if len(second.Items) != 2 || second.NotesUpdated {
		t.Fatalf("Unexpected second import: %+v", second)
	}
	if strings.Join(second.DuplicateNames, ",") != "Alice,Bob" {
		t.Errorf("Expected duplicates Alice,Bob, got %v", second.DuplicateNames)
	}

	view := mustCall[ReceiptRequest, ReceiptView](t, ts, GetReceiptProcedure, &ReceiptRequest{ReceiptID: receipt.ID})
	if len(view.Receipt.Items) != 4 {
		t.Fatalf("Expected 4 separate items after two imports, got %d", len(view.Receipt.Items))
	}
	if view.Receipt.Items[0].Breakdown == nil || !view.Receipt.Items[0].Breakdown.TipShare.Equal(dec("9")) {
		t.Errorf("Expected stored breakdown for Alice, got %+v", view.Receipt.Items[0].Breakdown)
	}
	if view.Receipt.Items[1].Breakdown != nil {
		t.Errorf("Expected no breakdown for Bob, got %+v", view.Receipt.Items[1].Breakdown)
	}
	wantNotes := "Table 4\n\n" + reconcile.NotesMarker + "\nTax and tip split by subtotal."
	if view.Receipt.Notes != wantNotes {
		t.Errorf("Expected notes %q, got %q", wantNotes, view.Receipt.Notes)
	}
	if !view.Summary.Total.Equal(dec("246.00")) || view.Summary.PeopleCount != 2 {
		t.Errorf("Unexpected summary: %+v", view.Summary)
	}
}

func TestImportSplit_Invalid(t *testing.T) {
	ts := setupTestServer(t)
	receipt := createReceipt(t, ts, "Dinner", "")

	tests := []struct {
		name  string
		items []models.SplitLine
		code  connect.Code
	}{
		{name: "empty", items: nil, code: connect.CodeInvalidArgument},
		{name: "blank name", items: []models.SplitLine{{Name: " ", Amount: dec("1")}}, code: connect.CodeInvalidArgument},
		{name: "negative", items: []models.SplitLine{{Name: "Al", Amount: dec("-1")}}, code: connect.CodeInvalidArgument},
		{
			name: "unknown shared member",
			items: []models.SplitLine{{
				Name: "Al", Amount: dec("5"),
				Breakdown: &models.Breakdown{Subtotal: dec("5"), SharedItems: nil},
			}, {
				Name: "Bo", Amount: dec("5"),
				Breakdown: &models.Breakdown{Subtotal: dec("5"), SharedItems: []calculator.SharedItem{{Description: "Fries", Amount: dec("5"), SplitWith: []string{"Bo", "Zed"}}}},
			}},
			code: connect.CodeInvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call[ImportSplitRequest, ImportSplitResponse](t, ts, ImportSplitProcedure, &ImportSplitRequest{ReceiptID: receipt.ID, Items: tt.items})
			assertCode(t, err, tt.code)
		})
	}

	_, err := call[ImportSplitRequest, ImportSplitResponse](t, ts, ImportSplitProcedure, &ImportSplitRequest{ReceiptID: "missing", Items: splitLines()})
	assertCode(t, err, connect.CodeNotFound)
}

func TestBulkAddBillItems(t *testing.T) {
	ts := setupTestServer(t)
	receipt := createReceipt(t, ts, "Brunch", "")

	data := json.RawMessage(`[{"name": "Ann", "amount": 12.5}, {"person_name": "Ben", "value": "7.25"}, {"person": "Cy", "total": 3}]`)
	resp := mustCall[BulkAddBillItemsRequest, BulkAddBillItemsResponse](t, ts, BulkAddBillItemsProcedure, &BulkAddBillItemsRequest{ReceiptID: receipt.ID, Data: data})
	if resp.Count != 3 {
		t.Fatalf("Expected 3 items, got %d", resp.Count)
	}
	if resp.Items[1].PersonName != "Ben" || !resp.Items[1].Amount.Equal(dec("7.25")) {
		t.Errorf("Unexpected second item: %+v", resp.Items[1])
	}

	_, err := call[BulkAddBillItemsRequest, BulkAddBillItemsResponse](t, ts, BulkAddBillItemsProcedure, &BulkAddBillItemsRequest{
		ReceiptID: receipt.ID, Data: json.RawMessage(`[{"name": "Ann", "amount": 1}, {"name": "Ben"}]`),
	})
	assertCode(t, err, connect.CodeInvalidArgument)

	view := mustCall[ReceiptRequest, ReceiptView](t, ts, GetReceiptProcedure, &ReceiptRequest{ReceiptID: receipt.ID})
	if len(view.Receipt.Items) != 3 {
		t.Errorf("Expected a failed import to add nothing, got %d items", len(view.Receipt.Items))
	}
}

func TestComputeSplit(t *testing.T) {
	ts := setupTestServer(t)

	allocation := json.RawMessage(`{
		"people": [
			{"name": "Alice", "items": [{"description": "Steak", "amount": 60}]},
			{"name": "Bob", "items": [{"description": "Pasta", "amount": 40}]}
		],
		"receipt": {"subtotal": 100, "tax": 8, "tip": 15}
	}`)
	resp := mustCall[ComputeSplitRequest, SplitResponse](t, ts, ComputeSplitProcedure, &ComputeSplitRequest{Allocation: allocation})
	if len(resp.Items) != 2 {
		t.Fatalf("Expected 2 people, got %d", len(resp.Items))
	}
	if !resp.Items[0].Amount.Equal(dec("73.80")) || !resp.Items[1].Amount.Equal(dec("49.20")) {
		t.Errorf("Unexpected totals: %s, %s", resp.Items[0].Amount, resp.Items[1].Amount)
	}
	if len(resp.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %+v", resp.Warnings)
	}
	if resp.Explanation == "" {
		t.Error("Expected an explanation")
	}

	_, err := call[ComputeSplitRequest, SplitResponse](t, ts, ComputeSplitProcedure, &ComputeSplitRequest{
		Allocation: json.RawMessage(`{"people": [{"name": "Alice", "items": [{"description": "Steak", "amount": -1}]}], "receipt": {"subtotal": 0, "tax": 0}}`),
	})
	assertCode(t, err, connect.CodeInvalidArgument)
}

func TestPublicLinks(t *testing.T) {
	ts := setupTestServer(t)
	receipt := createReceipt(t, ts, "Dinner", "")
	mustCall[UpdateReceiptNotesRequest, ReceiptView](t, ts, UpdateReceiptNotesProcedure, &UpdateReceiptNotesRequest{ReceiptID: receipt.ID, Notes: "private"})
	mustCall[AddBillItemRequest, BillItemResponse](t, ts, AddBillItemProcedure, &AddBillItemRequest{ReceiptID: receipt.ID, PersonName: "Alice", Amount: dec("20")})

	first := mustCall[ReceiptRequest, PublicLinkResponse](t, ts, GeneratePublicLinkProcedure, &ReceiptRequest{ReceiptID: receipt.ID})
	second := mustCall[ReceiptRequest, PublicLinkResponse](t, ts, GeneratePublicLinkProcedure, &ReceiptRequest{ReceiptID: receipt.ID})
	if first.LinkID != second.LinkID {
		t.Errorf("Expected the same link twice, got %s and %s", first.LinkID, second.LinkID)
	}
	if first.URL != "https://split.example.com/bill/"+first.LinkID {
		t.Errorf("Unexpected share URL %q", first.URL)
	}

	bill := mustCall[GetPublicBillRequest, PublicBillResponse](t, ts, GetPublicBillProcedure, &GetPublicBillRequest{LinkID: first.LinkID})
	if bill.PaymentHandle != "5551234567" {
		t.Errorf("Expected payment handle, got %q", bill.PaymentHandle)
	}
	if bill.Receipt.Notes != "" {
		t.Errorf("Expected notes hidden on public bill, got %q", bill.Receipt.Notes)
	}
	if !bill.Summary.Total.Equal(dec("20")) {
		t.Errorf("Expected total 20, got %s", bill.Summary.Total)
	}

	_, err := call[GetPublicBillRequest, PublicBillResponse](t, ts, GetPublicBillProcedure, &GetPublicBillRequest{LinkID: "missing"})
	assertCode(t, err, connect.CodeNotFound)
}

func TestSplitJoined(t *testing.T) {
	a, b := errors.New("a"), errors.New("b")
	if got := splitJoined(errors.Join(a, b)); len(got) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(got))
	}
	if got := splitJoined(a); len(got) != 1 {
		t.Errorf("Expected 1 error, got %d", len(got))
	}
}
