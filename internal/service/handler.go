package service

import (
	"net/http"

	"connectrpc.com/connect"
)

// ReceiptServiceName is the fully-qualified name of the ReceiptService.
const ReceiptServiceName = "receiptsplit.v1.ReceiptService"

// Procedure paths of the ReceiptService.
const (
	CreateReceiptProcedure      = "/" + ReceiptServiceName + "/CreateReceipt"
	GetReceiptProcedure         = "/" + ReceiptServiceName + "/GetReceipt"
	ListReceiptsProcedure       = "/" + ReceiptServiceName + "/ListReceipts"
	DeleteReceiptProcedure      = "/" + ReceiptServiceName + "/DeleteReceipt"
	UpdateReceiptImageProcedure = "/" + ReceiptServiceName + "/UpdateReceiptImage"
	UpdateReceiptDateProcedure  = "/" + ReceiptServiceName + "/UpdateReceiptDate"
	UpdateReceiptNotesProcedure = "/" + ReceiptServiceName + "/UpdateReceiptNotes"
	AddBillItemProcedure        = "/" + ReceiptServiceName + "/AddBillItem"
	DeleteBillItemProcedure     = "/" + ReceiptServiceName + "/DeleteBillItem"
	ToggleBillItemPaidProcedure = "/" + ReceiptServiceName + "/ToggleBillItemPaid"
	BulkAddBillItemsProcedure   = "/" + ReceiptServiceName + "/BulkAddBillItems"
	ImportSplitProcedure        = "/" + ReceiptServiceName + "/ImportSplit"
	ComputeSplitProcedure       = "/" + ReceiptServiceName + "/ComputeSplit"
	GeneratePublicLinkProcedure = "/" + ReceiptServiceName + "/GeneratePublicLink"
	GetPublicBillProcedure      = "/" + ReceiptServiceName + "/GetPublicBill"
)

// PublicProcedures need no session.
var PublicProcedures = []string{GetPublicBillProcedure}

// NewReceiptServiceHandler builds an HTTP handler for every ReceiptService
// procedure. It returns the path to mount the handler on. The JSON codec is
// always installed.
func NewReceiptServiceHandler(svc *ReceiptService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)

	mux := http.NewServeMux()
	mux.Handle(CreateReceiptProcedure, connect.NewUnaryHandler(CreateReceiptProcedure, svc.CreateReceipt, opts...))
	mux.Handle(GetReceiptProcedure, connect.NewUnaryHandler(GetReceiptProcedure, svc.GetReceipt, opts...))
	mux.Handle(ListReceiptsProcedure, connect.NewUnaryHandler(ListReceiptsProcedure, svc.ListReceipts, opts...))
	mux.Handle(DeleteReceiptProcedure, connect.NewUnaryHandler(DeleteReceiptProcedure, svc.DeleteReceipt, opts...))
	mux.Handle(UpdateReceiptImageProcedure, connect.NewUnaryHandler(UpdateReceiptImageProcedure, svc.UpdateReceiptImage, opts...))
	mux.Handle(UpdateReceiptDateProcedure, connect.NewUnaryHandler(UpdateReceiptDateProcedure, svc.UpdateReceiptDate, opts...))
	mux.Handle(UpdateReceiptNotesProcedure, connect.NewUnaryHandler(UpdateReceiptNotesProcedure, svc.UpdateReceiptNotes, opts...))
	mux.Handle(AddBillItemProcedure, connect.NewUnaryHandler(AddBillItemProcedure, svc.AddBillItem, opts...))
	mux.Handle(DeleteBillItemProcedure, connect.NewUnaryHandler(DeleteBillItemProcedure, svc.DeleteBillItem, opts...))
	mux.Handle(ToggleBillItemPaidProcedure, connect.NewUnaryHandler(ToggleBillItemPaidProcedure, svc.ToggleBillItemPaid, opts...))
	mux.Handle(BulkAddBillItemsProcedure, connect.NewUnaryHandler(BulkAddBillItemsProcedure, svc.BulkAddBillItems, opts...))
	mux.Handle(ImportSplitProcedure, connect.NewUnaryHandler(ImportSplitProcedure, svc.ImportSplit, opts...))
	mux.Handle(ComputeSplitProcedure, connect.NewUnaryHandler(ComputeSplitProcedure, svc.ComputeSplit, opts...))
	mux.Handle(GeneratePublicLinkProcedure, connect.NewUnaryHandler(GeneratePublicLinkProcedure, svc.GeneratePublicLink, opts...))
	mux.Handle(GetPublicBillProcedure, connect.NewUnaryHandler(GetPublicBillProcedure, svc.GetPublicBill, opts...))

	return "/" + ReceiptServiceName + "/", mux
}
