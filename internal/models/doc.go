// Package models defines the persisted domain models for receiptsplit.
//
// # Models
//
//   - Receipt: a shared bill, identified by a date and a display name
//   - BillItem: one amount owed by one person on a receipt
//   - Breakdown: how a BillItem amount was computed, kept for display
//   - PublicLink: an unauthenticated share link for a receipt
//
// People are identified by name strings only. Several BillItems on one
// receipt may carry the same name; they are separate rows, never merged.
//
// # Amounts
//
// Every amount is a decimal.Decimal rounded to cents. Breakdown uses the
// same JSON field names as the stored rows (items, subtotal, tax_share,
// fee_share, tip_share, shared_items) so existing data stays readable.
package models
