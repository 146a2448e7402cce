package store

import (
	"encoding/json"
	"time"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/xid"
)

// NewFinancialLog snapshots before/after as JSON. Either side may be nil.
func NewFinancialLog(transactionID string, action string, actor string, before *domain.FinancialTransaction, after *domain.FinancialTransaction, at time.Time) domain.FinancialLog {
	return domain.FinancialLog{
		ID:            xid.New("flog"),
		TransactionID: transactionID,
		Action:        action,
		Actor:         actor,
		OldValues:     snapshot(before),
		NewValues:     snapshot(after),
		CreatedAt:     at,
	}
}

func snapshot(tx *domain.FinancialTransaction) json.RawMessage {
	if tx == nil {
		return nil
	}
	raw, err := json.Marshal(tx)
	if err != nil {
		return nil
	}
	return raw
}

// ApplyFinancialPatch returns a copy of tx with the patch fields set.
func ApplyFinancialPatch(tx domain.FinancialTransaction, patch domain.FinancialTransactionPatch, at time.Time) (domain.FinancialTransaction, error) {
	if !tx.Open() {
		return tx, Invalid("financial transaction %s is %s", tx.ID, tx.Status)
	}
	if patch.Description != nil {
		if *patch.Description == "" {
			return tx, Invalid("description is required")
		}
		tx.Description = *patch.Description
	}
	if patch.AmountCents != nil {
		if *patch.AmountCents <= 0 {
			return tx, Invalid("amount must be positive")
		}
		tx.AmountCents = *patch.AmountCents
	}
	if patch.DueDate != nil {
		tx.DueDate = *patch.DueDate
	}
	if patch.CategoryID != nil {
		tx.CategoryID = *patch.CategoryID
	}
	if patch.CostCenterID != nil {
		tx.CostCenterID = *patch.CostCenterID
	}
	tx.UpdatedAt = at
	return tx, nil
}

// DateOf truncates t to midnight UTC.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
