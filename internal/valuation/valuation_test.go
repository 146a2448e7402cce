package valuation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/store"
)

func apply(t *testing.T, p domain.Product, typ string, qty int, cost int64) domain.Product {
	t.Helper()
	next, row, err := Apply(p, domain.StockMovement{ProductID: p.ID, Type: typ, Quantity: qty, UnitCostCents: cost})
	require.NoError(t, err)
	assert.Equal(t, typ, row.Type)
	assert.Equal(t, qty, row.Quantity)
	assert.Equal(t, next.AverageCostCents*int64(next.Stock), next.InvestedValueCents)
	return next
}

func TestEntryThenSale(t *testing.T) {
	p := domain.Product{ID: "P"}

	p = apply(t, p, domain.MovementEntry, 10, 200)
	assert.Equal(t, 10, p.Stock)
	assert.Equal(t, int64(200), p.AverageCostCents)

	p = apply(t, p, domain.MovementSale, 4, 0)
	assert.Equal(t, 6, p.Stock)
	assert.Equal(t, int64(200), p.AverageCostCents)
	assert.Equal(t, int64(1200), p.InvestedValueCents)
	assert.NotNil(t, p.LastSaleAt)
}

func TestWeightedAverageOfTwoEntries(t *testing.T) {
	p := domain.Product{ID: "P"}
	p = apply(t, p, domain.MovementEntry, 3, 100)
	p = apply(t, p, domain.MovementEntry, 1, 200)

	// (3*100 + 1*200) / 4 = 125
	assert.Equal(t, int64(125), p.AverageCostCents)
	assert.Equal(t, int64(500), p.InvestedValueCents)
}

func TestEntryAfterStockHitsZeroRedefinesAverage(t *testing.T) {
	p := domain.Product{ID: "P"}
	p = apply(t, p, domain.MovementEntry, 2, 100)
	p = apply(t, p, domain.MovementLoss, 2, 0)
	p = apply(t, p, domain.MovementEntry, 5, 340)

	assert.Equal(t, int64(340), p.AverageCostCents)
}

func TestSaleBeyondStockFailsWithoutMutation(t *testing.T) {
	p := domain.Product{ID: "X", Stock: 3, AverageCostCents: 100, InvestedValueCents: 300}

	next, _, err := Apply(p, domain.StockMovement{Type: domain.MovementSale, Quantity: 5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrInsufficientStock))
	assert.Equal(t, "insufficient stock for product X: requested 5, available 3", err.Error())
	assert.Equal(t, p, next)
}

func TestReturnUsesPriorAverageCost(t *testing.T) {
	p := domain.Product{ID: "P"}
	p = apply(t, p, domain.MovementEntry, 4, 250)
	p = apply(t, p, domain.MovementSale, 4, 0)

	next, row, err := Apply(p, domain.StockMovement{Type: domain.MovementReturn, Quantity: 1, UnitCostCents: 999})
	require.NoError(t, err)
	assert.Equal(t, int64(250), row.UnitCostCents)
	assert.Equal(t, int64(250), next.AverageCostCents)
	assert.Equal(t, 1, next.Stock)
}

func TestStockConservationAcrossSequence(t *testing.T) {
	p := domain.Product{ID: "P"}
	moves := []struct {
		typ string
		qty int
	}{
		{domain.MovementEntry, 10}, {domain.MovementSale, 3}, {domain.MovementLoss, 1},
		{domain.MovementReturn, 2}, {domain.MovementEntry, 5}, {domain.MovementSale, 13},
		{domain.MovementSale, 1},
	}
	in, out := 0, 0
	for _, m := range moves {
		next, _, err := Apply(p, domain.StockMovement{Type: m.typ, Quantity: m.qty, UnitCostCents: 100, At: time.Now()})
		if err != nil {
			require.ErrorIs(t, err, store.ErrInsufficientStock)
			continue
		}
		p = next
		if m.typ == domain.MovementEntry || m.typ == domain.MovementReturn {
			in += m.qty
		} else {
			out += m.qty
		}
		require.GreaterOrEqual(t, p.Stock, 0)
	}
	assert.Equal(t, in-out, p.Stock)
	assert.Equal(t, 0, p.Stock)
}

func TestApplyRejectsInvalidInput(t *testing.T) {
	_, _, err := Apply(domain.Product{}, domain.StockMovement{Type: domain.MovementEntry, Quantity: 0})
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)

	_, _, err = Apply(domain.Product{}, domain.StockMovement{Type: domain.MovementEntry, Quantity: 1, UnitCostCents: -1})
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)

	_, _, err = Apply(domain.Product{}, domain.StockMovement{Type: "transfer", Quantity: 1})
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)
}
