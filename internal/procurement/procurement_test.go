package procurement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/store"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(domain.POPending, domain.POApproved))
	assert.True(t, CanTransition(domain.POPending, domain.POReceived))
	assert.True(t, CanTransition(domain.POOrdered, domain.POCancelled))
	assert.False(t, CanTransition(domain.POOrdered, domain.POApproved))
	assert.False(t, CanTransition(domain.POReceived, domain.POCancelled))
	assert.False(t, CanTransition(domain.POCancelled, domain.POPending))
	assert.False(t, CanTransition(domain.POPending, "shipped"))
}

func TestScoreDeltaByDelay(t *testing.T) {
	expected := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	delta, kind := ScoreDelta(DelayDays(expected, expected.Add(-48*time.Hour)))
	assert.Equal(t, 5, delta)
	assert.Equal(t, domain.EventOnTimeDelivery, kind)

	delta, kind = ScoreDelta(DelayDays(expected, expected.Add(3*time.Hour)))
	assert.Equal(t, -2, delta, "a partial day counts as one day late")
	assert.Equal(t, domain.EventLateDelivery, kind)

	delta, _ = ScoreDelta(DelayDays(expected, expected.AddDate(0, 0, 4)))
	assert.Equal(t, -5, delta)
}

func TestReliabilityEventClampsScore(t *testing.T) {
	expected := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	po := domain.PurchaseOrder{ID: "po-1", SupplierID: "sup-1", OrderNumber: "PO-1", ExpectedDate: &expected}

	event, score := ReliabilityEvent(po, 98, expected)
	require.NotNil(t, event)
	assert.Equal(t, 100, score)
	assert.Equal(t, 2, event.ScoreChange)

	event, score = ReliabilityEvent(po, 3, expected.AddDate(0, 0, 10))
	require.NotNil(t, event)
	assert.Equal(t, 0, score)
	assert.Equal(t, -3, event.ScoreChange)
	assert.Equal(t, domain.EventLateDelivery, event.EventType)

	po.ExpectedDate = nil
	event, score = ReliabilityEvent(po, 50, expected)
	assert.Nil(t, event)
	assert.Equal(t, 50, score)
}

func TestOrderStatusAfterReceipt(t *testing.T) {
	po := domain.PurchaseOrder{Status: domain.POOrdered, Items: []domain.PurchaseOrderItem{
		{Quantity: 5, ReceivedQuantity: 5},
		{Quantity: 3},
	}}
	assert.Equal(t, domain.POPartial, OrderStatusAfterReceipt(po))

	po.Items[1].ReceivedQuantity = 3
	assert.Equal(t, domain.POReceived, OrderStatusAfterReceipt(po))

	po.Items[0].ReceivedQuantity, po.Items[1].ReceivedQuantity = 0, 0
	assert.Equal(t, domain.POOrdered, OrderStatusAfterReceipt(po))

	assert.Equal(t, domain.POItemPartial, ItemStatus(domain.PurchaseOrderItem{Quantity: 4, ReceivedQuantity: 1}))
}

func orderFixture() domain.PurchaseOrder {
	expected := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	return domain.PurchaseOrder{
		ID: "po-1", SupplierID: "sup-1", OrderNumber: "PO-1", Status: domain.POOrdered, ExpectedDate: &expected,
		Items: []domain.PurchaseOrderItem{
			{ID: "i-1", ProductID: "p-1", Quantity: 10, UnitCostCents: 150, Status: domain.POItemPending},
			{ID: "i-2", ProductID: "p-2", Quantity: 4, UnitCostCents: 900, ReceivedQuantity: 1, Status: domain.POItemPartial},
		},
	}
}

func TestTransitionToReceivedStocksOutstanding(t *testing.T) {
	po := orderFixture()
	at := po.ExpectedDate.AddDate(0, 0, 2)

	out, err := Transition(po, domain.POReceived, 90, at)
	require.NoError(t, err)

	require.Len(t, out.Receipts, 2)
	assert.Equal(t, 10, out.Receipts[0].Quantity)
	assert.Equal(t, 3, out.Receipts[1].Quantity)
	assert.True(t, out.Receipts[1].SetCostPrice)
	assert.Equal(t, domain.POReceived, out.Order.Status)
	require.NotNil(t, out.Event)
	assert.Equal(t, -2, out.Event.ScoreChange)
	assert.Equal(t, 88, out.Score)
	assert.Equal(t, 1, po.Items[1].ReceivedQuantity, "input order must not be mutated")
}

func TestTransitionRejectsBackwardMove(t *testing.T) {
	_, err := Transition(orderFixture(), domain.POPending, 100, time.Now())
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)
}

func TestReceiveItemPartialThenComplete(t *testing.T) {
	po := orderFixture()
	at := po.ExpectedDate.Add(-time.Hour)

	out, err := Receive(po, "i-1", 6, 100, at)
	require.NoError(t, err)
	require.Len(t, out.Receipts, 1)
	assert.Equal(t, 6, out.Receipts[0].Quantity)
	assert.Equal(t, domain.POPartial, out.Order.Status)
	assert.Nil(t, out.Event)

	out, err = Receive(out.Order, "i-1", 10, 100, at)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Receipts[0].Quantity)

	out, err = Receive(out.Order, "i-2", 4, 97, at)
	require.NoError(t, err)
	assert.Equal(t, domain.POReceived, out.Order.Status)
	require.NotNil(t, out.Event)
	assert.Equal(t, domain.EventOnTimeDelivery, out.Event.EventType)
	assert.Equal(t, 100, out.Score)

	_, err = Receive(out.Order, "i-2", 4, 100, at)
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)
}

func TestReceiveItemValidatesQuantity(t *testing.T) {
	po := orderFixture()

	_, err := Receive(po, "i-2", 0, 100, time.Now())
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)

	_, err = Receive(po, "i-1", 11, 100, time.Now())
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)

	_, err = Receive(po, "missing", 1, 100, time.Now())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestNewOrderComputesTotals(t *testing.T) {
	now := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	po, err := NewOrder(domain.PurchaseOrder{SupplierID: "sup-1", Items: []domain.PurchaseOrderItem{
		{ProductID: "p-1", Quantity: 3, UnitCostCents: 250},
		{ProductID: "p-2", Quantity: 1, UnitCostCents: 1000, ReceivedQuantity: 1},
	}}, now)
	require.NoError(t, err)

	assert.Equal(t, int64(1750), po.TotalCents)
	assert.Equal(t, domain.POPending, po.Status)
	assert.Zero(t, po.Items[1].ReceivedQuantity)
	assert.Contains(t, po.OrderNumber, "PO-20250115-")
	assert.NotEmpty(t, po.Items[0].ID)

	_, err = NewOrder(domain.PurchaseOrder{SupplierID: "sup-1"}, now)
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)

	placed := time.Date(2024, 12, 30, 18, 0, 0, 0, time.UTC)
	dated, err := NewOrder(domain.PurchaseOrder{SupplierID: "sup-1", CreatedAt: placed, Items: []domain.PurchaseOrderItem{
		{ProductID: "p-1", Quantity: 1, UnitCostCents: 100},
	}}, now)
	require.NoError(t, err)
	assert.True(t, placed.Equal(dated.CreatedAt))
	assert.True(t, placed.Equal(dated.OrderDate))
	assert.Contains(t, dated.OrderNumber, "PO-20241230-")

	_, err = NewOrder(domain.PurchaseOrder{SupplierID: "sup-1", Items: []domain.PurchaseOrderItem{{ProductID: "p", Quantity: 0}}}, now)
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)
}
