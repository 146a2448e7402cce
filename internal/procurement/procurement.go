// Package procurement holds purchase-order transition rules and the supplier
// reliability score adjustment shared by every store.
package procurement

import (
	"fmt"
	"math"
	"time"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/store"
	"caixa/backend/internal/xid"
)

const (
	MaxScore = 100
	MinScore = 0
)

var statusRank = map[string]int{
	domain.POPending:  0,
	domain.POApproved: 1,
	domain.POOrdered:  2,
	domain.POPartial:  3,
	domain.POReceived: 4,
}

func ValidStatus(status string) bool {
	if status == domain.POCancelled {
		return true
	}
	_, ok := statusRank[status]
	return ok
}

// CanTransition allows forward moves and cancellation of unreceived orders.
func CanTransition(from string, to string) bool {
	if from == domain.POReceived || from == domain.POCancelled {
		return false
	}
	if to == domain.POCancelled {
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	return ok && toRank > fromRank
}

// DelayDays rounds the delivery delay up to whole days; early deliveries are negative or zero.
func DelayDays(expected time.Time, received time.Time) int {
	return int(math.Ceil(received.Sub(expected).Hours() / 24))
}

// ScoreDelta maps a delivery delay to a reliability adjustment.
func ScoreDelta(days int) (int, string) {
	switch {
	case days <= 0:
		return 5, domain.EventOnTimeDelivery
	case days <= 3:
		return -2, domain.EventLateDelivery
	default:
		return -5, domain.EventLateDelivery
	}
}

func ClampScore(score int) int {
	if score > MaxScore {
		return MaxScore
	}
	if score < MinScore {
		return MinScore
	}
	return score
}

// ReliabilityEvent computes the event for an order arriving at receivedAt.
// It returns nil when the order carries no expected date. The returned value
// is the clamped new score; ScoreChange records the applied difference.
func ReliabilityEvent(po domain.PurchaseOrder, currentScore int, receivedAt time.Time) (*domain.ReliabilityEvent, int) {
	if po.ExpectedDate == nil {
		return nil, currentScore
	}
	days := DelayDays(*po.ExpectedDate, receivedAt)
	delta, eventType := ScoreDelta(days)
	next := ClampScore(currentScore + delta)
	description := fmt.Sprintf("order %s delivered on time", po.OrderNumber)
	if days > 0 {
		description = fmt.Sprintf("order %s delivered %d day(s) late", po.OrderNumber, days)
	}
	return &domain.ReliabilityEvent{
		ID:          xid.New("rel"),
		SupplierID:  po.SupplierID,
		OrderID:     po.ID,
		EventType:   eventType,
		ScoreChange: next - currentScore,
		Description: description,
		CreatedAt:   receivedAt,
	}, next
}

func ItemStatus(item domain.PurchaseOrderItem) string {
	switch {
	case item.ReceivedQuantity >= item.Quantity:
		return domain.POItemReceived
	case item.ReceivedQuantity > 0:
		return domain.POItemPartial
	default:
		return domain.POItemPending
	}
}

// OrderStatusAfterReceipt derives the order status once item quantities changed.
func OrderStatusAfterReceipt(po domain.PurchaseOrder) string {
	all, some := true, false
	for _, item := range po.Items {
		if item.ReceivedQuantity < item.Quantity {
			all = false
		}
		if item.ReceivedQuantity > 0 {
			some = true
		}
	}
	switch {
	case all:
		return domain.POReceived
	case some:
		return domain.POPartial
	default:
		return po.Status
	}
}

// OrderNumber builds a human-readable number such as PO-20250115-1A2B3C.
func OrderNumber(at time.Time, id string) string {
	suffix := id
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return fmt.Sprintf("PO-%s-%s", at.UTC().Format("20060102"), suffix)
}

// Outcome is the state a store persists after a purchase-order change.
type Outcome struct {
	Order    domain.PurchaseOrder
	Receipts []domain.StockMovement
	Event    *domain.ReliabilityEvent
	Score    int
}

// Transition moves po to status. Reaching received takes every outstanding
// quantity into stock and scores the delivery.
func Transition(po domain.PurchaseOrder, status string, score int, at time.Time) (Outcome, error) {
	if !ValidStatus(status) {
		return Outcome{}, store.Invalid("unknown purchase order status %q", status)
	}
	if !CanTransition(po.Status, status) {
		return Outcome{}, store.Invalid("cannot move purchase order %s from %s to %s", po.ID, po.Status, status)
	}
	po = cloneOrder(po)
	out := Outcome{Score: score}
	if status == domain.POReceived {
		for i := range po.Items {
			outstanding := po.Items[i].Quantity - po.Items[i].ReceivedQuantity
			if outstanding > 0 {
				out.Receipts = append(out.Receipts, receipt(po, po.Items[i], outstanding, at))
			}
			po.Items[i].ReceivedQuantity = po.Items[i].Quantity
			po.Items[i].Status = domain.POItemReceived
		}
		received := at
		po.ReceivedDate = &received
		out.Event, out.Score = ReliabilityEvent(po, score, at)
	}
	po.Status = status
	out.Order = po
	return out, nil
}

// Receive sets the cumulative received quantity of one item and stocks the difference.
func Receive(po domain.PurchaseOrder, itemID string, receivedQty int, score int, at time.Time) (Outcome, error) {
	if po.Status == domain.POReceived || po.Status == domain.POCancelled {
		return Outcome{}, store.Invalid("purchase order %s is %s", po.ID, po.Status)
	}
	po = cloneOrder(po)
	idx := -1
	for i := range po.Items {
		if po.Items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Outcome{}, store.NotFound("purchase order item", itemID)
	}
	item := po.Items[idx]
	if receivedQty < item.ReceivedQuantity || receivedQty > item.Quantity {
		return Outcome{}, store.Invalid("received quantity must be between %d and %d", item.ReceivedQuantity, item.Quantity)
	}

	out := Outcome{Score: score}
	if delta := receivedQty - item.ReceivedQuantity; delta > 0 {
		out.Receipts = append(out.Receipts, receipt(po, item, delta, at))
	}
	item.ReceivedQuantity = receivedQty
	item.Status = ItemStatus(item)
	po.Items[idx] = item

	next := OrderStatusAfterReceipt(po)
	if next == domain.POReceived {
		received := at
		po.ReceivedDate = &received
		out.Event, out.Score = ReliabilityEvent(po, score, at)
	}
	po.Status = next
	out.Order = po
	return out, nil
}

func receipt(po domain.PurchaseOrder, item domain.PurchaseOrderItem, qty int, at time.Time) domain.StockMovement {
	return domain.StockMovement{
		ProductID:     item.ProductID,
		Type:          domain.MovementEntry,
		Quantity:      qty,
		UnitCostCents: item.UnitCostCents,
		Reference:     po.ID,
		At:            at,
		SetCostPrice:  true,
	}
}

func cloneOrder(po domain.PurchaseOrder) domain.PurchaseOrder {
	items := make([]domain.PurchaseOrderItem, len(po.Items))
	copy(items, po.Items)
	po.Items = items
	return po
}

// NewOrder validates a draft order and fills ids, totals, dates and the
// pending status. now only fills CreatedAt when the caller left it zero.
func NewOrder(po domain.PurchaseOrder, now time.Time) (domain.PurchaseOrder, error) {
	if po.SupplierID == "" {
		return po, store.Invalid("supplier is required")
	}
	if len(po.Items) == 0 {
		return po, store.Invalid("purchase order requires at least one item")
	}
	po = cloneOrder(po)
	if po.ID == "" {
		po.ID = xid.New("po")
	}
	if po.CreatedAt.IsZero() {
		po.CreatedAt = now
	}
	if po.OrderDate.IsZero() {
		po.OrderDate = po.CreatedAt
	}
	if po.OrderNumber == "" {
		po.OrderNumber = OrderNumber(po.OrderDate, po.ID)
	}
	po.Status = domain.POPending
	po.ReceivedDate = nil
	po.TotalCents = 0
	for i := range po.Items {
		item := &po.Items[i]
		if item.Quantity <= 0 {
			return po, store.Invalid("item quantity must be positive")
		}
		if item.UnitCostCents <= 0 {
			return po, store.Invalid("item unit cost must be positive")
		}
		if item.ID == "" {
			item.ID = xid.New("poi")
		}
		item.TotalCostCents = item.UnitCostCents * int64(item.Quantity)
		item.ReceivedQuantity = 0
		item.Status = domain.POItemPending
		po.TotalCents += item.TotalCostCents
	}
	return po, nil
}
