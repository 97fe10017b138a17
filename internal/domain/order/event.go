package order

import "github.com/google/uuid"

// TopicCompleted is the outbox topic for completed checkouts.
const TopicCompleted = "order.completed"

// Event is an outbox record written in the checkout transaction.
type Event struct {
	ID      string
	Topic   string
	Key     string
	Payload any
}

// CompletedPayload is the body of an order.completed event.
type CompletedPayload struct {
	OrderID   string        `json:"orderId"`
	UserID    string        `json:"userId"`
	Total     string        `json:"total"`
	CreatedAt string        `json:"createdAt"`
	Items     []PayloadItem `json:"items"`
}

// PayloadItem is one order line in an event payload.
type PayloadItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

func completedEvent(o *Order) Event {
	items := make([]PayloadItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = PayloadItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price.StringFixed(2),
		}
	}
	return Event{
		ID:    uuid.New().String(),
		Topic: TopicCompleted,
		Key:   o.UserID,
		Payload: CompletedPayload{
			OrderID:   o.ID,
			UserID:    o.UserID,
			Total:     o.Total.StringFixed(2),
			CreatedAt: o.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			Items:     items,
		},
	}
}
