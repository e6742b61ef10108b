package orders

const (
	TopicOrderCreated       = "checkout.order.created"
	TopicOrderStatusChanged = "checkout.order.status_changed"
)

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
