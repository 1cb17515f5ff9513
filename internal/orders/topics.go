package orders

import "strconv"

const (
	TopicOrderCreated      = "order.created"
	TopicOrderUpdated      = "order.updated"
	TopicOrderDeleted      = "order.deleted"
	TopicStockCompensation = "order.stock.compensation"
)

// Partition key = product_id, so every stock movement of one product keeps its order.
func PartitionKey(productID int64) []byte { return []byte(strconv.FormatInt(productID, 10)) }
