package domain

// Fulfillment is the chosen method of receiving an order. It drives fee
// computation and is kept only for the duration of a checkout.
type Fulfillment string

const (
	FulfillmentPickup        Fulfillment = "pickup"
	FulfillmentExpressPickup Fulfillment = "express_pickup"
	FulfillmentDelivery      Fulfillment = "delivery"
)

func (f Fulfillment) Valid() bool {
	switch f {
	case FulfillmentPickup, FulfillmentExpressPickup, FulfillmentDelivery:
		return true
	}
	return false
}

func (f Fulfillment) String() string {
	return string(f)
}
