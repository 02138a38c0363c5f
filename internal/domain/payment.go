package domain

// PaymentEvent is a verified upgrade notification from a payment provider
type PaymentEvent struct {
	ID     string
	UserID string
	Tier   Tier
}
