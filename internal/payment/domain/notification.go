package domain

import (
	"fmt"
	"strings"

	"github.com/dmehra2102/storefront/pkg/apperr"
)

var ErrInvalidNotification = apperr.New(apperr.Validation, "invalid payment notification")

// Notification is a payment provider's verdict for one order, as published on
// the payment events topic.
type Notification struct {
	OrderID string `json:"order_id"`
	IsPaid  *bool  `json:"is_paid"`
}

func (n Notification) Validate() error {
	if strings.TrimSpace(n.OrderID) == "" {
		return fmt.Errorf("%w: order_id is required", ErrInvalidNotification)
	}
	if n.IsPaid == nil {
		return fmt.Errorf("%w: is_paid is required", ErrInvalidNotification)
	}
	return nil
}
