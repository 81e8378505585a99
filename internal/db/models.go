package db

import "github.com/lawsonsstudio/storefront/internal/models"

type Order = models.Order
type OrderItem = models.OrderItem
type Variant = models.Variant
type Address = models.Address
type OrderStatus = models.OrderStatus

const (
	StatusPendingPayment = models.StatusPendingPayment
	StatusPaid           = models.StatusPaid
	StatusInProduction   = models.StatusInProduction
	StatusShipped        = models.StatusShipped
	StatusDelivered      = models.StatusDelivered
	StatusCancelled      = models.StatusCancelled
	StatusRefunded       = models.StatusRefunded
	StatusExpired        = models.StatusExpired
)
