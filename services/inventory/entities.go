package main

import (
	"time"
)

// InventoryRecord holds the stock counters of a single product.
// AvailableQuantity is stock still sellable, ReservedQuantity is stock held
// by orders that have not resolved their payment yet. Both are never negative
// and their sum only decreases when a reservation is confirmed.
type InventoryRecord struct {
	ProductID         string    `json:"product_id" db:"product_id"`
	AvailableQuantity int       `json:"available_quantity" db:"available_quantity"`
	ReservedQuantity  int       `json:"reserved_quantity" db:"reserved_quantity"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// NewInventoryRecord creates a record for a product seen for the first time.
func NewInventoryRecord(productID string, available int) *InventoryRecord {
	return &InventoryRecord{
		ProductID:         productID,
		AvailableQuantity: available,
		ReservedQuantity:  0,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
}

// CanReserve reports whether a reservation of qty units would pass the
// availability check.
func (r *InventoryRecord) CanReserve(qty int) bool {
	return qty > 0 && r.AvailableQuantity >= qty
}

// CanRelease reports whether qty units are currently reserved and can be
// returned to the available pool.
func (r *InventoryRecord) CanRelease(qty int) bool {
	return qty > 0 && r.ReservedQuantity >= qty
}

// CanConfirm reports whether qty reserved units can be permanently written
// off. Same guard as CanRelease: both operations consume the reservation.
func (r *InventoryRecord) CanConfirm(qty int) bool {
	return qty > 0 && r.ReservedQuantity >= qty
}
