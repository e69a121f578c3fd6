package domain

import "fmt"

// InventoryItem is the single stock counter of a product.
type InventoryItem struct {
	productID string
	stock     int
	version   int64 // optimistic locking
}

func NewInventoryItem(productID string, stock int) (*InventoryItem, error) {
	return RestoreInventoryItem(productID, stock, 0)
}

func RestoreInventoryItem(productID string, stock int, version int64) (*InventoryItem, error) {
	err := firstError(
		RequireText(productID, "productId", EntityInventoryItem),
		RequireNonNegativeInt(stock, "stock", EntityInventoryItem),
		RequireTrue(version >= 0, "version cannot be negative", EntityInventoryItem),
	)
	if err != nil {
		return nil, err
	}

	return &InventoryItem{productID: productID, stock: stock, version: version}, nil
}

func (i *InventoryItem) ProductID() string { return i.productID }
func (i *InventoryItem) Stock() int        { return i.stock }
func (i *InventoryItem) Version() int64    { return i.version }

// CheckAvailability reports whether quantity could be deducted right now
// without changing anything.
func (i *InventoryItem) CheckAvailability(quantity int) error {
	if err := RequirePositiveInt(quantity, "quantity", EntityInventoryItem); err != nil {
		return err
	}
	if quantity > i.stock {
		return &InsufficientStockError{ProductID: i.productID, Requested: quantity, Available: i.stock}
	}
	return nil
}

func (i *InventoryItem) Deduct(quantity int) error {
	if err := i.CheckAvailability(quantity); err != nil {
		return err
	}
	i.stock -= quantity
	return nil
}

// Add puts previously deducted stock back.
func (i *InventoryItem) Add(quantity int) error {
	if err := RequirePositiveInt(quantity, "quantity", EntityInventoryItem); err != nil {
		return err
	}
	i.stock += quantity
	return nil
}

func (i *InventoryItem) Equal(other *InventoryItem) bool {
	if i == nil || other == nil {
		return i == other
	}
	return i.productID == other.productID
}

func (i *InventoryItem) String() string {
	return fmt.Sprintf("InventoryItem{productId=%s stock=%d version=%d}", i.productID, i.stock, i.version)
}
