package domain

type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Cart holds a shopping session's contents. It is plain data keyed by
// session id in the cart store; it knows nothing about transport or storage.
type Cart struct {
	Items []CartItem `json:"items"`
}

// SetItem sets the quantity for a product, adding or removing the line as
// needed. Quantities below one remove the line.
func (c *Cart) SetItem(productID string, quantity int) {
	for i, item := range c.Items {
		if item.ProductID != productID {
			continue
		}
		if quantity < 1 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return
		}
		c.Items[i].Quantity = quantity
		return
	}
	if quantity >= 1 {
		c.Items = append(c.Items, CartItem{ProductID: productID, Quantity: quantity})
	}
}

func (c *Cart) Remove(productID string) {
	c.SetItem(productID, 0)
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
