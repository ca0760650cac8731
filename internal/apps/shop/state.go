// Package shop is the storefront application: a product catalogue with
// categories and a shopping cart.
package shop

// Category groups products.
type Category struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Product is a catalogue entry. PurchaseQuantity is only meaningful for
// products in the cart.
type Product struct {
	ID               string    `json:"_id"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	Image            string    `json:"image,omitempty"`
	Price            float64   `json:"price"`
	Quantity         int       `json:"quantity"`
	Category         *Category `json:"category,omitempty"`
	PurchaseQuantity int       `json:"purchaseQuantity,omitempty"`
}

// State is the whole storefront state.
type State struct {
	Products        []Product  `json:"products"`
	Categories      []Category `json:"categories"`
	CurrentCategory string     `json:"currentCategory"`
	Cart            []Product  `json:"cart"`
	CartOpen        bool       `json:"cartOpen"`
}

// InitialState is what a new store starts from.
func InitialState() State {
	return State{
		Products:   []Product{},
		Categories: []Category{},
		Cart:       []Product{},
	}
}

// CartTotal returns the sum of price times purchase quantity over the cart.
func (s State) CartTotal() float64 {
	total := 0.0
	for _, p := range s.Cart {
		total += p.Price * float64(p.PurchaseQuantity)
	}
	return total
}

// CartItem returns the cart entry with the given product id.
func (s State) CartItem(id string) (Product, bool) {
	for _, p := range s.Cart {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}
