package shop

import (
	"github.com/gxo-labs/reducto/internal/registry"
	"github.com/gxo-labs/reducto/internal/session"
	reducto "github.com/gxo-labs/reducto/pkg/reducto/v1"
)

// Reduce is the storefront reducer. It never modifies the slices of the
// state it receives.
func Reduce(state State, action reducto.Action) State {
	if reducto.IsInitAction(action) {
		if state.Products == nil && state.Categories == nil && state.Cart == nil {
			return InitialState()
		}
		return state
	}

	a, ok := action.(Action)
	if !ok {
		return state
	}

	switch a := a.(type) {
	case UpdateProducts:
		state.Products = clone(a.Products)

	case UpdateCategories:
		state.Categories = clone(a.Categories)

	case UpdateCurrentCategory:
		state.CurrentCategory = a.CurrentCategory

	case AddToCart:
		state.CartOpen = true
		state.Cart = appendCopy(state.Cart, a.Product)

	case AddMultipleToCart:
		state.Cart = appendCopy(state.Cart, a.Products...)

	case UpdateCartQuantity:
		state.CartOpen = true
		cart := make([]Product, len(state.Cart))
		for i, p := range state.Cart {
			if p.ID == a.ID {
				p.PurchaseQuantity = a.PurchaseQuantity
			}
			cart[i] = p
		}
		state.Cart = cart

	case RemoveFromCart:
		cart := make([]Product, 0, len(state.Cart))
		for _, p := range state.Cart {
			if p.ID != a.ID {
				cart = append(cart, p)
			}
		}
		state.CartOpen = len(cart) > 0
		state.Cart = cart

	case ClearCart:
		state.CartOpen = false
		state.Cart = []Product{}

	case ToggleCart:
		state.CartOpen = !state.CartOpen
	}
	return state
}

func clone[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func appendCopy(cart []Product, items ...Product) []Product {
	out := make([]Product, 0, len(cart)+len(items))
	out = append(out, cart...)
	return append(out, items...)
}

// Definition describes the storefront to the session layer.
func Definition() session.Definition[State] {
	return session.Definition[State]{
		App:     AppName,
		Reducer: Reduce,
		Decode:  Decode,
	}
}

// Open opens a storefront session.
func Open(opts session.Options) (session.Session, error) {
	s, err := session.Open(Definition(), opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func init() {
	registry.Register(AppName, Open)
}
