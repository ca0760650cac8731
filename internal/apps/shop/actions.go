package shop

import (
	"encoding/json"

	"github.com/gxo-labs/reducto/internal/session"
	reducto "github.com/gxo-labs/reducto/pkg/reducto/v1"
	reductoerrors "github.com/gxo-labs/reducto/pkg/reducto/v1/errors"
)

// AppName is the registry name of the storefront.
const AppName = "shop"

// Action kinds.
const (
	KindUpdateProducts        = "UPDATE_PRODUCTS"
	KindUpdateCategories      = "UPDATE_CATEGORIES"
	KindUpdateCurrentCategory = "UPDATE_CURRENT_CATEGORY"
	KindAddToCart             = "ADD_TO_CART"
	KindAddMultipleToCart     = "ADD_MULTIPLE_TO_CART"
	KindUpdateCartQuantity    = "UPDATE_CART_QUANTITY"
	KindRemoveFromCart        = "REMOVE_FROM_CART"
	KindClearCart             = "CLEAR_CART"
	KindToggleCart            = "TOGGLE_CART"
)

// Action is the closed set of storefront actions.
type Action interface {
	reducto.Action
	shopAction()
}

type UpdateProducts struct {
	Products []Product `json:"products"`
}

type UpdateCategories struct {
	Categories []Category `json:"categories"`
}

type UpdateCurrentCategory struct {
	CurrentCategory string `json:"currentCategory"`
}

type AddToCart struct {
	Product Product `json:"product"`
}

type AddMultipleToCart struct {
	Products []Product `json:"products"`
}

type UpdateCartQuantity struct {
	ID               string `json:"_id"`
	PurchaseQuantity int    `json:"purchaseQuantity"`
}

type RemoveFromCart struct {
	ID string `json:"_id"`
}

type ClearCart struct{}

type ToggleCart struct{}

func (UpdateProducts) Kind() string        { return KindUpdateProducts }
func (UpdateCategories) Kind() string      { return KindUpdateCategories }
func (UpdateCurrentCategory) Kind() string { return KindUpdateCurrentCategory }
func (AddToCart) Kind() string             { return KindAddToCart }
func (AddMultipleToCart) Kind() string     { return KindAddMultipleToCart }
func (UpdateCartQuantity) Kind() string    { return KindUpdateCartQuantity }
func (RemoveFromCart) Kind() string        { return KindRemoveFromCart }
func (ClearCart) Kind() string             { return KindClearCart }
func (ToggleCart) Kind() string            { return KindToggleCart }

func (UpdateProducts) shopAction()        {}
func (UpdateCategories) shopAction()      {}
func (UpdateCurrentCategory) shopAction() {}
func (AddToCart) shopAction()             {}
func (AddMultipleToCart) shopAction()     {}
func (UpdateCartQuantity) shopAction()    {}
func (RemoveFromCart) shopAction()        {}
func (ClearCart) shopAction()             {}
func (ToggleCart) shopAction()            {}

// Kinds lists every action kind, in declaration order.
func Kinds() []string {
	return []string{
		KindUpdateProducts, KindUpdateCategories, KindUpdateCurrentCategory,
		KindAddToCart, KindAddMultipleToCart, KindUpdateCartQuantity,
		KindRemoveFromCart, KindClearCart, KindToggleCart,
	}
}

// Decode turns an external (kind, payload) pair into a storefront action.
func Decode(kind string, payload json.RawMessage) (reducto.Action, error) {
	switch kind {
	case KindUpdateProducts:
		return session.DecodePayload[UpdateProducts](AppName, kind, payload)
	case KindUpdateCategories:
		return session.DecodePayload[UpdateCategories](AppName, kind, payload)
	case KindUpdateCurrentCategory:
		return session.DecodePayload[UpdateCurrentCategory](AppName, kind, payload)
	case KindAddToCart:
		a, err := session.DecodePayload[AddToCart](AppName, kind, payload)
		if err == nil && a.Product.ID == "" {
			err = reductoerrors.NewValidationError("ADD_TO_CART requires product._id", nil)
		}
		return a, err
	case KindAddMultipleToCart:
		return session.DecodePayload[AddMultipleToCart](AppName, kind, payload)
	case KindUpdateCartQuantity:
		a, err := session.DecodePayload[UpdateCartQuantity](AppName, kind, payload)
		if err == nil && a.ID == "" {
			err = reductoerrors.NewValidationError("UPDATE_CART_QUANTITY requires _id", nil)
		}
		return a, err
	case KindRemoveFromCart:
		a, err := session.DecodePayload[RemoveFromCart](AppName, kind, payload)
		if err == nil && a.ID == "" {
			err = reductoerrors.NewValidationError("REMOVE_FROM_CART requires _id", nil)
		}
		return a, err
	case KindClearCart:
		return ClearCart{}, nil
	case KindToggleCart:
		return ToggleCart{}, nil
	default:
		return nil, reductoerrors.NewUnknownActionError(AppName, kind)
	}
}
