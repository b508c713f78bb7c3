package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MaxQuantityPerProduct es el máximo acumulado de unidades de un mismo
// producto dentro de un pedido.
const MaxQuantityPerProduct = 30

var (
	ErrNegativeQuantity = errors.New("quantity must be greater than zero")
	ErrQuantityLimit    = fmt.Errorf("cannot order more than %d units of a single product", MaxQuantityPerProduct)
	ErrEmptyProductName = errors.New("product name cannot be empty")
	ErrInvalidItemPrice = errors.New("unit price must carry a currency")
)

// OrderItem es una entidad hija propiedad exclusiva del Order: su identidad
// es interna y solo se muta a través de los métodos del aggregate.
// El precio unitario queda fijado al añadir la línea; nunca se vuelve a
// consultar el catálogo.
type OrderItem struct {
	id          uuid.UUID
	productID   ProductID
	productName string
	quantity    int
	unitPrice   Money
}

func newOrderItem(productID ProductID, productName string, quantity int, unitPrice Money) (*OrderItem, error) {
	if productID.IsZero() {
		return nil, ErrEmptyProductID
	}
	if strings.TrimSpace(productName) == "" {
		return nil, ErrEmptyProductName
	}
	if quantity <= 0 {
		return nil, ErrNegativeQuantity
	}
	if unitPrice.Currency == "" {
		return nil, ErrInvalidItemPrice
	}

	return &OrderItem{
		id:          uuid.New(),
		productID:   productID,
		productName: productName,
		quantity:    quantity,
		unitPrice:   unitPrice,
	}, nil
}

func (i *OrderItem) ProductID() ProductID { return i.productID }
func (i *OrderItem) ProductName() string  { return i.productName }
func (i *OrderItem) Quantity() int        { return i.quantity }
func (i *OrderItem) UnitPrice() Money     { return i.unitPrice }

// TotalPrice es unitPrice × quantity.
func (i *OrderItem) TotalPrice() Money {
	total, err := i.unitPrice.Multiply(int64(i.quantity))
	if err != nil {
		// quantity siempre es > 0 por construcción
		return i.unitPrice
	}
	return total
}

func (i *OrderItem) updateQuantity(newQuantity int) error {
	if newQuantity == i.quantity {
		return nil
	}
	if newQuantity <= 0 {
		return ErrNegativeQuantity
	}
	if newQuantity > MaxQuantityPerProduct {
		return ErrQuantityLimit
	}
	i.quantity = newQuantity
	return nil
}
