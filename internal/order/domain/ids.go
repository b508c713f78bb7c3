package domain

import (
	"errors"

	"github.com/google/uuid"
)

// ---------- Errores de identidad ----------
var (
	ErrEmptyOrderID    = errors.New("order id cannot be empty")
	ErrEmptyCustomerID = errors.New("customer id cannot be empty")
	ErrEmptyProductID  = errors.New("product id cannot be empty")
)

// Identificadores tipados del dominio. Son tipos distintos sobre uuid.UUID
// para que el compilador impida mezclar un CustomerID donde va un OrderID.

type OrderID uuid.UUID

func NewOrderID() OrderID {
	return OrderID(uuid.New())
}

func ParseOrderID(s string) (OrderID, error) {
	u, err := uuid.Parse(s)
	if err != nil || u == uuid.Nil {
		return OrderID{}, ErrEmptyOrderID
	}
	return OrderID(u), nil
}

func (id OrderID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id OrderID) String() string { return uuid.UUID(id).String() }

func (id OrderID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *OrderID) UnmarshalText(data []byte) error {
	u, err := uuid.Parse(string(data))
	if err != nil {
		return err
	}
	*id = OrderID(u)
	return nil
}

type CustomerID uuid.UUID

func NewCustomerID() CustomerID {
	return CustomerID(uuid.New())
}

func ParseCustomerID(s string) (CustomerID, error) {
	u, err := uuid.Parse(s)
	if err != nil || u == uuid.Nil {
		return CustomerID{}, ErrEmptyCustomerID
	}
	return CustomerID(u), nil
}

func (id CustomerID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id CustomerID) String() string { return uuid.UUID(id).String() }

func (id CustomerID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *CustomerID) UnmarshalText(data []byte) error {
	u, err := uuid.Parse(string(data))
	if err != nil {
		return err
	}
	*id = CustomerID(u)
	return nil
}

type ProductID uuid.UUID

func NewProductID() ProductID {
	return ProductID(uuid.New())
}

func ParseProductID(s string) (ProductID, error) {
	u, err := uuid.Parse(s)
	if err != nil || u == uuid.Nil {
		return ProductID{}, ErrEmptyProductID
	}
	return ProductID(u), nil
}

func (id ProductID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ProductID) String() string { return uuid.UUID(id).String() }

func (id ProductID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ProductID) UnmarshalText(data []byte) error {
	u, err := uuid.Parse(string(data))
	if err != nil {
		return err
	}
	*id = ProductID(u)
	return nil
}
