package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ---------- Errores de Address ----------
var (
	ErrEmptyStreet   = errors.New("street cannot be empty")
	ErrEmptyCity     = errors.New("city cannot be empty")
	ErrInvalidZip    = errors.New("danish zip code must be exactly 4 digits")
	ErrZipOutOfRange = errors.New("danish zip code must be between 1000 and 9999")
)

// Address es un value object validado en construcción; los pedidos son
// daneses, así que el código postal son exactamente 4 dígitos (1000-9999).
type Address struct {
	Street  string `json:"street"`
	ZipCode string `json:"zipCode"`
	City    string `json:"city"`
}

func NewAddress(street, zipCode, city string) (Address, error) {
	if strings.TrimSpace(street) == "" {
		return Address{}, ErrEmptyStreet
	}
	if strings.TrimSpace(city) == "" {
		return Address{}, ErrEmptyCity
	}

	if len(zipCode) != 4 {
		return Address{}, ErrInvalidZip
	}
	value, err := strconv.Atoi(zipCode)
	if err != nil {
		return Address{}, ErrInvalidZip
	}
	if value < 1000 || value > 9999 {
		return Address{}, ErrZipOutOfRange
	}

	return Address{Street: street, ZipCode: zipCode, City: city}, nil
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) String() string {
	return fmt.Sprintf("%s, %s %s", a.Street, a.ZipCode, a.City)
}
