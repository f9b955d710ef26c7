package refresh

import "errors"

var (
	// ErrInvalidEntityID is returned when a batch entity carries a missing or
	// empty logical ID. This fails the call before any graph construction.
	ErrInvalidEntityID = errors.New("entity does not contain a mappable ID")

	// ErrIncompleteProductContent is returned when a product-content mapping
	// arrives without its content.
	ErrIncompleteProductContent = errors.New("incomplete product-content mapping")
)
