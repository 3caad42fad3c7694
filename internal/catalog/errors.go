package catalog

import "errors"

var (
	ErrTradeNotFound   = errors.New("trade not found")
	ErrJobTypeNotFound = errors.New("job type not found")
	ErrInvalidCatalog  = errors.New("invalid catalog")
)
