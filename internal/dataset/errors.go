package dataset

import (
	"errors"
	"fmt"

	"github.com/Agrid-Dev/heatpumpsim/internal/thermal"
)

var (
	ErrMalformed         = fmt.Errorf("%w: malformed dataset", thermal.ErrConfiguration)
	ErrMissingField      = fmt.Errorf("%w: missing dataset field", thermal.ErrConfiguration)
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported dataset format", thermal.ErrConfiguration)
)

var errEmptyDocument = errors.New("empty document")
