//go:build !XLA && !ALL

package transformers

import (
	"fmt"

	"github.com/knights-analytics/hugot"
)

func newXLASession() (*hugot.Session, error) {
	return nil, fmt.Errorf("%w: xla (rebuild with -tags XLA)", ErrUnsupportedRuntime)
}
