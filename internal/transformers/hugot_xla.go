//go:build XLA || ALL

package transformers

import (
	"github.com/knights-analytics/hugot"
)

func newXLASession() (*hugot.Session, error) {
	return hugot.NewXLASession()
}
