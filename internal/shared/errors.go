package shared

import (
	"errors"
	"fmt"
)

var errMustBePositive = errors.New("must be positive")

func errUnknownBackend(b string) error {
	return fmt.Errorf("unknown backend %q (want sheets|mysql|memory)", b)
}
