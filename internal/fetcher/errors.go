package fetcher

import (
	"errors"
	"fmt"
)

var errCursorLoop = errors.New("source returned the same continuation cursor twice")

func errPageLimit(n int) error {
	return fmt.Errorf("page limit of %d exceeded", n)
}
