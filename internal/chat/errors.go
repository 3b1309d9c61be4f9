package chat

import (
	"errors"
	"fmt"
	"time"
)

// Fixed Czech replies
const (
	ApologyError = "Omlouvám se, došlo k chybě při zpracování vaší zprávy."
	ApologyEmpty = "Omlouvám se, nepodařilo se mi vytvořit odpověď."
	ApologyLeak  = "Omlouvám se, momentálně nemůžu vyhledat. Můžeš zkusit zadat konkrétnější dotaz, například: 'najdi hrady' nebo 'ukaž pivovary'."
)

// ErrToolLoopExceeded is returned when the model keeps calling functions past the round limit
var ErrToolLoopExceeded = errors.New("tool loop exceeded maximum rounds")

// TimeoutError reports an external call that did not finish in time
type TimeoutError struct {
	Op      string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
	}
	return e.Op + " timed out"
}

func (e *TimeoutError) Unwrap() error { return e.Err }
