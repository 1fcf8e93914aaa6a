package engine

import (
	"fmt"
	"sync"
	"time"
)

// EvalTimeout is the hard limit for a single script evaluation.
const EvalTimeout = 5 * time.Second

type runResult struct {
	errors []EvalError
	err    error
}

// waitWithTimeout waits for the evaluation goroutine, bailing out after
// EvalTimeout. On timeout the goroutine may still be running; the
// generation check discards its result when it eventually lands.
func waitWithTimeout(
	ch <-chan runResult,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
) ([]EvalError, error) {
	timer := time.NewTimer(EvalTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()
		if gen != current {
			return nil, fmt.Errorf("evaluation superseded by newer request")
		}
		return res.errors, res.err

	case <-timer.C:
		return nil, fmt.Errorf("evaluation timed out after %s", EvalTimeout)
	}
}
