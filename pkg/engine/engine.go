// Package engine provides the Lisp scripting layer. Scripts drive a
// modeling session through the same command layer as interactive edits,
// so every scripted mutation is undoable and every form triggers the
// normal recompute. Evaluation runs in a sandboxed zygomys environment
// under a hard timeout.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/camber/pkg/core"
)

// EvalError is a non-fatal script error: a parse failure or a runtime
// error inside user code.
type EvalError struct {
	Line    int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Engine evaluates scripts against a session. Each Run gets a fresh
// sandbox so evaluation is deterministic; the generation counter lets a
// newer Run supersede a stuck older one.
type Engine struct {
	mu         sync.Mutex
	generation uint64
}

func NewEngine() *Engine {
	return &Engine{}
}

// Run evaluates source against the session. A script is atomic at the
// history level: when it fails partway, commands it already applied are
// unwound, leaving the session as it was before the Run.
//
// Return semantics:
//   - nil, nil: the whole script applied
//   - errs, nil: the script failed and was rolled back
//   - nil, err: fatal failure (timeout, panic, superseded)
func (e *Engine) Run(sess *core.Session, source string) ([]EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan runResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- runResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()
		errs := e.run(sess, source)
		ch <- runResult{errors: errs}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation)
}

func (e *Engine) run(sess *core.Session, source string) []EvalError {
	if strings.TrimSpace(source) == "" {
		return nil
	}

	// Sandbox mode keeps user code away from the filesystem and
	// syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	registerBuiltins(env, sess)

	depth := sess.HistoryDepth()
	if err := env.LoadString(preprocessSource(source)); err != nil {
		return parseZlispError(err)
	}
	if _, err := env.Run(); err != nil {
		rollback(sess, depth)
		return parseZlispError(err)
	}
	return nil
}

// rollback unwinds commands the failed script applied on top of the
// recorded depth. A script that undid pre-existing history and then
// failed cannot be unwound past its own work; that history stays undone.
func rollback(sess *core.Session, depth int) {
	for sess.HistoryDepth() > depth {
		if err := sess.Undo(); err != nil {
			return
		}
	}
}

var (
	lineLongPattern  = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)
	lineShortPattern = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)
)

// parseZlispError extracts line information from a zygomys error
// message when it carries any.
func parseZlispError(err error) []EvalError {
	msg := err.Error()
	for _, pat := range []*regexp.Regexp{lineLongPattern, lineShortPattern} {
		if m := pat.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
