// Package formula evaluates numeric designer formulas such as
// "value * 0.5 + level * 2" or "math.max(strength, agility) / 10".
//
// Expressions are compiled once into an embedded Lua state and cached by source text.
// Variables are injected as globals for the duration of one evaluation.
package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Shopify/go-lua"
)

// prelude exposes the common math helpers without the "math." prefix.
const prelude = `
min = math.min
max = math.max
floor = math.floor
ceil = math.ceil
sqrt = math.sqrt
abs = math.abs
function clamp(v, lo, hi) if v < lo then return lo elseif v > hi then return hi end return v end
`

// Evaluator compiles and evaluates formulas. Safe for concurrent use; calls are serialised.
type Evaluator struct {
	mu     sync.Mutex
	state  *lua.State
	chunks map[string]string // source -> global holding the compiled chunk

	evaluations atomic.Uint64
}

// NewEvaluator creates an evaluator with its own Lua state.
func NewEvaluator() (*Evaluator, error) {
	l := lua.NewState()
	lua.OpenLibraries(l)
	if err := lua.DoString(l, prelude); err != nil {
		return nil, fmt.Errorf("loading formula prelude: %w", err)
	}
	return &Evaluator{
		state:  l,
		chunks: make(map[string]string, 64),
	}, nil
}

// Compile checks that expr is a valid expression and caches it.
func (e *Evaluator) Compile(expr string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.compile(expr)
	return err
}

// Eval evaluates expr with vars bound as globals.
// NaN and infinite results are reported as errors.
func (e *Evaluator) Eval(expr string, vars map[string]float64) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	name, err := e.compile(expr)
	if err != nil {
		return 0, err
	}

	l := e.state
	top := l.Top()
	defer l.SetTop(top)

	for k, v := range vars {
		l.PushNumber(v)
		l.SetGlobal(k)
	}
	defer func() {
		for k := range vars {
			l.PushNil()
			l.SetGlobal(k)
		}
	}()

	e.evaluations.Add(1)

	l.Global(name)
	if err := l.ProtectedCall(0, 1, 0); err != nil {
		return 0, fmt.Errorf("evaluating formula %q: %w", expr, err)
	}
	result, ok := l.ToNumber(-1)
	if !ok {
		return 0, fmt.Errorf("formula %q did not yield a number", expr)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("formula %q yielded %v", expr, result)
	}
	return result, nil
}

// Evaluations returns how many times a formula body was executed.
func (e *Evaluator) Evaluations() uint64 {
	return e.evaluations.Load()
}

// compile must be called with mu held.
func (e *Evaluator) compile(expr string) (string, error) {
	if name, ok := e.chunks[expr]; ok {
		return name, nil
	}
	if strings.TrimSpace(expr) == "" {
		return "", fmt.Errorf("empty formula")
	}

	l := e.state
	top := l.Top()
	defer l.SetTop(top)

	if err := lua.LoadString(l, "return "+expr); err != nil {
		return "", fmt.Errorf("compiling formula %q: %w", expr, err)
	}
	name := "__formula_" + strconv.Itoa(len(e.chunks))
	l.SetGlobal(name)
	e.chunks[expr] = name
	return name, nil
}

// Substitute replaces {name} placeholders with the formatted value of vars[name].
// Unknown placeholders are left in place.
func Substitute(expr string, vars map[string]float64) string {
	if !strings.Contains(expr, "{") {
		return expr
	}
	var b strings.Builder
	b.Grow(len(expr))
	for i := 0; i < len(expr); i++ {
		if expr[i] != '{' {
			b.WriteByte(expr[i])
			continue
		}
		end := strings.IndexByte(expr[i:], '}')
		if end < 0 {
			b.WriteString(expr[i:])
			break
		}
		key := strings.TrimSpace(expr[i+1 : i+end])
		if v, ok := vars[key]; ok {
			b.WriteString("(" + strconv.FormatFloat(v, 'g', -1, 64) + ")")
		} else {
			b.WriteString(expr[i : i+end+1])
		}
		i += end
	}
	return b.String()
}

// Normalize turns {name} placeholders into plain identifiers so the expression text
// stays constant and the value is bound at evaluation time instead.
func Normalize(expr string) string {
	if !strings.Contains(expr, "{") {
		return expr
	}
	var b strings.Builder
	b.Grow(len(expr))
	for i := 0; i < len(expr); i++ {
		if expr[i] != '{' {
			b.WriteByte(expr[i])
			continue
		}
		end := strings.IndexByte(expr[i:], '}')
		key := ""
		if end > 0 {
			key = strings.TrimSpace(expr[i+1 : i+end])
		}
		if end < 0 || !isIdentifier(key) {
			b.WriteByte(expr[i])
			continue
		}
		b.WriteString(key)
		i += end
	}
	return b.String()
}

func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}

var keywords = map[string]struct{}{
	"and": {}, "break": {}, "do": {}, "else": {}, "elseif": {}, "end": {},
	"false": {}, "for": {}, "function": {}, "goto": {}, "if": {}, "in": {},
	"local": {}, "nil": {}, "not": {}, "or": {}, "repeat": {}, "return": {},
	"then": {}, "true": {}, "until": {}, "while": {},
}

// Identifiers returns the free variable names referenced by expr, in first-seen order.
// Keywords, table fields (math.max) and called functions (clamp(...)) are excluded.
func Identifiers(expr string) []string {
	var out []string
	seen := make(map[string]struct{})

	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case isDigit(c):
			// number literal incl. exponent / hex letters
			for i < len(expr) && (isIdentChar(expr[i]) || expr[i] == '.') {
				i++
			}
		case isIdentStart(c):
			start := i
			for i < len(expr) && isIdentChar(expr[i]) {
				i++
			}
			word := expr[start:i]
			if _, kw := keywords[word]; kw {
				continue
			}
			if start > 0 && (expr[start-1] == '.' || expr[start-1] == ':') {
				continue
			}
			next := nextNonSpace(expr, i)
			if next == '.' || next == '(' || next == ':' {
				continue
			}
			if _, dup := seen[word]; dup {
				continue
			}
			seen[word] = struct{}{}
			out = append(out, word)
		case c == '"' || c == '\'':
			// skip string literal
			i++
			for i < len(expr) && expr[i] != c {
				i++
			}
			i++
		default:
			i++
		}
	}
	return out
}

func nextNonSpace(s string, i int) byte {
	for i < len(s) {
		if s[i] != ' ' && s[i] != '\t' {
			return s[i]
		}
		i++
	}
	return 0
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentChar(c byte) bool  { return isIdentStart(c) || isDigit(c) }
