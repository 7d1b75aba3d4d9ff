// Package template renders templated wait fields. The cluster name and any
// string filter value may embed $(expr) references or be a ${...} code
// block, evaluated as JavaScript against a Context.
package template

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/me/ecswait/pkg/model"
)

// Context is the data visible to expressions.
type Context struct {
	WaitID    string            // exposed as wait.id
	CreatedAt time.Time         // exposed as wait.created_at and ds (YYYY-MM-DD)
	Params    map[string]any    // exposed as params
	Env       map[string]string // exposed as env

	// Timeout bounds each Render call. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout is the evaluation limit used when Context.Timeout is zero.
const DefaultTimeout = time.Second

// ErrTimeout is returned when evaluation runs past the renderer's limit.
var ErrTimeout = errors.New("template evaluation timed out")

// Renderer evaluates templated strings. A Renderer is not safe for
// concurrent use; each Render call builds a fresh VM.
type Renderer struct {
	ctx  Context
	done context.Context
}

// NewRenderer creates a Renderer bound to ctx.
func NewRenderer(ctx Context) *Renderer {
	return &Renderer{ctx: ctx, done: context.Background()}
}

// WithContext returns a copy of r whose evaluations are interrupted when
// ctx is done.
func (r *Renderer) WithContext(ctx context.Context) *Renderer {
	if ctx == nil {
		ctx = context.Background()
	}
	cp := *r
	cp.done = ctx
	return &cp
}

// IsTemplated reports whether s contains an unescaped expression.
func IsTemplated(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "${") || len(findExpressions(s)) > 0
}

// RenderString renders s and converts the result to a string.
func (r *Renderer) RenderString(s string) (string, error) {
	v, err := r.Render(s)
	if err != nil {
		return "", err
	}
	return toString(v), nil
}

// Render evaluates s. A string that is exactly one expression keeps the
// expression's type; mixed text is interpolated into a string.
func (r *Renderer) Render(s string) (any, error) {
	if !IsTemplated(s) {
		return unescape(s), nil
	}

	if err := r.done.Err(); err != nil {
		return nil, err
	}
	vm, err := r.setupVM()
	if err != nil {
		return nil, err
	}

	limit := r.ctx.Timeout
	if limit <= 0 {
		limit = DefaultTimeout
	}
	timer := time.AfterFunc(limit, func() { vm.Interrupt(ErrTimeout) })
	defer timer.Stop()
	stop := context.AfterFunc(r.done, func() { vm.Interrupt(r.done.Err()) })
	defer stop()

	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "${") && strings.HasSuffix(trimmed, "}") {
		code := strings.TrimSpace(trimmed[2 : len(trimmed)-1])
		val, err := vm.RunString(fmt.Sprintf("(function() { %s })()", code))
		if err != nil {
			return nil, fmt.Errorf("code block: %w", interrupted(err))
		}
		return val.Export(), nil
	}

	matches := findExpressions(s)
	if len(matches) == 1 && matches[0].start == 0 && matches[0].end == len(s) {
		return r.eval(vm, matches[0].expr)
	}

	var out strings.Builder
	last := 0
	for _, m := range matches {
		out.WriteString(s[last:m.start])
		v, err := r.eval(vm, m.expr)
		if err != nil {
			return nil, err
		}
		out.WriteString(toString(v))
		last = m.end
	}
	out.WriteString(s[last:])
	return unescape(out.String()), nil
}

// RenderFilter renders the cluster and every string value of opts.
// Non-string values are copied unchanged.
func (r *Renderer) RenderFilter(cluster string, opts map[string]any) (string, map[string]any, error) {
	renderedCluster, err := r.RenderString(cluster)
	if err != nil {
		return "", nil, fmt.Errorf("cluster: %w", err)
	}
	out := make(map[string]any, len(opts))
	for k, v := range opts {
		s, ok := v.(string)
		if !ok {
			out[k] = v
			continue
		}
		rendered, err := r.Render(s)
		if err != nil {
			return "", nil, fmt.Errorf("filter %s: %w", k, err)
		}
		out[k] = rendered
	}
	return renderedCluster, out, nil
}

// Filter renders cluster and opts and builds the query filter from the
// result. An empty rendered cluster yields *model.InvalidGroupError.
func (r *Renderer) Filter(cluster string, opts map[string]any) (model.QueryFilter, error) {
	renderedCluster, renderedOpts, err := r.RenderFilter(cluster, opts)
	if err != nil {
		return model.QueryFilter{}, err
	}
	return model.NewQueryFilter(renderedCluster, renderedOpts)
}

func (r *Renderer) setupVM() (*goja.Runtime, error) {
	vm := goja.New()

	params := r.ctx.Params
	if params == nil {
		params = map[string]any{}
	}
	env := r.ctx.Env
	if env == nil {
		env = map[string]string{}
	}
	wait := map[string]any{
		"id":         r.ctx.WaitID,
		"created_at": r.ctx.CreatedAt.UTC().Format(time.RFC3339),
	}

	for name, v := range map[string]any{
		"params": params,
		"env":    env,
		"wait":   wait,
		"ds":     r.ctx.CreatedAt.UTC().Format("2006-01-02"),
	} {
		if err := vm.Set(name, v); err != nil {
			return nil, fmt.Errorf("set %s: %w", name, err)
		}
	}
	return vm, nil
}

func (r *Renderer) eval(vm *goja.Runtime, expr string) (any, error) {
	code := expr
	if strings.HasPrefix(strings.TrimSpace(code), "{") {
		code = "(" + code + ")"
	}
	val, err := vm.RunString(code)
	if err != nil {
		return nil, fmt.Errorf("expression error in $(%s): %w", expr, interrupted(err))
	}
	if val == nil || goja.IsUndefined(val) {
		return nil, fmt.Errorf("expression $(%s) returned undefined", expr)
	}
	return val.Export(), nil
}

// interrupted unwraps the cause passed to vm.Interrupt so callers can match
// ErrTimeout or context.Canceled.
func interrupted(err error) error {
	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		if cause, ok := ie.Value().(error); ok {
			return cause
		}
	}
	return err
}

type exprMatch struct {
	start int
	end   int
	expr  string
}

// findExpressions finds unescaped $(expr) references, honouring nested
// parentheses.
func findExpressions(s string) []exprMatch {
	var matches []exprMatch
	i := 0
	for i < len(s)-1 {
		if s[i] == '$' && s[i+1] == '(' && (i == 0 || s[i-1] != '\\') {
			depth := 1
			j := i + 2
			for j < len(s) && depth > 0 {
				switch s[j] {
				case '(':
					depth++
				case ')':
					depth--
				}
				j++
			}
			if depth == 0 {
				matches = append(matches, exprMatch{start: i, end: j, expr: s[i+2 : j-1]})
				i = j
				continue
			}
		}
		i++
	}
	return matches
}

func unescape(s string) string {
	s = strings.ReplaceAll(s, "\\$(", "$(")
	return strings.ReplaceAll(s, "\\${", "${")
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
