package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	lru "github.com/hashicorp/golang-lru"
	"github.com/jacksonlee411/orgchart/pkg/hierarchy"
)

var ErrInvalidExpression = errors.New("invalid_expression")

// ExprFilter evaluates CEL predicates against employees. The employee is
// bound to the variable e, keyed by attribute name:
//
//	e.department_name == "Engineering" && e.depth <= 2
//	"bob@corp" in e.subordinates
type ExprFilter struct {
	env      *cel.Env
	programs *lru.Cache
}

// DefaultProgramCacheSize bounds the compiled programs kept per filter;
// the least recently used program is evicted first.
const DefaultProgramCacheSize = 256

var newExprCELEnv = func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("e", cel.MapType(cel.StringType, cel.DynType)))
}

func NewExprFilter() (*ExprFilter, error) {
	return NewExprFilterWithCacheSize(DefaultProgramCacheSize)
}

func NewExprFilterWithCacheSize(size int) (*ExprFilter, error) {
	env, err := newExprCELEnv()
	if err != nil {
		return nil, err
	}
	programs, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{env: env, programs: programs}, nil
}

func (f *ExprFilter) Compile(expr string) (cel.Program, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}
	if cached, ok := f.programs.Get(expr); ok {
		return cached.(cel.Program), nil
	}

	ast, iss := f.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, iss.Err())
	}
	if ast.OutputType() != cel.BoolType && ast.OutputType() != cel.DynType {
		return nil, fmt.Errorf("%w: expression must evaluate to bool, got %s", ErrInvalidExpression, ast.OutputType())
	}
	prg, err := f.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	f.programs.Add(expr, prg)
	return prg, nil
}

// Apply returns the employees for which expr is true.
func (f *ExprFilter) Apply(store *hierarchy.Store, expr string) ([]hierarchy.Employee, error) {
	prg, err := f.Compile(expr)
	if err != nil {
		return nil, err
	}
	return store.Filter(func(e hierarchy.Employee) (bool, error) {
		out, _, err := prg.Eval(map[string]any{"e": employeeVars(e)})
		if err != nil {
			return false, fmt.Errorf("%w: %s: %v", ErrInvalidExpression, e.MailboxIdentifier, err)
		}
		b, ok := out.Value().(bool)
		if !ok {
			return false, fmt.Errorf("%w: expression must evaluate to bool, got %T", ErrInvalidExpression, out.Value())
		}
		return b, nil
	})
}

func employeeVars(e hierarchy.Employee) map[string]any {
	vars := make(map[string]any, len(hierarchy.Attributes()))
	for _, a := range hierarchy.Attributes() {
		v, _ := e.Value(a)
		if members, ok := v.([]string); ok && members == nil {
			v = []string{}
		}
		vars[string(a)] = v
	}
	return vars
}
