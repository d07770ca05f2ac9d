package router

import (
	"fmt"
	"net/http"

	"github.com/google/cel-go/cel"
)

// ExpressionMatcher evaluates a compiled CEL predicate. The expression sees
// one variable, request, with the keys method, path and headers. headers
// maps canonical header names to their first value.
//
//	request.method == "GET" && request.path.startsWith("/api/v1/")
//	request.headers["X-Tenant"] == "acme"
type ExpressionMatcher struct {
	inner      Matcher
	expression string
	program    cel.Program
}

var celEnv = mustCELEnv()

func mustCELEnv() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("request", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		panic(fmt.Sprintf("router: failed to create CEL environment: %v", err))
	}
	return env
}

// NewExpressionMatcher compiles expression. It fails when the expression
// does not compile or does not yield a boolean. A nil inner matcher
// accepts every path.
func NewExpressionMatcher(inner Matcher, expression string) (*ExpressionMatcher, error) {
	ast, issues := celEnv.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression must evaluate to bool, got %s", ast.OutputType())
	}

	program, err := celEnv.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	return &ExpressionMatcher{
		inner:      inner,
		expression: expression,
		program:    program,
	}, nil
}

// Matches implements Matcher. Evaluation errors, such as a missing map key,
// count as no match.
func (m *ExpressionMatcher) Matches(method, path string, header http.Header) bool {
	if m.inner != nil && !m.inner.Matches(method, path, header) {
		return false
	}

	headers := make(map[string]string, len(header))
	for name, values := range header {
		if len(values) > 0 {
			headers[http.CanonicalHeaderKey(name)] = values[0]
		}
	}

	result, _, err := m.program.Eval(map[string]interface{}{
		"request": map[string]interface{}{
			"method":  method,
			"path":    path,
			"headers": headers,
		},
	})
	if err != nil {
		return false
	}

	matched, ok := result.Value().(bool)
	return ok && matched
}

// Type implements Matcher.
func (m *ExpressionMatcher) Type() string {
	return MatcherTypeExpression
}

// Expression returns the source expression.
func (m *ExpressionMatcher) Expression() string {
	return m.expression
}
