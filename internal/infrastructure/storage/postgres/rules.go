package postgres

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/jackc/pgx/v5/pgconn"
)

// RuleFromExpression compiles a CEL expression into a classification rule,
// letting operators extend the classifier from configuration without a
// rebuild. The expression sees two string variables:
//
//	code    - the SQLSTATE of the executor error ("" when not a PgError)
//	message - the error text
//
// Example: `code == "55P03" || message.contains("lock timeout")`.
func RuleFromExpression(expr string, kind Kind) (ClassifyRule, error) {
	env, err := cel.NewEnv(
		cel.Variable("code", cel.StringType),
		cel.Variable("message", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile rule %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build rule program: %w", err)
	}

	return func(err error) (Kind, bool) {
		code := ""
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			code = pgErr.Code
		}

		out, _, evalErr := prg.Eval(map[string]any{
			"code":    code,
			"message": err.Error(),
		})
		if evalErr != nil {
			return "", false
		}
		matched, ok := out.Value().(bool)
		if !ok || !matched {
			return "", false
		}
		return kind, true
	}, nil
}
