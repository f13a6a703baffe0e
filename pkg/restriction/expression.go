package restriction

import (
	"sync"

	"github.com/google/cel-go/cel"
)

// Expression operators: the expression must evaluate to true or to false.
const (
	OpTrue  = "true"
	OpFalse = "false"
)

var expressionOperators = []string{OpTrue, OpFalse}

// StageScoreLister is implemented by Values that can list every stage
// score at once. Expressions see an empty stageScores map otherwise.
type StageScoreLister interface {
	StageScores() map[string]int
}

var expressionEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("totalScore", cel.IntType),
		cel.Variable("maxScore", cel.IntType),
		cel.Variable("stageScores", cel.MapType(cel.StringType, cel.IntType)),
		cel.Variable("now", cel.TimestampType),
	)
})

// Expression evaluates an authored CEL boolean expression, for example
// `totalScore >= 10 && stageScores["cave"] > 2`.
type Expression struct {
	expected bool
	program  cel.Program
	values   Values
}

func newExpression(p Params, values Values) (Restriction, bool) {
	if !isValidOperator(p.Operator, expressionOperators) || p.Value == "" {
		return nil, false
	}
	env, err := expressionEnv()
	if err != nil {
		return nil, false
	}
	ast, iss := env.Compile(p.Value)
	if iss.Err() != nil || !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, false
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, false
	}
	return &Expression{expected: p.Operator == OpTrue, program: prg, values: values}, true
}

func (r *Expression) Type() string             { return TypeExpression }
func (r *Expression) ValidOperators() []string { return expressionOperators }

// Check passes when evaluation fails or does not produce a boolean.
func (r *Expression) Check() bool {
	scores := map[string]int64{}
	if lister, ok := r.values.(StageScoreLister); ok {
		for id, score := range lister.StageScores() {
			scores[id] = int64(score)
		}
	}
	out, _, err := r.program.Eval(map[string]any{
		"totalScore":  int64(r.values.TotalScore()),
		"maxScore":    int64(r.values.MaxScore()),
		"stageScores": scores,
		"now":         r.values.Now(),
	})
	if err != nil {
		return true
	}
	result, ok := out.Value().(bool)
	if !ok {
		return true
	}
	return result == r.expected
}
