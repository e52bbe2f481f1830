// internal/service/loyalty/infrastructure/rule/cel_rule_engine.go
package rule

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"rewardledger/internal/service/loyalty/domain/port"
)

// CELRuleEngine 是 port.RuleEngine 接口的一个具体实现。
// 它把领域的 EarnFact 适配为 CEL 的变量绑定，编译结果按表达式文本缓存。
type CELRuleEngine struct {
	env      *cel.Env
	programs sync.Map // rule string -> cel.Program
}

// NewCELRuleEngine 创建规则引擎，声明表达式可用的变量
func NewCELRuleEngine() (*CELRuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("category", cel.StringType),
		cel.Variable("tier", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cel env: %w", err)
	}
	return &CELRuleEngine{env: env}, nil
}

func (e *CELRuleEngine) Validate(rule string) error {
	_, err := e.program(rule)
	return err
}

// Evaluate 实现了 port.RuleEngine 接口
func (e *CELRuleEngine) Evaluate(rule string, fact port.EarnFact) (bool, error) {
	prg, err := e.program(rule)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]interface{}{
		"amount":   fact.Amount,
		"category": fact.Category,
		"tier":     string(fact.Tier),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate earn rule: %w", err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("earn rule returned %T, want bool", out.Value())
	}
	return ok, nil
}

func (e *CELRuleEngine) program(rule string) (cel.Program, error) {
	if cached, ok := e.programs.Load(rule); ok {
		return cached.(cel.Program), nil
	}
	ast, iss := e.env.Compile(rule)
	if iss.Err() != nil {
		return nil, fmt.Errorf("compile earn rule: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("earn rule must evaluate to bool, got %s", ast.OutputType())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build earn rule program: %w", err)
	}
	e.programs.Store(rule, prg)
	return prg, nil
}
