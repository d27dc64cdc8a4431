package nodes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// ErrScript — ошибка выполнения JavaScript.
var ErrScript = errors.New("script execution failed")

// scriptEnv — JavaScript-окружение одного выполнения узла.
//
// Глобальные переменные:
//   - input   — данные от предшественников
//   - items   — input как массив (input, если он уже массив, иначе [input])
//   - trigger — данные запуска
//   - nodes   — выходы выполненных узлов (nodeID → output)
//   - console — log/info/warn/error пишут в slog
type scriptEnv struct {
	vm *goja.Runtime
}

func newScriptEnv(req *Request, logger *slog.Logger) (*scriptEnv, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	if req.Logger != nil {
		logger = req.Logger
	}
	console := vm.NewObject()
	for name, level := range map[string]slog.Level{
		"log":   slog.LevelInfo,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		lvl := level
		if err := console.Set(name, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, a := range call.Arguments {
				parts = append(parts, fmt.Sprint(a.Export()))
			}
			logger.Log(context.Background(), lvl, strings.Join(parts, " "), "source", "script")
			return goja.Undefined()
		}); err != nil {
			return nil, err
		}
	}

	input := req.Input()
	items, ok := input.([]any)
	if !ok {
		if input == nil {
			items = []any{}
		} else {
			items = []any{input}
		}
	}

	outputs := make(map[string]any)
	var trigger map[string]any
	if req.Template != nil {
		trigger = req.Template.Trigger
		for id, nc := range req.Template.Nodes {
			outputs[id] = nc.Output
		}
	}

	globals := map[string]any{
		"console": console,
		"input":   input,
		"items":   items,
		"trigger": trigger,
		"nodes":   outputs,
	}
	for name, val := range globals {
		if err := vm.Set(name, val); err != nil {
			return nil, err
		}
	}

	return &scriptEnv{vm: vm}, nil
}

// run выполняет тело функции и возвращает экспортированный результат.
// Отмена ctx прерывает выполнение скрипта.
func (e *scriptEnv) run(ctx context.Context, body string) (goja.Value, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := e.vm.RunString("(function() {\n" + body + "\n})()")
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, fmt.Errorf("%w: %v", ErrNodeCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}
	return val, nil
}

// CodeNode — узел произвольного JavaScript.
//
// Свойство code — тело функции; return задаёт output узла.
// Если скрипт ничего не вернул, output = input.
type CodeNode struct {
	base
	logger *slog.Logger
}

// NewCodeNode создаёт новый CodeNode.
func NewCodeNode(logger *slog.Logger) *CodeNode {
	if logger == nil {
		logger = slog.Default()
	}
	return &CodeNode{
		base:   newBase(KindCode),
		logger: logger,
	}
}

// Execute выполняет скрипт.
func (k *CodeNode) Execute(ctx context.Context, req *Request) (*Result, error) {
	code := GetString(req.Properties, "code")
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: %s: code is required", ErrInvalidConfig, KindCode)
	}

	env, err := newScriptEnv(req, k.logger)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	val, err := env.run(ctx, code)
	if err != nil {
		return nil, err
	}

	var output any
	if val == nil || goja.IsUndefined(val) {
		output = req.Input()
	} else {
		output = val.Export()
	}

	return &Result{
		Output:  output,
		Message: k.CompleteMessage(req),
		Data:    map[string]any{"scriptMs": time.Since(start).Milliseconds()},
	}, nil
}

// IfNode — ветвление по условию.
//
// Свойство condition — JavaScript-выражение.
// Output: {"branch": "true"|"false", "result": bool, "data": input}.
type IfNode struct{ base }

// NewIfNode создаёт новый IfNode.
func NewIfNode() *IfNode {
	return &IfNode{newBase(KindIf)}
}

// Execute вычисляет условие.
func (k *IfNode) Execute(ctx context.Context, req *Request) (*Result, error) {
	cond := GetString(req.Properties, "condition")
	if strings.TrimSpace(cond) == "" {
		return nil, fmt.Errorf("%w: %s: condition is required", ErrInvalidConfig, KindIf)
	}

	env, err := newScriptEnv(req, slog.Default())
	if err != nil {
		return nil, err
	}

	val, err := env.run(ctx, "return ("+cond+");")
	if err != nil {
		return nil, err
	}
	result := val.ToBoolean()

	branch := "false"
	if result {
		branch = "true"
	}

	return &Result{
		Output: map[string]any{
			"branch": branch,
			"result": result,
			"data":   req.Input(),
		},
		Message: "Condition evaluated: " + strings.ToUpper(branch),
		Data:    map[string]any{"condition": cond, "result": result},
	}, nil
}
