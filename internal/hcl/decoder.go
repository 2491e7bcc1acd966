package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/tryfunc"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/omnibuild/internal/config"
	"github.com/vk/omnibuild/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// inlineVar is the root variable name that makes a file a factory.
const inlineVar = "inline"

// Decoder is the HCL-specific implementation of the config.Decoder interface.
type Decoder struct{}

// NewDecoder creates a new HCL config decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode parses an HCL config file. See the package documentation for the
// variables available to expressions.
func (d *Decoder) Decode(ctx context.Context, path string, data []byte) (*config.Export, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL decoder started.", "path", path)

	file, diags := hclsyntax.ParseConfig(data, path, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %w", diags)
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %w", diags)
	}

	dir := filepath.Dir(path)
	if !referencesInline(attrs) {
		m, err := evaluate(attrs, dir, config.Map{})
		if err != nil {
			return nil, err
		}
		logger.Debug("HCL config evaluated statically.", "attributes", len(m))
		return config.Static(m), nil
	}

	logger.Debug("HCL config references inline values, deferring evaluation.")
	return &config.Export{
		Factory: func(_ context.Context, inline config.Map) (config.Map, error) {
			return evaluate(attrs, dir, inline)
		},
	}, nil
}

func referencesInline(attrs hcl.Attributes) bool {
	for _, attr := range attrs {
		for _, traversal := range attr.Expr.Variables() {
			if traversal.RootName() == inlineVar {
				return true
			}
		}
	}
	return false
}

// evaluate computes every attribute in name order so error output is stable.
func evaluate(attrs hcl.Attributes, dir string, inline config.Map) (config.Map, error) {
	evalCtx, err := newEvalContext(dir, inline)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(config.Map, len(attrs))
	for _, name := range names {
		val, diags := attrs[name].Expr.Value(evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to evaluate %q: %w", name, diags)
		}
		goVal, err := FromCty(val)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %q: %w", name, err)
		}
		if goVal != nil {
			out[name] = goVal
		}
	}
	return out, nil
}

func newEvalContext(dir string, inline config.Map) (*hcl.EvalContext, error) {
	inlineVal, err := ToCty(inline)
	if err != nil {
		return nil, fmt.Errorf("converting inline config: %w", err)
	}

	env := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = cty.StringVal(v)
		}
	}
	envVal := cty.EmptyObjectVal
	if len(env) > 0 {
		envVal = cty.ObjectVal(env)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			inlineVar: inlineVal,
			"env":     envVal,
			"cwd":     cty.StringVal(dir),
		},
		Functions: map[string]function.Function{
			"coalesce": stdlib.CoalesceFunc,
			"concat":   stdlib.ConcatFunc,
			"format":   stdlib.FormatFunc,
			"join":     stdlib.JoinFunc,
			"length":   stdlib.LengthFunc,
			"lower":    stdlib.LowerFunc,
			"split":    stdlib.SplitFunc,
			"upper":    stdlib.UpperFunc,
			"try":      tryfunc.TryFunc,
			"can":      tryfunc.CanFunc,
		},
	}, nil
}
