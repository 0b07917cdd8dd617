package tool

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/chainadapt/anyllm/completion"
	"github.com/chainadapt/anyllm/pkg/jsonx"
	"github.com/chainadapt/anyllm/pkg/reflectx"
	"github.com/chainadapt/anyllm/pkg/stdx"
	"github.com/fogfish/opts"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Definition describes a tool the model may call: its name, description,
// parameter names, and the Go function carrying the signature the parameter
// schema is reflected from.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]string
	Function    any
}

var functionReflector = jsonschema.Reflector{
	AllowAdditionalProperties: true,
	DoNotReference:            true,
}

// ToNameAndSchema resolves the tool's name and reflects its parameter
// schema from the function signature.
func (td Definition) ToNameAndSchema() (string, *jsonschema.Schema) {
	return functionDefinitionJSON(&functionReflector, td)
}

// ToCompletionTool converts the definition into the wire tool format sent
// to the completion capability.
func (td Definition) ToCompletionTool() (completion.Tool, error) {
	if td.Function == nil {
		return completion.Tool{}, fmt.Errorf("tool %s has nil function", td.Name)
	}

	name, schema := td.ToNameAndSchema()
	parameters, err := jsonx.ToDynamicJSON(schema)
	if err != nil {
		return completion.Tool{}, fmt.Errorf("failed to convert tool %s schema: %w", name, err)
	}

	fn := completion.ToolFunction{
		Name:       name,
		Parameters: parameters,
	}
	if strings.TrimSpace(td.Description) != "" {
		fn.Description = td.Description
	}

	return completion.Tool{Type: "function", Function: fn}, nil
}

func functionDefinitionJSON(reflector *jsonschema.Reflector, f Definition) (string, *jsonschema.Schema) {
	val := reflect.ValueOf(f.Function)
	typ := val.Type()

	name := f.Name
	if name == "" && typ.Kind() == reflect.Func {
		name = reflectx.FunctionName(f.Function)
	}

	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: orderedmap.New[string, *jsonschema.Schema](),
	}

	if typ.Kind() == reflect.Func {
		numIn := typ.NumIn()
		startIdx := 0
		// Skip receiver for methods
		if numIn > 0 && typ.In(0).Kind() == reflect.Struct {
			startIdx = 1
		}

		var required []string
		for i := startIdx; i < numIn; i++ {
			paramType := typ.In(i)

			paramName := fmt.Sprintf("param%d", i-startIdx)
			if f.Parameters != nil {
				if p, ok := f.Parameters[paramName]; ok {
					paramName = p
				}
			}

			propSchema := reflector.ReflectFromType(paramType)
			propSchema.Version = ""
			schema.Properties.Set(paramName, propSchema)
			required = append(required, paramName)
		}
		if len(required) > 0 {
			schema.Required = required
		}
	}

	return name, schema
}

// Option configures a tool Definition.
type Option = opts.Option[Definition]

// Must wraps New and panics on error. Use it for definitions declared at
// package init where a failure is a programming mistake.
func Must(f any, options ...Option) Definition {
	return stdx.Must1(New(f, options...))
}

// New creates a Definition from the provided function and options.
func New(f any, options ...Option) (Definition, error) {
	if !reflectx.IsFunction(f) {
		return Definition{}, fmt.Errorf("provided value is not a function")
	}

	var def Definition
	if err := opts.Apply(&def, options); err != nil {
		return Definition{}, err
	}
	if def.Name == "" {
		def.Name = reflectx.FunctionName(f)
	}

	def.Function = f
	return def, nil
}

// Name sets the tool's name.
var Name = opts.ForName[Definition, string]("Name")

// Description sets the tool's human-readable description.
var Description = opts.ForName[Definition, string]("Description")

// Parameters names the function's positional parameters, in order, for the
// generated schema.
func Parameters(parameters ...string) opts.Option[Definition] {
	return opts.Type[Definition](func(o *Definition) error {
		o.Parameters = make(map[string]string, len(parameters))
		for i, p := range parameters {
			o.Parameters[fmt.Sprintf("param%d", i)] = p
		}
		return nil
	})
}
