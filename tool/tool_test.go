package tool

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMust(t *testing.T) {
	testFunc := func() {}

	t.Run("valid function", func(t *testing.T) {
		assert.NotPanics(t, func() {
			def := Must(testFunc)
			assert.Equal(t, reflect.ValueOf(testFunc).Pointer(), reflect.ValueOf(def.Function).Pointer())
		})
	})

	t.Run("invalid function", func(t *testing.T) {
		assert.Panics(t, func() {
			Must("not a function")
		})
	})
}

func TestName(t *testing.T) {
	tests := []struct {
		name     string
		toolName string
	}{
		{
			name:     "simple name",
			toolName: "test_tool",
		},
		{
			name:     "name with spaces",
			toolName: "test tool name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testFunc := func() {}
			def, err := New(testFunc, Name(tt.toolName))
			require.NoError(t, err)
			assert.Equal(t, tt.toolName, def.Name)
		})
	}

	t.Run("defaults to function name", func(t *testing.T) {
		def, err := New(getWeather)
		require.NoError(t, err)
		assert.Equal(t, "getWeather", def.Name)
	})
}

func TestDescription(t *testing.T) {
	testFunc := func() {}
	def, err := New(testFunc, Description("A test tool"))
	require.NoError(t, err)
	assert.Equal(t, "A test tool", def.Description)
}

func TestParameters(t *testing.T) {
	tests := []struct {
		name       string
		parameters []string
		want       map[string]string
	}{
		{
			name:       "no parameters",
			parameters: []string{},
			want:       map[string]string{},
		},
		{
			name:       "single parameter",
			parameters: []string{"location"},
			want: map[string]string{
				"param0": "location",
			},
		},
		{
			name:       "multiple parameters",
			parameters: []string{"location", "unit"},
			want: map[string]string{
				"param0": "location",
				"param1": "unit",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testFunc := func(string, string) {}
			def, err := New(testFunc, Parameters(tt.parameters...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, def.Parameters)
		})
	}
}

func getWeather(location string, unit string) string { return "" }

func TestToNameAndSchema(t *testing.T) {
	def := Must(getWeather,
		Name("get_weather"),
		Parameters("location", "unit"),
	)

	name, schema := def.ToNameAndSchema()
	assert.Equal(t, "get_weather", name)
	require.NotNil(t, schema)
	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"location", "unit"}, schema.Required)

	loc, ok := schema.Properties.Get("location")
	require.True(t, ok)
	assert.Equal(t, "string", loc.Type)
}

func TestToCompletionTool(t *testing.T) {
	t.Run("nil function", func(t *testing.T) {
		def := Definition{Name: "broken"}
		_, err := def.ToCompletionTool()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken has nil function")
	})

	t.Run("full definition", func(t *testing.T) {
		def := Must(getWeather,
			Name("get_weather"),
			Description("Get the current weather for a location"),
			Parameters("location", "unit"),
		)

		wire, err := def.ToCompletionTool()
		require.NoError(t, err)
		assert.Equal(t, "function", wire.Type)
		assert.Equal(t, "get_weather", wire.Function.Name)
		assert.Equal(t, "Get the current weather for a location", wire.Function.Description)

		props, ok := wire.Function.Parameters["properties"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, props, "location")
		assert.Contains(t, props, "unit")
	})
}
