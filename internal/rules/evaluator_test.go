package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExprEvaluator(t *testing.T) {
	e := NewExprEvaluator()

	tests := []struct {
		name       string
		expression string
		env        map[string]any
		want       bool
		wantErr    bool
	}{
		{"equality", `city == "mumbai"`, map[string]any{"city": "mumbai"}, true, false},
		{"inequality", `count > 3`, map[string]any{"count": 5}, true, false},
		{"false result", `count > 3`, map[string]any{"count": 1}, false, false},
		{"compound", `plan == "pro" and seats >= 2`, map[string]any{"plan": "pro", "seats": 2}, true, false},
		{"variable named like a builtin", `len == 5`, map[string]any{"len": 5}, true, false},
		{"non-boolean result", `1 + 1`, nil, false, true},
		{"missing variable", `missing == "x"`, map[string]any{}, false, true},
		{"invalid syntax", `city ==`, nil, false, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Evaluate(tc.expression, tc.env)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExprEvaluatorReusesCompiledPrograms(t *testing.T) {
	e := NewExprEvaluator()

	_, err := e.Evaluate(`n == 1`, map[string]any{"n": 1})
	require.NoError(t, err)

	// Second run hits the cache; different env, same program.
	got, err := e.Evaluate(`n == 1`, map[string]any{"n": 2})
	require.NoError(t, err)
	assert.False(t, got)
	assert.Len(t, e.cache, 1)
}
