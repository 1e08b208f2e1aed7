package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, input string) Node {
	t.Helper()
	node, err := Parse(input)
	require.NoError(t, err)
	return node
}

func TestParse_Precedence(t *testing.T) {
	node := mustParse(t, "1 + 2 * 3")
	v, ok := Evaluate(node, nil)
	require.True(t, ok)
	assert.Equal(t, 7.0, v)
}

func TestParse_Parentheses(t *testing.T) {
	node := mustParse(t, "(1 + 2) * 3")
	v, ok := Evaluate(node, nil)
	require.True(t, ok)
	assert.Equal(t, 9.0, v)
}

func TestParse_UnaryMinus(t *testing.T) {
	node := mustParse(t, "-2 * -3")
	v, ok := Evaluate(node, nil)
	require.True(t, ok)
	assert.Equal(t, 6.0, v)
}

func TestParse_LeftAssociativity(t *testing.T) {
	node := mustParse(t, "10 - 4 - 3")
	v, ok := Evaluate(node, nil)
	require.True(t, ok)
	assert.Equal(t, 3.0, v)
}

func TestParse_Errors(t *testing.T) {
	for _, input := range []string{
		"",
		"1 +",
		"(1 + 2",
		"revenue @ cost",
		"NULLIF(1)",
		"NULLIF(1, 2",
		"1 2",
		"foo(1)",
	} {
		_, err := Parse(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestEvaluate_Identifiers(t *testing.T) {
	node := mustParse(t, "revenue / order_count")
	v, ok := Evaluate(node, map[string]interface{}{
		"revenue":     int64(1000),
		"order_count": int64(200),
	})
	require.True(t, ok)
	assert.Equal(t, 5.0, v)
}

func TestEvaluate_MissingIdentifierIsNull(t *testing.T) {
	node := mustParse(t, "revenue / order_count")
	_, ok := Evaluate(node, map[string]interface{}{"revenue": int64(1000)})
	assert.False(t, ok)
}

func TestEvaluate_NullOperandIsNull(t *testing.T) {
	node := mustParse(t, "revenue + 1")
	_, ok := Evaluate(node, map[string]interface{}{"revenue": nil})
	assert.False(t, ok)
}

func TestEvaluate_DivideByZeroIsNull(t *testing.T) {
	node := mustParse(t, "revenue / order_count")
	_, ok := Evaluate(node, map[string]interface{}{
		"revenue":     int64(1500),
		"order_count": int64(0),
	})
	assert.False(t, ok)
}

func TestEvaluate_NullIfGuardsDivision(t *testing.T) {
	node := mustParse(t, "revenue / NULLIF(order_count, 0)")

	v, ok := Evaluate(node, map[string]interface{}{
		"revenue":     int64(1000),
		"order_count": int64(200),
	})
	require.True(t, ok)
	assert.Equal(t, 5.0, v)

	_, ok = Evaluate(node, map[string]interface{}{
		"revenue":     int64(1500),
		"order_count": int64(0),
	})
	assert.False(t, ok)
}

func TestEvaluate_NullIfCaseInsensitive(t *testing.T) {
	node := mustParse(t, "nullif(2, 3)")
	v, ok := Evaluate(node, nil)
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
}

func TestEvaluate_StringNumbersCoerce(t *testing.T) {
	node := mustParse(t, "revenue * 2")
	v, ok := Evaluate(node, map[string]interface{}{"revenue": "21.5"})
	require.True(t, ok)
	assert.Equal(t, 43.0, v)
}

func TestSQL_WrapsIdentifiers(t *testing.T) {
	node := mustParse(t, "revenue / NULLIF(order_count, 0)")
	sql := node.SQL(func(id string) string { return "CAST(" + id + " AS DOUBLE)" })
	assert.Equal(t, "(CAST(revenue AS DOUBLE) / NULLIF(CAST(order_count AS DOUBLE), 0))", sql)
}

func TestIdentifiers_DistinctInOrder(t *testing.T) {
	node := mustParse(t, "profit / NULLIF(revenue, 0) + revenue - cost")
	assert.Equal(t, []string{"profit", "revenue", "cost"}, Identifiers(node))
}
