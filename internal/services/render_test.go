package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	t.Run("substitutes positional variables", func(t *testing.T) {
		out := RenderTemplate("Hi {{1}}, your order {{2}} shipped", map[string]string{
			"1": "Ada",
			"2": "#42",
		})
		assert.Equal(t, "Hi Ada, your order #42 shipped", out)
	})

	t.Run("no variables leaves body untouched", func(t *testing.T) {
		out := RenderTemplate("Plain body", nil)
		assert.Equal(t, "Plain body", out)
	})

	t.Run("missing binding leaves placeholder visible", func(t *testing.T) {
		out := RenderTemplate("Hi {{1}} and {{2}}", map[string]string{"1": "Ada", "3": "x"})
		assert.Equal(t, "Hi Ada and {{2}}", out)
	})

	t.Run("repeated placeholder", func(t *testing.T) {
		out := RenderTemplate("{{1}} {{1}}", map[string]string{"1": "go"})
		assert.Equal(t, "go go", out)
	})
}
