package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omnidoc/omnidoc/internal/log"
)

func TestNew_Validation(t *testing.T) {
	t.Run("nil genkit", func(t *testing.T) {
		_, err := New(nil, "googleai/gemini-2.5-flash", log.NewNop())
		assert.Error(t, err)
	})

	t.Run("empty model name", func(t *testing.T) {
		_, err := New(nil, "", log.NewNop())
		assert.Error(t, err)
	})
}
