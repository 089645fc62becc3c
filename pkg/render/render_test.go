package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParsesEmbeddedTemplates(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	for _, name := range []string{"index.html.tmpl", "device.html.tmpl", "header", "footer"} {
		assert.NotNil(t, e.templates.Lookup(name), name)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	_, err = e.Render("missing.tmpl", nil)
	assert.Error(t, err)

	var nilEngine *Engine
	_, err = nilEngine.Render("index.html.tmpl", nil)
	assert.Error(t, err)
}

func TestFuncs(t *testing.T) {
	f := funcs()
	userOrDash := f["userOrDash"].(func(*string) string)
	empty, alice := "", "alice"
	assert.Equal(t, "-", userOrDash(nil))
	assert.Equal(t, "-", userOrDash(&empty))
	assert.Equal(t, "alice", userOrDash(&alice))

	pathEscape := f["pathEscape"].(func(string) string)
	assert.Equal(t, "SN%2F001", pathEscape("SN/001"))
}
