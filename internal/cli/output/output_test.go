package output

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/jointab/pkg/core"
)

func sampleTable() *core.Table {
	return core.MustTable(
		core.MustColumn("id", core.TypeNumber, core.Int(1), core.Int(2)),
		core.MustColumn("name", core.TypeText, core.Text("Ann"), core.Missing()),
	)
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		mode  Mode
		isTTY bool
		want  Mode
	}{
		{ModeAuto, true, ModeText},
		{ModeAuto, false, ModeMarkdown},
		{"", false, ModeMarkdown},
		{ModeText, false, ModeText},
		{ModeJSON, true, ModeJSON},
		{ModeMarkdown, true, ModeMarkdown},
	}
	for _, tt := range tests {
		r := NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, tt.isTTY, tt.mode)
		assert.Equal(t, tt.want, r.EffectiveMode(), "mode=%q tty=%v", tt.mode, tt.isTTY)
	}
}

func TestRenderer_NotATerminal(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())
}

func TestRenderer_Table(t *testing.T) {
	tests := []struct {
		mode Mode
		want string
	}{
		{ModeMarkdown, "| id | name |\n| --- | --- |\n| 1 | Ann |\n| 2 | NULL |\n"},
		{ModeJSON, "[\n  {\"id\": 1, \"name\": \"Ann\"},\n  {\"id\": 2, \"name\": null}\n]\n"},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			out := &bytes.Buffer{}
			r := NewRendererWithTTY(out, &bytes.Buffer{}, false, tt.mode)
			require.NoError(t, r.Table(sampleTable()))
			assert.Equal(t, tt.want, out.String())
		})
	}

	out := &bytes.Buffer{}
	r := NewRendererWithTTY(out, &bytes.Buffer{}, false, ModeText)
	require.NoError(t, r.Table(sampleTable()))
	assert.Contains(t, out.String(), "Ann")
	assert.Contains(t, out.String(), "(2 rows)")
}

func TestRenderer_StatusLines(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	r := NewRendererWithTTY(out, errOut, false, ModeText)
	r.Success("done")
	r.Warning("careful")
	assert.Equal(t, "✓ done\n", out.String(), "no escape codes without a terminal")
	assert.Equal(t, "warning: careful\n", errOut.String())

	out.Reset()
	NewRendererWithTTY(out, errOut, false, ModeMarkdown).Success("done")
	assert.Equal(t, "**done**\n", out.String())

	out.Reset()
	NewRendererWithTTY(out, errOut, false, ModeJSON).Success("done")
	assert.Empty(t, out.String())
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	r := NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, false, ModeJSON)
	assert.Same(t, r, FromContext(WithRenderer(context.Background(), r)))
}

func TestRenderer_HeaderAndStatus(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewRendererWithTTY(out, &bytes.Buffer{}, false, ModeMarkdown)
	r.Header(2, "Data")
	r.StatusLine("data/orders.csv", "created")
	assert.Equal(t, "## Data\n\n- data/orders.csv (created)\n", out.String())

	out.Reset()
	r = NewRendererWithTTY(out, &bytes.Buffer{}, false, ModeText)
	r.Header(1, "Data")
	r.StatusLine("a.csv", "created")
	assert.Equal(t, "Data\n  ✓ a.csv created\n", out.String())
}
