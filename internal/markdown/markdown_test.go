package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	r := New()
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"bold", "**cosine**", []string{"<strong>cosine</strong>"}},
		{"fenced code", "```go\nx := 1\n```", []string{`<code class="language-go">`, "x := 1"}},
		{"table", "| a | b |\n|---|---|\n| 1 | 2 |", []string{"<table>", "<td>1</td>"}},
		{"hard wrap", "line one\nline two", []string{"line one<br>"}},
		{"raw html dropped", "<script>alert(1)</script>", []string{"<!-- raw HTML omitted -->"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Render(tc.in)
			require.NoError(t, err)
			for _, w := range tc.want {
				assert.Contains(t, got, w)
			}
			assert.NotContains(t, got, "<script>")
		})
	}
}
