package pipeline

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestGoldmarkConverter_Formulas(t *testing.T) {
	t.Parallel()

	conv := NewGoldmarkConverter()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "inline and display in document order",
			input: "Euler: $e^{i\\pi} + 1 = 0$.\n\n$$\\int_0^1 x\\,dx$$\n",
			want:  []string{`e^{i\pi} + 1 = 0`, `\int_0^1 x\,dx`},
		},
		{
			name:  "duplicates collapse",
			input: "$x^2$ and $y^2$ and again $x^2$",
			want:  []string{"x^2", "y^2"},
		},
		{
			name:  "currency is not math",
			input: "It costs $5 and $10 today.",
			want:  []string{},
		},
		{
			name:  "space after opening dollar is not math",
			input: "a $ b$ c",
			want:  []string{},
		},
		{
			name:  "code span is not math",
			input: "Use `$x$` literally, but $y$ is math.",
			want:  []string{"y"},
		},
		{
			name:  "fenced code is not math",
			input: "```\n$x$\n```\n",
			want:  []string{},
		},
		{
			name:  "escaped dollar inside formula",
			input: `$a\$b$`,
			want:  []string{`a\$b`},
		},
		{
			name:  "single character formula",
			input: "let $x$ be real",
			want:  []string{"x"},
		},
		{
			name:  "dollar after space does not close",
			input: "$a $ b$",
			want:  []string{"a $ b"},
		},
		{
			name:  "unclosed is text",
			input: "$x^2 without end",
			want:  []string{},
		},
		{
			name:  "empty display is text",
			input: "$$ $$",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := conv.Formulas(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Formulas(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestGoldmarkConverter_ToHTML(t *testing.T) {
	t.Parallel()

	conv := NewGoldmarkConverter().WithTitle("Notes <1>")
	ctx := context.Background()

	images := map[string]string{
		"x^2": "data:image/png;base64,AAAA",
		"a+b": "data:image/png;base64,BBBB",
	}

	got, err := conv.ToHTML(ctx, "Inline $x^2$, display $$a+b$$, missing $z<1$.", images)
	if err != nil {
		t.Fatalf("ToHTML() error = %v", err)
	}

	wants := []string{
		"<title>Notes &lt;1&gt;</title>",
		`<img class="math math-inline" src="data:image/png;base64,AAAA" alt="x^2" />`,
		`<span class="math-display"><img class="math" src="data:image/png;base64,BBBB" alt="a+b" /></span>`,
		`<code class="math math-missing">$z&lt;1$</code>`,
	}
	for _, want := range wants {
		if !strings.Contains(got, want) {
			t.Errorf("ToHTML() missing %q in:\n%s", want, got)
		}
	}
}

func TestGoldmarkConverter_ToHTML_HighlightsAndMarks(t *testing.T) {
	t.Parallel()

	conv := NewGoldmarkConverter()
	pre := &CommonMarkPreprocessor{}
	ctx := context.Background()

	src := pre.PreprocessMarkdown(ctx, "==note==\n\n```go\nfunc main() {}\n```\n")
	got, err := conv.ToHTML(ctx, src, nil)
	if err != nil {
		t.Fatalf("ToHTML() error = %v", err)
	}
	if !strings.Contains(got, "<mark>note</mark>") {
		t.Errorf("ToHTML() missing <mark>: %s", got)
	}
	if !strings.Contains(got, `class="chroma"`) {
		t.Errorf("ToHTML() missing chroma highlighting: %s", got)
	}
}

func TestGoldmarkConverter_ToHTML_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGoldmarkConverter().ToHTML(ctx, "$x$", nil)
	if err != context.Canceled {
		t.Errorf("ToHTML() error = %v, want context.Canceled", err)
	}
}
