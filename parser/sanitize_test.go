package parser

import (
	"strings"
	"testing"

	"github.com/bakape/lunachat/test"
)

func TestSanitize(t *testing.T) {
	t.Parallel()

	s := NewSanitizer()
	cases := [...]struct {
		name, in, out string
	}{
		{"plain", "hello", "hello"},
		{"allowed tag", "<b>hello</b>", "<b>hello</b>"},
		{"script", `<script>alert(1)</script>hi`, "hi"},
		{"event handler", `<a href="https://example.com" onclick="x()">l</a>`, ""},
		{"trim", "  hi  ", "hi"},
	}
	for i := range cases {
		c := cases[i]
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			res := s.Clean(c.in)
			if c.out != "" {
				test.AssertEquals(t, res, c.out)
			}
			if strings.Contains(res, "onclick") || strings.Contains(res, "script") {
				t.Fatalf("unsafe output: %s", res)
			}

			// Idempotent
			test.AssertEquals(t, s.Clean(res), res)
		})
	}
}

func TestSanitizeKeepsStyle(t *testing.T) {
	t.Parallel()

	res := NewSanitizer().Clean(`<span style="color: red">red</span>`)
	if !strings.Contains(res, "style=") {
		t.Fatalf("style attribute stripped: %s", res)
	}
}
