package cmark

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"pkt.systems/prettymd"
)

func prettify(t *testing.T, src string, opts ...prettymd.Option) string {
	t.Helper()
	out, err := Prettify([]byte(src), opts...)
	if err != nil {
		t.Fatalf("Prettify(%q): %v", src, err)
	}
	return out
}

func TestPrettify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "inline spans", src: "Lorem *ipsum* dolor `sit`.", want: "Lorem *ipsum* dolor `sit`."},
		{name: "tight list", src: "- Foo\n- Bar\n- Baz", want: "- Foo\n- Bar\n- Baz"},
		{name: "quote paragraphs", src: "> Lorem ipsum\n>\n> Dolor sit", want: "> Lorem ipsum\n>\n> Dolor sit"},
		{name: "loose nested list", src: "- Foo\n\n  - Bar", want: "- Foo\n\n  - Bar"},
		{name: "quote in item", src: "- > Foo\n  >\n  > Bar", want: "- > Foo\n  >\n  > Bar"},
		{name: "renumbered list", src: "1. a\n1. b\n1. c\n", want: "1. a\n2. b\n3. c"},
		{name: "custom start", src: "3. a\n4. b\n", want: "3. a\n4. b"},
		{name: "setext and bullets", src: "Title\n-----\n\n* one\n+ two\n", want: "## Title\n\n- one\n\n* two"},
		{name: "soft break", src: "Hello\nworld\n", want: "Hello world"},
		{name: "emphasis style", src: "__bold__ and _it_", want: "**bold** and *it*"},
		{name: "rule", src: "a\n\n---\n", want: "a\n\n***"},
		{name: "escaped heading", src: "\\# not heading\n", want: "\\# not heading"},
		{name: "escaped list", src: "1\\. not a list\n", want: "1\\. not a list"},
		{name: "entities", src: "&amp; &copy; \\* x\n", want: "& © \\* x"},
		{name: "hard breaks", src: "one  \ntwo\\\nthree\n", want: "one  \ntwo  \nthree"},
		{name: "fenced code", src: "~~~go\nx := 1\n~~~\n", want: "```go\nx := 1\n```"},
		{name: "indented code", src: "para\n\n    code\n", want: "para\n\n    code"},
		{name: "autolink", src: "<https://example.com>", want: "[https://example.com](https://example.com)"},
		{name: "email autolink", src: "<me@example.com>", want: "[me@example.com](mailto:me@example.com)"},
		{name: "link title", src: "[a](<b c> 'd')", want: "[a](<b c> \"d\")"},
		{name: "html block", src: "<div>\nraw\n</div>\n\ntext", want: "<div>\nraw\n</div>\n\ntext"},
		{name: "empty", src: "", want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := prettify(t, tc.src); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestPrettifyOptions(t *testing.T) {
	t.Parallel()
	got := prettify(t, "*a*\nb", prettymd.WithEmphasis('_'), prettymd.WithSoftBreak(prettymd.SoftBreakNewline))
	if want := "_a_\nb"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestPrettifyRejectsBinary(t *testing.T) {
	t.Parallel()
	_, err := Prettify([]byte{'#', ' ', 0x00})
	if !errors.Is(err, prettymd.ErrBinaryInput) {
		t.Fatalf("expected ErrBinaryInput, got %v", err)
	}
	_, err = Prettify([]byte{0xff, 0xfe})
	if !errors.Is(err, prettymd.ErrInvalidUTF8) {
		t.Fatalf("expected ErrInvalidUTF8, got %v", err)
	}
}

var roundTripCorpus = []string{
	"# Title\n\nSome *emphasis*, **strong** and `code`.\n",
	"> quote\n> continues\n\n- a\n- b\n  - c\n\n1. one\n2. two\n",
	"```go\nfunc main() {}\n```\n\n    indented\n",
	"[link](https://example.com \"title\") and ![img](a.png)\n",
	"Line one  \nline two\\\nline three\n",
	"<div>\nraw\n</div>\n\ntext <b>inline</b>\n",
	"***\n\nplain and 2 * 3 and 1) x\n",
	"\\# not heading\n\n\\- not list\n\n1\\. not list\n\n\\> not quote\n",
	"- a\n\n- b\n",
	"- a\n\n* b\n",
	"<https://example.com> and <me@example.com>\n",
	"3. a\n4. b\n",
	"&amp; &copy; \\* literal \\_x\\_\n",
	"***bold italic*** and *a **b** c*\n",
	"## Heading with `code` and [link](u)\n",
	"> - quoted list\n>   continued\n>\n> ```\n> code\n> ```\n",
	"Text with \\[brackets\\] and \\<angle\\> and pipe \\|.\n",
	"1. first\n\n   second paragraph\n\n2. next\n",
	"*a*_b_\n",
	"**a*b***\n",
	"***a***b\n",
	"**a** *b* **c**_d_\n",
	"Done!!\n",
	"Hello! World!\n",
	"!!!\n\n! [x](u)\n",
	"wow\\![x](u) and ![img](i.png)!\n",
}

// normalize merges adjacent text and reads soft breaks as spaces, the
// equivalence the printer preserves.
func normalize(events []prettymd.Event) []prettymd.Event {
	var out []prettymd.Event
	for _, ev := range events {
		if ev.Kind == prettymd.EventSoftBreak {
			ev = prettymd.Text(" ")
		}
		if ev.Kind == prettymd.EventText && len(out) > 0 && out[len(out)-1].Kind == prettymd.EventText {
			out[len(out)-1].Text += ev.Text
			continue
		}
		out = append(out, ev)
	}
	return out
}

func checkRoundTrip(t *testing.T, src string, opts ...prettymd.Option) {
	t.Helper()
	first, err := Events([]byte(src))
	if err != nil {
		t.Fatalf("Events(%q): %v", src, err)
	}
	out := prettify(t, src, opts...)
	second, err := Events([]byte(out))
	if err != nil {
		t.Fatalf("Events(%q): %v", out, err)
	}
	if !slices.Equal(normalize(first), normalize(second)) {
		t.Fatalf("round trip changed events\nsource: %q\noutput: %q\nbefore: %v\nafter:  %v", src, out, first, second)
	}
	if again := prettify(t, out, opts...); again != out {
		t.Fatalf("output is not stable\nfirst:  %q\nsecond: %q", out, again)
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	for _, src := range roundTripCorpus {
		checkRoundTrip(t, src)
	}
}

func TestRoundTripUnderscorePrimary(t *testing.T) {
	t.Parallel()
	for _, src := range []string{
		"a*b*c\n",
		"*x* and _y_ and **z**\n",
		"*a*_b_\n",
		"**a*b***\n",
	} {
		checkRoundTrip(t, src, prettymd.WithEmphasis('_'))
	}
}

func TestPrettifyBangIsStable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		src  string
		want string
	}{
		{src: "Hello!", want: "Hello!"},
		{src: "Done!!", want: "Done!!"},
		{src: "Done\\!\\!", want: "Done!!"},
		{src: "wow\\![x](u)", want: "wow\\![x](u)"},
	}
	for _, tc := range tests {
		got := prettify(t, tc.src)
		if got != tc.want {
			t.Fatalf("Prettify(%q): expected %q, got %q", tc.src, tc.want, got)
		}
		if again := prettify(t, got); again != got {
			t.Fatalf("Prettify(%q) is not stable: %q then %q", tc.src, got, again)
		}
	}
}

func TestEvents(t *testing.T) {
	t.Parallel()
	got, err := Events([]byte("*a*"))
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	want := []prettymd.Event{
		prettymd.Start(prettymd.Paragraph()),
		prettymd.Start(prettymd.Emphasis()),
		prettymd.Text("a"),
		prettymd.End(prettymd.Emphasis()),
		prettymd.End(prettymd.Paragraph()),
	}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestEventsTightListHasNoParagraphs(t *testing.T) {
	t.Parallel()
	got, err := Events([]byte("- a\n- b\n"))
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	for _, ev := range got {
		if ev.Tag.Kind == prettymd.TagParagraph && (ev.Kind == prettymd.EventStart || ev.Kind == prettymd.EventEnd) {
			t.Fatalf("unexpected paragraph event in %v", got)
		}
	}
}

func TestAllStopsEarly(t *testing.T) {
	t.Parallel()
	n := 0
	for range All([]byte("# a\n\nb\n\nc\n")) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("expected to stop after 2 events, got %d", n)
	}
}

func TestEmitIntoPrinter(t *testing.T) {
	t.Parallel()
	p := prettymd.NewPrinter()
	if err := p.PushSeq(All([]byte("Title\n===\n"))); err != nil {
		t.Fatalf("PushSeq: %v", err)
	}
	out, err := p.Finish()
	if err != nil || out != "# Title" {
		t.Fatalf("expected %q, got %q (%v)", "# Title", out, err)
	}
	if err := Emit([]byte("x"), nil); err == nil {
		t.Fatalf("expected error for nil sink")
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	err := Format(FormatRequest{Reader: strings.NewReader("Title\n===\n\n+ a\n"), Writer: &out})
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if want := "# Title\n\n- a\n"; out.String() != want {
		t.Fatalf("expected %q, got %q", want, out.String())
	}
	if err := Format(FormatRequest{Writer: &out}); err == nil {
		t.Fatalf("expected error for nil reader")
	}
	if err := Format(FormatRequest{Reader: strings.NewReader("")}); err == nil {
		t.Fatalf("expected error for nil writer")
	}
}

func TestHTTPFormat(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("__hi__\n"))
	}))
	defer srv.Close()

	var out bytes.Buffer
	if err := HTTPFormat(context.Background(), HTTPFormatRequest{URL: srv.URL + "/doc.md", Writer: &out}); err != nil {
		t.Fatalf("HTTPFormat: %v", err)
	}
	if out.String() != "**hi**\n" {
		t.Fatalf("unexpected output: %q", out.String())
	}
	if err := HTTPFormat(context.Background(), HTTPFormatRequest{URL: srv.URL + "/missing", Writer: &out}); err == nil {
		t.Fatalf("expected error for 404")
	}
	if err := HTTPFormat(context.Background(), HTTPFormatRequest{URL: "ftp://example.com/x", Writer: &out}); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}

func TestDisplay(t *testing.T) {
	t.Parallel()
	if got := fmt.Sprint(Display("Hello\nworld\n")); got != "Hello world" {
		t.Fatalf("unexpected display: %q", got)
	}
	raw := "bin\x00ary"
	if got := fmt.Sprint(Display(raw)); got != raw {
		t.Fatalf("expected unchanged source on error, got %q", got)
	}
}

func BenchmarkPrettify(b *testing.B) {
	src := []byte(strings.Repeat(strings.Join(roundTripCorpus, "\n"), 8))
	b.ReportAllocs()
	b.SetBytes(int64(len(src)))
	for i := 0; i < b.N; i++ {
		_, _ = Prettify(src)
	}
}
