// Package prettymd prints a stream of CommonMark structural events back out
// as canonical, re-parseable CommonMark text.
//
// A Printer consumes events (Start and End of containers and spans, text,
// code, raw HTML, breaks and rules) one at a time and keeps only a stack of
// open containers plus the text written so far. It never parses Markdown; the
// cmark subpackage adapts a goldmark AST into events.
//
// Core properties:
//   - Single forward pass; the output buffer is append-only
//   - Every literal character is escaped so it re-parses as text
//   - Nested emphasis alternates delimiters so spans never merge
//   - Adjacent lists alternate markers so they never merge
//
// Example:
//
//	out, err := prettymd.Print([]prettymd.Event{
//		prettymd.Start(prettymd.Paragraph()),
//		prettymd.Text("Lorem "),
//		prettymd.Start(prettymd.Emphasis()),
//		prettymd.Text("ipsum"),
//		prettymd.End(prettymd.Emphasis()),
//		prettymd.End(prettymd.Paragraph()),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(out) // Lorem *ipsum*
//
// Output style is tuned with Options such as WithEmphasis and WithSoftBreak.
package prettymd
