// Package cmark parses CommonMark with goldmark and feeds the result to a
// prettymd printer.
//
// Events and Emit expose the event stream; Prettify, Format and HTTPFormat
// produce canonical Markdown in one call.
package cmark

import (
	"bytes"
	"errors"
	"fmt"
	"iter"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"pkt.systems/prettymd"
)

// markdown is a plain CommonMark parser; goldmark parsers are safe for
// concurrent use.
var markdown = goldmark.New()

var errStopped = errors.New("cmark: iteration stopped")

// Emit parses src and pushes its events into sink in document order.
func Emit(src []byte, sink prettymd.EventSink) error {
	if sink == nil {
		return fmt.Errorf("emit: sink is nil")
	}
	doc := markdown.Parser().Parse(text.NewReader(src))
	w := walker{src: src, sink: sink}
	return ast.Walk(doc, w.visit)
}

// Events parses src and returns its events.
func Events(src []byte) ([]prettymd.Event, error) {
	var c collector
	if err := Emit(src, &c); err != nil {
		return nil, err
	}
	return c.events, nil
}

// All parses src and yields its events lazily.
func All(src []byte) iter.Seq[prettymd.Event] {
	return func(yield func(prettymd.Event) bool) {
		_ = Emit(src, yieldSink(yield))
	}
}

type collector struct {
	events []prettymd.Event
}

func (c *collector) PushEvent(ev prettymd.Event) error {
	c.events = append(c.events, ev)
	return nil
}

type yieldSink func(prettymd.Event) bool

func (y yieldSink) PushEvent(ev prettymd.Event) error {
	if !y(ev) {
		return errStopped
	}
	return nil
}

type walker struct {
	src  []byte
	sink prettymd.EventSink
}

func (w *walker) push(events ...prettymd.Event) error {
	for _, ev := range events {
		if err := w.sink.PushEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// container emits Start on entry and End on exit.
func (w *walker) container(tag prettymd.Tag, entering bool) (ast.WalkStatus, error) {
	ev := prettymd.End(tag)
	if entering {
		ev = prettymd.Start(tag)
	}
	if err := w.push(ev); err != nil {
		return ast.WalkStop, err
	}
	return ast.WalkContinue, nil
}

// leaf emits events once on entry and skips the node's children.
func (w *walker) leaf(entering bool, events ...prettymd.Event) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	if err := w.push(events...); err != nil {
		return ast.WalkStop, err
	}
	return ast.WalkSkipChildren, nil
}

func (w *walker) visit(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n := node.(type) {
	case *ast.Paragraph:
		return w.container(prettymd.Paragraph(), entering)
	case *ast.Heading:
		return w.container(prettymd.Heading(n.Level), entering)
	case *ast.Blockquote:
		return w.container(prettymd.BlockQuote(), entering)
	case *ast.List:
		if n.IsOrdered() {
			return w.container(prettymd.OrderedList(n.Start), entering)
		}
		return w.container(prettymd.BulletList(), entering)
	case *ast.ListItem:
		return w.container(prettymd.ListItem(), entering)
	case *ast.Emphasis:
		if n.Level >= 2 {
			return w.container(prettymd.Strong(), entering)
		}
		return w.container(prettymd.Emphasis(), entering)
	case *ast.Link:
		return w.container(prettymd.Link(unescape(n.Destination), unescape(n.Title)), entering)
	case *ast.Image:
		return w.container(prettymd.Image(unescape(n.Destination), unescape(n.Title)), entering)
	case *ast.ThematicBreak:
		return w.leaf(entering, prettymd.Rule())
	case *ast.CodeBlock:
		return w.leaf(entering, codeBlock(prettymd.IndentedCodeBlock(), lines(n.Lines(), w.src))...)
	case *ast.FencedCodeBlock:
		info := ""
		if n.Info != nil {
			info = unescape(n.Info.Segment.Value(w.src))
		}
		return w.leaf(entering, codeBlock(prettymd.FencedCodeBlock(info), lines(n.Lines(), w.src))...)
	case *ast.HTMLBlock:
		var b bytes.Buffer
		b.WriteString(lines(n.Lines(), w.src))
		if n.HasClosure() {
			b.Write(n.ClosureLine.Value(w.src))
		}
		if b.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		if !bytes.HasSuffix(b.Bytes(), []byte("\n")) {
			b.WriteByte('\n')
		}
		return w.leaf(entering, prettymd.HTML(b.String()))
	case *ast.Text:
		return w.text(n, entering)
	case *ast.String:
		return w.leaf(entering, prettymd.Text(string(n.Value)))
	case *ast.CodeSpan:
		var b bytes.Buffer
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				b.Write(t.Segment.Value(w.src))
			}
		}
		return w.leaf(entering, prettymd.Code(b.String()))
	case *ast.AutoLink:
		url := string(n.URL(w.src))
		return w.leaf(entering,
			prettymd.Start(prettymd.Link(url, "")),
			prettymd.Text(string(n.Label(w.src))),
			prettymd.End(prettymd.Link(url, "")),
		)
	case *ast.RawHTML:
		var b bytes.Buffer
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			b.Write(seg.Value(w.src))
		}
		return w.leaf(entering, prettymd.HTML(b.String()))
	}
	// Document and TextBlock carry no events of their own; tight list items
	// hold their inline content in a TextBlock.
	return ast.WalkContinue, nil
}

func (w *walker) text(n *ast.Text, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	value := n.Segment.Value(w.src)
	s := string(value)
	if !n.IsRaw() {
		s = unescape(value)
	}
	if s != "" {
		if err := w.push(prettymd.Text(s)); err != nil {
			return ast.WalkStop, err
		}
	}
	// A break after the last inline of a block is not a break.
	parent := n.Parent()
	if n.NextSibling() == nil && parent != nil && parent.Type() == ast.TypeBlock {
		return ast.WalkContinue, nil
	}
	var err error
	switch {
	case n.HardLineBreak():
		err = w.push(prettymd.HardBreak())
	case n.SoftLineBreak():
		err = w.push(prettymd.SoftBreak())
	}
	if err != nil {
		return ast.WalkStop, err
	}
	return ast.WalkContinue, nil
}

func codeBlock(tag prettymd.Tag, content string) []prettymd.Event {
	if content == "" {
		return []prettymd.Event{prettymd.Start(tag), prettymd.End(tag)}
	}
	// The last line of a block at the end of input has no newline.
	if content[len(content)-1] != '\n' {
		content += "\n"
	}
	return []prettymd.Event{prettymd.Start(tag), prettymd.Text(content), prettymd.End(tag)}
}

func lines(segs *text.Segments, src []byte) string {
	var b bytes.Buffer
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		b.Write(seg.Value(src))
	}
	return b.String()
}

// unescape resolves backslash escapes and character references the way
// goldmark's HTML writer does when it emits text.
func unescape(b []byte) string {
	if bytes.IndexByte(b, '\\') < 0 && bytes.IndexByte(b, '&') < 0 {
		return string(b)
	}
	out := make([]byte, 0, len(b))
	for len(b) > 0 {
		i := bytes.IndexByte(b, '\\')
		if i < 0 || i+1 >= len(b) {
			out = append(out, resolveReferences(b)...)
			break
		}
		if !util.IsPunct(b[i+1]) {
			out = append(out, resolveReferences(b[:i+1])...)
			b = b[i+1:]
			continue
		}
		out = append(out, resolveReferences(b[:i])...)
		out = append(out, b[i+1])
		b = b[i+2:]
	}
	return string(out)
}

func resolveReferences(b []byte) []byte {
	return util.ResolveEntityNames(util.ResolveNumericReferences(b))
}
