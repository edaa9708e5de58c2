package prettymd

import (
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/muesli/reflow/ansi"
)

var (
	// ErrUnbalanced is returned when an End event does not close the innermost
	// open container.
	ErrUnbalanced = errors.New("prettymd: unbalanced end event")
	// ErrIncomplete is returned by Finish when the printed text is partial.
	ErrIncomplete = errors.New("prettymd: incomplete document")
	// ErrFinished is returned when a printer is used after Finish.
	ErrFinished = errors.New("prettymd: printer already finished")
)

// UnbalancedError describes an End event that could not be matched.
type UnbalancedError struct {
	// Index is the zero-based position of the offending event.
	Index int
	// Got is the kind the End event tried to close.
	Got TagKind
	// Open is the innermost open kind; meaningless when Depth is zero.
	Open  TagKind
	Depth int
}

func (e *UnbalancedError) Error() string {
	if e.Depth == 0 {
		return fmt.Sprintf("prettymd: event %d: end %s with no open container", e.Index, e.Got)
	}
	return fmt.Sprintf("prettymd: event %d: end %s while %s is open", e.Index, e.Got, e.Open)
}

func (e *UnbalancedError) Unwrap() error { return ErrUnbalanced }

type separator uint8

// delimRun records whether the last write was an emphasis delimiter run.
type delimRun uint8

const (
	runNone delimRun = iota
	runOpen
	runClose
)

const (
	sepNone separator = iota
	sepLine
	sepBlank
)

type frame struct {
	kind TagKind
	// root marks the implicit document frame.
	root bool
	// emitted is set once a block (or an inline run) has been written directly
	// into this container.
	emitted bool
	// inline is set while the container holds an unwrapped inline run, as in
	// tight list items.
	inline bool
	// html is set right after a block of raw HTML.
	html bool
	// lastList is the delimiter of the list that was the previous block here.
	lastList byte

	// list frames
	ordered bool
	loose   bool
	next    int
	delim   byte

	// item frames
	indent int
	list   int

	// code frames
	fenced   bool
	indentOK bool
	info     string
	code     []byte

	// link and image frames
	url, title string
}

// Printer turns a balanced event stream into CommonMark text. A Printer
// prints one document until Finish; Reset readies it for the next. It must
// not be shared between goroutines.
type Printer struct {
	cfg   config
	buf   []byte
	doc   frame
	stack []frame

	pending  int
	fresh    bool
	digits   int
	started  bool
	emDepth  int
	heading  int
	events   int
	err      error
	finished bool

	// last is the most recent character written on the current line.
	last byte
	run  delimRun
	// bang holds back a trailing '!' until the next write shows whether it
	// would turn a link into an image.
	bang bool
}

// NewPrinter returns a printer configured by opts.
func NewPrinter(opts ...Option) *Printer {
	p := &Printer{}
	p.Reset(opts...)
	return p
}

// Reset discards all state so the printer can be reused with new options.
func (p *Printer) Reset(opts ...Option) {
	p.cfg = defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&p.cfg)
		}
	}
	p.buf = p.buf[:0]
	p.doc = frame{root: true}
	clear(p.stack)
	p.stack = p.stack[:0]
	p.pending = 0
	p.fresh = true
	p.digits = 0
	p.last = 0
	p.run = runNone
	p.bang = false
	p.started = false
	p.emDepth = 0
	p.heading = 0
	p.events = 0
	p.err = nil
	p.finished = false
}

// Print renders events in one call.
func Print(events []Event, opts ...Option) (string, error) {
	p := NewPrinter(opts...)
	if err := p.PushEvents(events...); err != nil {
		out, _ := p.Finish()
		return out, err
	}
	return p.Finish()
}

// PushEvents pushes events in order and stops at the first error.
func (p *Printer) PushEvents(events ...Event) error {
	for _, ev := range events {
		if err := p.PushEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// PushSeq pushes every event of seq and stops at the first error.
func (p *Printer) PushSeq(seq iter.Seq[Event]) error {
	for ev := range seq {
		if err := p.PushEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// Depth reports the number of open containers and spans.
func (p *Printer) Depth() int { return len(p.stack) }

// PushEvent consumes one event.
func (p *Printer) PushEvent(ev Event) error {
	if p.finished {
		return ErrFinished
	}
	if p.err != nil {
		return p.err
	}
	idx := p.events
	p.events++
	switch ev.Kind {
	case EventStart:
		p.start(ev.Tag)
	case EventEnd:
		if err := p.end(ev.Tag.Kind, idx); err != nil {
			p.err = err
			return err
		}
	case EventText:
		if p.inCode() {
			f := p.top()
			f.code = append(f.code, ev.Text...)
			return nil
		}
		p.openInline()
		p.writeText(ev.Text)
	case EventCode:
		if p.inCode() {
			f := p.top()
			f.code = append(f.code, ev.Text...)
			return nil
		}
		p.openInline()
		p.writeCode(ev.Text)
	case EventHTML:
		p.html(ev.Text)
	case EventSoftBreak:
		p.softBreak()
	case EventHardBreak:
		p.hardBreak()
	case EventRule:
		p.rule()
	default:
		return fmt.Errorf("prettymd: event %d: unknown kind %d", idx, ev.Kind)
	}
	return nil
}

// Finish returns the printed text. When the stream was cut short or halted
// by an error, the partial text is returned with an error wrapping
// ErrIncomplete.
func (p *Printer) Finish() (string, error) {
	if p.finished {
		return "", ErrFinished
	}
	p.finished = true
	p.flushBang()
	out := string(p.buf)
	if p.err != nil {
		return out, fmt.Errorf("%w: %w", ErrIncomplete, p.err)
	}
	if n := len(p.stack); n > 0 {
		return out, fmt.Errorf("%w: %d open, innermost %s", ErrIncomplete, n, p.stack[n-1].kind)
	}
	return out, nil
}

func (p *Printer) top() *frame {
	if len(p.stack) == 0 {
		return &p.doc
	}
	return &p.stack[len(p.stack)-1]
}

func (p *Printer) inCode() bool {
	return len(p.stack) > 0 && p.stack[len(p.stack)-1].kind == TagCodeBlock
}

// holdsBlocks reports whether f contains blocks rather than inline content.
func (f *frame) holdsBlocks() bool {
	if f.root {
		return true
	}
	switch f.kind {
	case TagBlockQuote, TagList, TagListItem:
		return true
	}
	return false
}

// container returns the innermost frame that holds blocks and its stack
// index, -1 for the document.
func (p *Printer) container() (*frame, int) {
	for i := len(p.stack) - 1; i >= 0; i-- {
		if p.stack[i].holdsBlocks() {
			return &p.stack[i], i
		}
	}
	return &p.doc, -1
}

func (p *Printer) looseAt(c *frame) bool {
	switch c.kind {
	case TagList:
		return c.loose
	case TagListItem:
		if c.list >= 0 && c.list < len(p.stack) {
			return p.stack[c.list].loose
		}
	}
	return true
}

func (p *Printer) separatorFor(c *frame) separator {
	switch {
	case !c.emitted:
		return sepNone
	case c.kind == TagList || c.kind == TagListItem:
		if p.looseAt(c) {
			return sepBlank
		}
		return sepLine
	}
	return sepBlank
}

// openBlock writes whatever separates a new block from the previous one in
// c and returns the delimiter of the list it follows, if any.
func (p *Printer) openBlock(c *frame, sep separator) byte {
	prevList := c.lastList
	c.lastList = 0
	c.inline = false
	c.html = false
	c.emitted = true
	if !p.started {
		p.started = true
		p.writePrefix()
		return prevList
	}
	switch sep {
	case sepBlank:
		p.lineBreak()
		p.lineBreak()
	case sepLine:
		p.lineBreak()
	}
	return prevList
}

// openInline starts an unwrapped inline run when the innermost frame is a
// container, as happens in tight list items.
func (p *Printer) openInline() {
	c := p.top()
	if !c.holdsBlocks() || c.inline {
		return
	}
	p.openBlock(c, p.separatorFor(c))
	c.inline = true
}

func (p *Printer) start(tag Tag) {
	switch tag.Kind {
	case TagParagraph:
		c, _ := p.container()
		if c.kind == TagListItem && c.list >= 0 && c.list < len(p.stack) {
			p.stack[c.list].loose = true
		}
		p.openBlock(c, p.separatorFor(c))
		p.push(frame{kind: TagParagraph})
	case TagHeading:
		c, _ := p.container()
		p.openBlock(c, p.separatorFor(c))
		level := min(max(tag.Level, 1), 6)
		p.marker(strings.Repeat("#", level))
		p.heading++
		p.push(frame{kind: TagHeading})
	case TagBlockQuote:
		c, _ := p.container()
		p.openBlock(c, p.separatorFor(c))
		p.marker(">")
		p.push(frame{kind: TagBlockQuote})
	case TagList:
		c, _ := p.container()
		sep := p.separatorFor(c)
		if c.kind == TagListItem && c.inline && tag.Ordered && tag.Start != 1 {
			sep = sepBlank
		}
		prev := p.openBlock(c, sep)
		f := frame{kind: TagList, ordered: tag.Ordered, next: tag.Start, delim: '-'}
		if tag.Ordered {
			f.delim = '.'
			if prev == '.' {
				f.delim = ')'
			}
		} else if prev == '-' {
			f.delim = '*'
		}
		p.push(f)
	case TagListItem:
		c, idx := p.container()
		p.openBlock(c, p.separatorFor(c))
		f := frame{kind: TagListItem, list: -1}
		mark := "-"
		if c.kind == TagList {
			f.list = idx
			mark = string(c.delim)
			if c.ordered {
				mark = strconv.Itoa(c.next) + mark
				c.next++
			}
		}
		p.marker(mark)
		f.indent = ansi.PrintableRuneWidth(mark) + 1
		p.push(f)
	case TagCodeBlock:
		c, _ := p.container()
		sep := p.separatorFor(c)
		firstInItem := c.kind == TagListItem && !c.emitted
		prev := p.openBlock(c, sep)
		p.push(frame{
			kind:     TagCodeBlock,
			fenced:   tag.Fenced,
			info:     strings.TrimSpace(tag.Info),
			indentOK: sep != sepLine && prev == 0 && !firstInItem,
		})
	case TagEmphasis, TagStrong:
		p.openInline()
		ch := p.delimiter(tag.Kind)
		n := 1
		if tag.Kind == TagStrong {
			n = 2
		}
		p.writeRaw(strings.Repeat(string(ch), n))
		p.run = runOpen
		p.emDepth++
		p.push(frame{kind: tag.Kind, delim: ch})
	case TagLink, TagImage:
		p.openInline()
		if tag.Kind == TagImage {
			p.writeRaw("![")
		} else {
			// A held '!' right before '[' would open an image.
			if p.bang && p.pending == 0 {
				p.buf = append(p.buf, '\\')
			}
			p.writeRaw("[")
		}
		p.push(frame{kind: tag.Kind, url: tag.URL, title: tag.Title})
	default:
		// Unknown tags still occupy a frame so their End balances.
		p.push(frame{kind: tag.Kind})
	}
}

func (p *Printer) end(kind TagKind, idx int) error {
	if len(p.stack) == 0 {
		return &UnbalancedError{Index: idx, Got: kind}
	}
	f := p.top()
	if f.kind != kind {
		return &UnbalancedError{Index: idx, Got: kind, Open: f.kind, Depth: len(p.stack)}
	}
	switch kind {
	case TagHeading:
		p.heading--
	case TagEmphasis, TagStrong:
		n := 1
		if kind == TagStrong {
			n = 2
		}
		// A closing run must follow content directly, so trailing spaces
		// of the span move after it.
		if p.fresh {
			p.writeRaw(strings.Repeat(string(f.delim), n))
		} else {
			p.flushBang()
			for range n {
				p.buf = append(p.buf, f.delim)
			}
			p.wrote(f.delim)
			p.digits = 0
		}
		p.run = runClose
		p.emDepth--
	case TagLink, TagImage:
		p.closeLink(f)
	case TagCodeBlock:
		p.writeCodeBlock(f)
	}
	closed := p.pop()
	if kind == TagList {
		p.top().lastList = closed.delim
	}
	return nil
}

// delimiter picks the emphasis character for a run opening here. Depth parity
// alternates nested runs; the character written just before can override it.
func (p *Printer) delimiter(kind TagKind) byte {
	ch := p.cfg.emphasis
	if p.emDepth%2 == 1 {
		ch = p.cfg.alternate()
	}
	if p.fresh || p.pending > 0 {
		return ch
	}
	switch {
	case p.run == runOpen && kind == TagStrong && p.top().kind == TagEmphasis:
		// A run of three reads as emphasis around strong.
		return p.last
	case p.run != runNone && p.last == ch:
		return otherDelim(ch)
	case isWordByte(p.last):
		// '_' cannot open or close inside a word.
		return '*'
	}
	return ch
}

func otherDelim(ch byte) byte {
	if ch == '*' {
		return '_'
	}
	return '*'
}

// isWordByte reports bytes that are neither space nor ASCII punctuation,
// counting every byte of a multi-byte character as a letter.
func isWordByte(c byte) bool {
	return isAlnum(c) || c >= 0x80
}

func (p *Printer) push(f frame) { p.stack = append(p.stack, f) }

func (p *Printer) pop() frame {
	n := len(p.stack) - 1
	f := p.stack[n]
	p.stack[n] = frame{}
	p.stack = p.stack[:n]
	return f
}

func (p *Printer) closeLink(f *frame) {
	p.flushPending()
	p.buf = append(p.buf, "]("...)
	p.buf = appendLinkDest(p.buf, f.url)
	if f.title != "" {
		p.buf = append(p.buf, ' ')
		p.buf = appendLinkTitle(p.buf, f.title)
	}
	p.buf = append(p.buf, ')')
	p.wrote(')')
	p.digits = 0
}

func (p *Printer) writeCodeBlock(f *frame) {
	content := string(f.code)
	body := strings.TrimSuffix(content, "\n")
	if !f.fenced && f.indentOK && indentable(body) {
		p.pending += 4
		p.writeVerbatim(body)
		return
	}
	// The frame stays on the stack while the fence is written, so mark it
	// fenced to keep the four-space prefix out of its lines.
	f.fenced = true
	fence := codeFence(content, f.info)
	p.writeRaw(fence)
	if f.info != "" {
		p.buf = appendInfo(p.buf, f.info)
	}
	if content != "" {
		p.lineBreak()
		p.writeVerbatim(body)
	}
	p.lineBreak()
	p.writeRaw(fence)
}

// indentable reports whether body survives a round trip as an indented code
// block, which drops leading and trailing blank lines.
func indentable(body string) bool {
	if strings.TrimSpace(body) == "" {
		return false
	}
	first, _, _ := strings.Cut(body, "\n")
	last := body[strings.LastIndexByte(body, '\n')+1:]
	return strings.TrimSpace(first) != "" && strings.TrimSpace(last) != ""
}

func codeFence(content, info string) string {
	ch := byte('`')
	if strings.IndexByte(info, '`') >= 0 {
		ch = '~'
	}
	return strings.Repeat(string(ch), max(3, longestRun(content, ch)+1))
}

func (p *Printer) html(s string) {
	c := p.top()
	if !c.holdsBlocks() || c.inline || !strings.HasSuffix(s, "\n") {
		p.openInline()
		p.writeVerbatim(s)
		return
	}
	if c.html {
		p.lineBreak()
	} else {
		p.openBlock(c, p.separatorFor(c))
	}
	p.writeVerbatim(strings.TrimSuffix(s, "\n"))
	c.html = true
}

func (p *Printer) rule() {
	c, _ := p.container()
	firstInStarItem := false
	if c.kind == TagListItem && !c.emitted && c.list >= 0 && c.list < len(p.stack) {
		firstInStarItem = p.stack[c.list].delim == '*'
	}
	p.openBlock(c, p.separatorFor(c))
	if firstInStarItem {
		p.writeRaw("---")
		return
	}
	p.writeRaw("***")
}

func (p *Printer) softBreak() {
	if p.heading > 0 || p.cfg.softBreak == SoftBreakSpace {
		p.openInline()
		p.pending++
		return
	}
	p.lineBreak()
}

func (p *Printer) hardBreak() {
	if p.heading > 0 {
		p.pending++
		return
	}
	p.openInline()
	if !p.fresh {
		p.pending = 0
		p.flushBang()
	}
	// Two trailing spaces on an otherwise empty line would end the paragraph.
	if p.cfg.hardBreak == HardBreakBackslash || p.fresh {
		p.writeRaw("\\")
	} else {
		p.buf = append(p.buf, ' ', ' ')
	}
	p.lineBreak()
}

// marker writes a block marker followed by a lazy space.
func (p *Printer) marker(s string) {
	p.writeRaw(s)
	p.pending = 1
	p.fresh = true
	p.digits = 0
}

// lineBreak ends the current line and writes the eager part of the next
// line's prefix.
func (p *Printer) lineBreak() {
	p.flushBang()
	p.pending = 0
	p.buf = append(p.buf, '\n')
	p.writePrefix()
	p.fresh = true
	p.digits = 0
	p.last = 0
	p.run = runNone
}

// writePrefix writes the line prefix of every open container. Quote markers
// are written at once; indentation stays pending until content follows.
func (p *Printer) writePrefix() {
	if prefix := p.cfg.prefix; prefix != "" {
		trimmed := strings.TrimRight(prefix, " ")
		if trimmed != "" {
			p.flushPending()
			p.buf = append(p.buf, trimmed...)
		}
		p.pending += len(prefix) - len(trimmed)
	}
	for i := range p.stack {
		f := &p.stack[i]
		switch f.kind {
		case TagBlockQuote:
			p.flushPending()
			p.buf = append(p.buf, '>')
			p.pending++
		case TagListItem:
			p.pending += f.indent
		case TagCodeBlock:
			if !f.fenced {
				p.pending += 4
			}
		}
	}
}

func (p *Printer) flushPending() {
	p.flushBang()
	for ; p.pending > 0; p.pending-- {
		p.buf = append(p.buf, ' ')
	}
}

func (p *Printer) flushBang() {
	if p.bang {
		p.buf = append(p.buf, '!')
		p.bang = false
	}
}

// wrote records c as the last character on the line.
func (p *Printer) wrote(c byte) {
	p.last = c
	p.run = runNone
	p.fresh = false
}

// writeRaw writes s unescaped on the current line.
func (p *Printer) writeRaw(s string) {
	if s == "" {
		return
	}
	p.flushPending()
	p.buf = append(p.buf, s...)
	p.wrote(s[len(s)-1])
	p.digits = 0
}

// writeVerbatim writes s unescaped, prefixing every line after the first.
func (p *Printer) writeVerbatim(s string) {
	for i := 0; ; i++ {
		line, rest, more := strings.Cut(s, "\n")
		if i > 0 {
			p.lineBreak()
		}
		p.writeRaw(line)
		if !more {
			return
		}
		s = rest
	}
}

func (p *Printer) writeText(s string) {
	if p.heading > 0 {
		s = strings.ReplaceAll(s, "\n", " ")
	}
	for {
		line, rest, more := strings.Cut(s, "\n")
		p.writeTextLine(line)
		if !more {
			return
		}
		p.lineBreak()
		s = rest
	}
}

func (p *Printer) writeTextLine(s string) {
	if p.fresh {
		s = strings.TrimLeft(s, " \t")
	}
	body := strings.TrimRight(s, " ")
	trailing := len(s) - len(body)
	if body != "" {
		// A line that so far holds only digits becomes a list marker if
		// this run starts with '.' or ')'.
		split := !p.fresh && p.pending == 0 && p.digits > 0 && p.digits <= maxListDigits &&
			(body[0] == '.' || body[0] == ')')
		onlyDigits := (p.fresh || (p.digits > 0 && p.pending == 0)) && allDigits(body)
		p.flushPending()
		if split {
			p.buf = append(p.buf, '\\')
		}
		bang := body[len(body)-1] == '!'
		p.buf = appendEscaped(p.buf, strings.TrimSuffix(body, "!"), EscapeContext{LineStart: p.fresh, Heading: p.heading > 0})
		p.wrote(body[len(body)-1])
		p.bang = bang
		if onlyDigits && trailing == 0 {
			p.digits += len(body)
		} else {
			p.digits = 0
		}
	}
	p.pending += trailing
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

func (p *Printer) writeCode(s string) {
	if s == "" {
		return
	}
	s = strings.ReplaceAll(s, "\n", " ")
	ticks := strings.Repeat("`", longestRun(s, '`')+1)
	pad := s[0] == '`' || s[len(s)-1] == '`' ||
		(s[0] == ' ' && s[len(s)-1] == ' ' && strings.Trim(s, " ") != "")
	p.writeRaw(ticks)
	if pad {
		p.buf = append(p.buf, ' ')
	}
	p.buf = append(p.buf, s...)
	if pad {
		p.buf = append(p.buf, ' ')
	}
	p.buf = append(p.buf, ticks...)
}
