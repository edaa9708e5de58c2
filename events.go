package prettymd

// Event is one unit of a parsed document's structure.
type Event struct {
	Kind EventKind
	Tag  Tag
	Text string
}

// EventKind identifies the variant of an Event.
type EventKind uint8

const (
	// EventStart opens the container or span described by Tag.
	EventStart EventKind = iota
	// EventEnd closes the innermost container or span described by Tag.
	EventEnd
	// EventText is a literal run of inline text.
	EventText
	// EventCode is the content of an inline code span.
	EventCode
	// EventHTML is raw HTML passed through verbatim.
	EventHTML
	// EventSoftBreak is a line break without semantic significance.
	EventSoftBreak
	// EventHardBreak is an explicit line break.
	EventHardBreak
	// EventRule is a thematic break.
	EventRule
)

var eventKindNames = [...]string{
	EventStart:     "Start",
	EventEnd:       "End",
	EventText:      "Text",
	EventCode:      "Code",
	EventHTML:      "Html",
	EventSoftBreak: "SoftBreak",
	EventHardBreak: "HardBreak",
	EventRule:      "Rule",
}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return "EventKind(?)"
}

// Tag describes a container or span opened by EventStart and closed by EventEnd.
// Only the fields relevant to Kind are meaningful.
type Tag struct {
	Kind TagKind
	// Level is the heading level, 1 through 6.
	Level int
	// Ordered reports whether a list is numbered; Start is its first number.
	Ordered bool
	Start   int
	// Fenced selects fenced over indented code blocks; Info is the fence info string.
	Fenced bool
	Info   string
	// URL and Title belong to links and images.
	URL   string
	Title string
}

// TagKind identifies the variant of a Tag.
type TagKind uint8

const (
	// TagParagraph is a paragraph of inline content.
	TagParagraph TagKind = iota
	// TagHeading is an ATX or setext heading.
	TagHeading
	// TagBlockQuote is a block quote.
	TagBlockQuote
	// TagList is a bullet or ordered list.
	TagList
	// TagListItem is one item of the enclosing list.
	TagListItem
	// TagCodeBlock is a fenced or indented code block.
	TagCodeBlock
	// TagEmphasis is an emphasis span.
	TagEmphasis
	// TagStrong is a strong emphasis span.
	TagStrong
	// TagLink is an inline link.
	TagLink
	// TagImage is an inline image; its content is the alt text.
	TagImage
)

var tagKindNames = [...]string{
	TagParagraph:  "Paragraph",
	TagHeading:    "Heading",
	TagBlockQuote: "BlockQuote",
	TagList:       "List",
	TagListItem:   "ListItem",
	TagCodeBlock:  "CodeBlock",
	TagEmphasis:   "Emphasis",
	TagStrong:     "Strong",
	TagLink:       "Link",
	TagImage:      "Image",
}

func (k TagKind) String() string {
	if int(k) < len(tagKindNames) {
		return tagKindNames[k]
	}
	return "TagKind(?)"
}

// Start returns an event opening tag.
func Start(tag Tag) Event { return Event{Kind: EventStart, Tag: tag} }

// End returns an event closing tag.
func End(tag Tag) Event { return Event{Kind: EventEnd, Tag: tag} }

// Text returns a literal text event.
func Text(s string) Event { return Event{Kind: EventText, Text: s} }

// Code returns an inline code span event.
func Code(s string) Event { return Event{Kind: EventCode, Text: s} }

// HTML returns a raw HTML event.
func HTML(s string) Event { return Event{Kind: EventHTML, Text: s} }

// SoftBreak returns a soft line break event.
func SoftBreak() Event { return Event{Kind: EventSoftBreak} }

// HardBreak returns a hard line break event.
func HardBreak() Event { return Event{Kind: EventHardBreak} }

// Rule returns a thematic break event.
func Rule() Event { return Event{Kind: EventRule} }

// Paragraph returns a paragraph tag.
func Paragraph() Tag { return Tag{Kind: TagParagraph} }

// BlockQuote returns a block quote tag.
func BlockQuote() Tag { return Tag{Kind: TagBlockQuote} }

// ListItem returns a list item tag.
func ListItem() Tag { return Tag{Kind: TagListItem} }

// Emphasis returns an emphasis tag.
func Emphasis() Tag { return Tag{Kind: TagEmphasis} }

// Strong returns a strong emphasis tag.
func Strong() Tag { return Tag{Kind: TagStrong} }

// Heading returns a heading tag; level is clamped to 1..6.
func Heading(level int) Tag {
	return Tag{Kind: TagHeading, Level: min(max(level, 1), 6)}
}

// BulletList returns an unordered list tag.
func BulletList() Tag { return Tag{Kind: TagList} }

// OrderedList returns a numbered list tag whose first item is numbered start.
func OrderedList(start int) Tag {
	return Tag{Kind: TagList, Ordered: true, Start: start}
}

// FencedCodeBlock returns a fenced code block tag with an optional info string.
func FencedCodeBlock(info string) Tag {
	return Tag{Kind: TagCodeBlock, Fenced: true, Info: info}
}

// IndentedCodeBlock returns an indented code block tag.
func IndentedCodeBlock() Tag { return Tag{Kind: TagCodeBlock} }

// Link returns a link tag.
func Link(url, title string) Tag { return Tag{Kind: TagLink, URL: url, Title: title} }

// Image returns an image tag.
func Image(url, title string) Tag { return Tag{Kind: TagImage, URL: url, Title: title} }

// EventSink consumes events one at a time.
type EventSink interface {
	PushEvent(Event) error
}
