package cmark

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"pkt.systems/prettymd"
)

var printerPool = sync.Pool{
	New: func() any {
		return prettymd.NewPrinter()
	},
}

var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// Prettify parses src and returns it as canonical CommonMark. A leading front
// matter block is kept verbatim. The result has no trailing newline.
func Prettify(src []byte, opts ...prettymd.Option) (string, error) {
	if err := prettymd.ValidateInput(src); err != nil {
		return "", fmt.Errorf("prettify: %w", err)
	}
	front, body := SplitFrontMatter(src)
	p := printerPool.Get().(*prettymd.Printer)
	defer printerPool.Put(p)
	p.Reset(opts...)
	if err := Emit(body, p); err != nil {
		return "", fmt.Errorf("prettify: %w", err)
	}
	out, err := p.Finish()
	if err != nil {
		return out, fmt.Errorf("prettify: %w", err)
	}
	if len(front) == 0 {
		return out, nil
	}
	front = bytes.TrimRight(front, "\r\n")
	if out == "" {
		return string(front), nil
	}
	return string(front) + "\n\n" + out, nil
}

// FormatRequest configures Format.
type FormatRequest struct {
	Reader  io.Reader
	Writer  io.Writer
	Options []prettymd.Option
}

// Format reads Markdown from req.Reader and writes the prettified document,
// terminated by a newline, to req.Writer.
func Format(req FormatRequest) error {
	if req.Reader == nil {
		return fmt.Errorf("format: reader is nil")
	}
	if req.Writer == nil {
		return fmt.Errorf("format: writer is nil")
	}
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)
	if _, err := buf.ReadFrom(req.Reader); err != nil {
		return fmt.Errorf("format: read: %w", err)
	}
	out, err := Prettify(buf.Bytes(), req.Options...)
	if err != nil {
		return fmt.Errorf("format: %w", err)
	}
	if out == "" {
		return nil
	}
	if _, err := io.WriteString(req.Writer, out+"\n"); err != nil {
		return fmt.Errorf("format: write: %w", err)
	}
	return nil
}

// Display prettifies Markdown lazily when it is formatted with the fmt
// package. Sources that fail to prettify are printed unchanged.
type Display string

func (d Display) String() string {
	out, err := Prettify([]byte(d))
	if err != nil {
		return string(d)
	}
	return out
}
