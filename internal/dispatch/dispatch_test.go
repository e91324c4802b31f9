package dispatch

import (
	"testing"

	"github.com/streamhtml/rewriter/internal/buffer"
	"github.com/streamhtml/rewriter/internal/htmltok"
)

type recordingSink struct {
	starts []string
	ends   []string
	texts  []string
}

func (r *recordingSink) HandleDoctype(*DoctypeEvent) error { return nil }
func (r *recordingSink) HandleComment(*CommentEvent) error { return nil }
func (r *recordingSink) HandleText(ev *TextEvent) error {
	r.texts = append(r.texts, string(ev.Lexeme.Full.Slice(ev.Buf.View())))
	return nil
}
func (r *recordingSink) HandleStartTag(ev *StartTagEvent) (interface{}, error) {
	if len(ev.Payloads) > 0 {
		r.starts = append(r.starts, ev.NameLower)
	}
	return nil, nil
}
func (r *recordingSink) HandleEndTag(ev *EndTagEvent) error {
	if len(ev.Payloads) > 0 {
		r.ends = append(r.ends, ev.NameLower)
	}
	return nil
}
func (r *recordingSink) HandleDocumentEnd(*buffer.Buffer) error { return nil }

func runHTML(t *testing.T, html string, build func(*Builder)) *recordingSink {
	t.Helper()
	b := NewBuilder()
	build(b)
	sink := &recordingSink{}
	d, err := b.Build(0, sink, true)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	buf := buffer.New(nil)
	d.Bind(buf)
	tok := htmltok.New(buf, d)
	tok.SetMode(htmltok.ModeFull)

	if err := buf.Append([]byte(html)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := tok.Feed(true); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if d.Err() != nil {
		t.Fatalf("dispatch error: %v", d.Err())
	}
	return sink
}

func TestDispatchMatchesSimpleTag(t *testing.T) {
	sink := runHTML(t, `<div><p class="a">hi</p></div>`, func(b *Builder) {
		if _, err := b.Register("p.a", 0); err != nil {
			t.Fatalf("Register: %v", err)
		}
	})
	if len(sink.starts) != 1 || sink.starts[0] != "p" {
		t.Fatalf("starts = %v", sink.starts)
	}
	if len(sink.ends) != 1 || sink.ends[0] != "p" {
		t.Fatalf("ends = %v", sink.ends)
	}
}

func TestDispatchVoidElementSynthesizesEndTag(t *testing.T) {
	sink := runHTML(t, `<div><img src="x"></div>`, func(b *Builder) {
		if _, err := b.Register("img", 0); err != nil {
			t.Fatalf("Register: %v", err)
		}
	})
	if len(sink.starts) != 1 || sink.starts[0] != "img" {
		t.Fatalf("starts = %v", sink.starts)
	}
	if len(sink.ends) != 1 || sink.ends[0] != "img" {
		t.Fatalf("synthesized end tag missing: ends = %v", sink.ends)
	}
}

func TestDispatchCapturesTextWithinMatchedElement(t *testing.T) {
	sink := runHTML(t, `<p>hello<b>world</b></p>`, func(b *Builder) {
		if _, err := b.Register("p", CaptureText); err != nil {
			t.Fatalf("Register: %v", err)
		}
	})
	if len(sink.texts) == 0 {
		t.Fatalf("expected captured text, got none")
	}
	joined := ""
	for _, tx := range sink.texts {
		joined += tx
	}
	if joined != "helloworld" {
		t.Fatalf("captured text = %q, want concatenation of hello+world", joined)
	}
}

func TestDispatchScriptContentIsNotTagScanned(t *testing.T) {
	sink := runHTML(t, `<script>if (a < b) {}</script><div>after</div>`, func(b *Builder) {
		if _, err := b.Register("div", 0); err != nil {
			t.Fatalf("Register: %v", err)
		}
	})
	if len(sink.starts) != 1 || sink.starts[0] != "div" {
		t.Fatalf("starts = %v (script body's '<' must not be parsed as a tag)", sink.starts)
	}
}
