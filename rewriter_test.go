package rewriter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	gohtml "golang.org/x/net/html"
)

// rewrite feeds input through a Rewriter in n-byte chunks (n<=0 means one
// single Write) and returns the concatenated sink output.
func rewrite(t *testing.T, settings Settings, input string, chunkSize int) (string, error) {
	t.Helper()
	var out strings.Builder
	rw, err := NewRewriter(settings, func(b []byte) error {
		out.Write(b)
		return nil
	})
	if err != nil {
		t.Fatalf("NewRewriter: %v", err)
	}

	if chunkSize <= 0 {
		if err := rw.Write([]byte(input)); err != nil {
			return out.String(), err
		}
	} else {
		for i := 0; i < len(input); i += chunkSize {
			end := i + chunkSize
			if end > len(input) {
				end = len(input)
			}
			if err := rw.Write([]byte(input[i:end])); err != nil {
				return out.String(), err
			}
		}
	}
	if err := rw.End(); err != nil {
		return out.String(), err
	}
	return out.String(), nil
}

func TestIdentityWithNoHandlers(t *testing.T) {
	input := `<!DOCTYPE html><html><head><title>x</title></head><body><div class="a"><!-- hi -->text<p>p</p></div></body></html>`
	got, err := rewrite(t, Settings{}, input, 0)
	require.NoError(t, err)
	if got != input {
		t.Fatalf("identity mismatch:\n got: %q\nwant: %q", got, input)
	}
	// A byte-identical passthrough should still be well-formed HTML.
	_, err = gohtml.Parse(strings.NewReader(got))
	require.NoError(t, err, "passthrough output should parse as HTML")
}

func TestIdentityHoldsAcrossArbitraryChunkBoundaries(t *testing.T) {
	input := `<div id="x"><span>hello world</span><!-- comment --></div><img src="a.png">`
	for size := 1; size <= len(input); size++ {
		got, err := rewrite(t, Settings{}, input, size)
		if err != nil {
			t.Fatalf("chunk size %d: %v", size, err)
		}
		if got != input {
			t.Fatalf("chunk size %d: identity mismatch:\n got: %q\nwant: %q", size, got, input)
		}
	}
}

func TestSetAttributeAndRename(t *testing.T) {
	settings := Settings{
		ElementContentHandlers: []ElementContentHandlers{
			{
				Selector: "div",
				Element: func(el *StartTag) error {
					if err := el.SetAttribute("id", "new"); err != nil {
						return err
					}
					el.RemoveAttribute("class")
					return el.SetName("section")
				},
			},
		},
	}
	got, err := rewrite(t, settings, `<div id="old" class="drop">hi</div>`, 0)
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	want := `<section id="new">hi</section>`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBeforeAfterPrependAppend(t *testing.T) {
	settings := Settings{
		ElementContentHandlers: []ElementContentHandlers{
			{
				Selector: "div",
				Element: func(el *StartTag) error {
					el.Before("<b>before</b>", Html)
					el.After("<b>after</b>", Html)
					el.Prepend("[pre]", Text)
					el.Append("[post]", Text)
					return nil
				},
			},
		},
	}
	got, err := rewrite(t, settings, `<div>mid</div>`, 0)
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	want := `<b>before</b><div>[pre]mid[post]</div><b>after</b>`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSetInnerContentSuppressesOriginalDescendants(t *testing.T) {
	settings := Settings{
		ElementContentHandlers: []ElementContentHandlers{
			{
				Selector: "div",
				Element: func(el *StartTag) error {
					el.SetInnerContent("<b>new</b>", Html)
					return nil
				},
			},
		},
	}
	got, err := rewrite(t, settings, `<div><p>old<span>nested</span></p></div><footer>kept</footer>`, 0)
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	want := `<div><b>new</b></div><footer>kept</footer>`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRemoveDropsTagAndContent(t *testing.T) {
	settings := Settings{
		ElementContentHandlers: []ElementContentHandlers{
			{
				Selector: "script",
				Element: func(el *StartTag) error {
					el.Remove()
					return nil
				},
			},
		},
	}
	got, err := rewrite(t, settings, `<p>keep</p><script>evil(1 < 2)</script><p>also kept</p>`, 0)
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	want := `<p>keep</p><p>also kept</p>`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRemoveAndKeepContentDropsOnlyTagBytes(t *testing.T) {
	settings := Settings{
		ElementContentHandlers: []ElementContentHandlers{
			{
				Selector: "span",
				Element: func(el *StartTag) error {
					el.RemoveAndKeepContent()
					return nil
				},
			},
		},
	}
	got, err := rewrite(t, settings, `<div><span class="x">inner</span></div>`, 0)
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	want := `<div>inner</div>`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestOnEndTagFiresForVoidElementSyntheticClose(t *testing.T) {
	var sawEnd bool
	settings := Settings{
		ElementContentHandlers: []ElementContentHandlers{
			{
				Selector: "img",
				Element: func(el *StartTag) error {
					el.OnEndTag(func(end *EndTag) error {
						sawEnd = true
						if !end.Synthesized() {
							t.Errorf("expected synthesized close for void element")
						}
						end.After("<!--after img-->", Html)
						return nil
					})
					return nil
				},
			},
		},
	}
	got, err := rewrite(t, settings, `<img src="x.png">`, 0)
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if !sawEnd {
		t.Fatalf("OnEndTag never fired")
	}
	want := `<img src="x.png"><!--after img-->`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMismatchedNestingSynthesizesImplicitCloses(t *testing.T) {
	// "<span>" is never explicitly closed; "</div>" must still trigger its
	// own OnEndTag exactly once, proving the dispatcher synthesizes span's
	// close instead of silently dropping it from the open-element stack.
	var spanClosed, divClosed int
	settings := Settings{
		ElementContentHandlers: []ElementContentHandlers{
			{
				Selector: "span",
				Element: func(el *StartTag) error {
					el.OnEndTag(func(end *EndTag) error {
						spanClosed++
						return nil
					})
					return nil
				},
			},
			{
				Selector: "div",
				Element: func(el *StartTag) error {
					el.OnEndTag(func(end *EndTag) error {
						divClosed++
						return nil
					})
					return nil
				},
			},
		},
	}
	if _, err := rewrite(t, settings, `<div><span>oops</div>`, 0); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if spanClosed != 1 {
		t.Fatalf("span's OnEndTag fired %d times, want 1", spanClosed)
	}
	if divClosed != 1 {
		t.Fatalf("div's OnEndTag fired %d times, want 1", divClosed)
	}
}

func TestCommentTextReplaceAndRemove(t *testing.T) {
	var seen []string
	settings := Settings{
		DocumentContentHandlers: []DocumentContentHandlers{
			{
				Comments: func(c *Comment) error {
					seen = append(seen, c.Text())
					switch c.Text() {
					case "replace me":
						c.Replace("<b>replaced</b>", Html)
					case "remove me":
						c.Remove()
					}
					return nil
				},
			},
		},
	}
	got, err := rewrite(t, settings, `<!--replace me--><!--remove me--><!--keep me-->`, 0)
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	want := `<b>replaced</b><!--keep me-->`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if len(seen) != 3 {
		t.Fatalf("saw %d comments, want 3: %v", len(seen), seen)
	}
}

func TestCommentSetTextRejectsClosingSequence(t *testing.T) {
	settings := Settings{
		DocumentContentHandlers: []DocumentContentHandlers{
			{
				Comments: func(c *Comment) error {
					err := c.SetText("nope -->")
					var cme *ContentMutationError
					require.ErrorAs(t, err, &cme)
					require.Equal(t, CommentClosingSequence, cme.Kind)
					return nil
				},
			},
		},
	}
	got, err := rewrite(t, settings, `<!--hi-->`, 0)
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if got != `<!--hi-->` {
		t.Fatalf("rejected SetText should leave comment untouched, got %q", got)
	}
}

func TestTextChunkReplaceRemoveAndEscaping(t *testing.T) {
	settings := Settings{
		ElementContentHandlers: []ElementContentHandlers{
			{
				Selector: "p",
				Text: func(c *TextChunk) error {
					switch c.AsStr() {
					case "":
						// the zero-length chunk that closes the node once
						// LastInTextNode(); nothing to rewrite here.
					case "drop":
						c.Remove()
					case "swap":
						c.Replace("<b>&</b>", Html)
					default:
						c.Before("<x>", Text)
					}
					return nil
				},
			},
		},
	}
	got, err := rewrite(t, settings, `<p>drop</p><p>swap</p><p>other</p>`, 0)
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	want := `<p></p><p><b>&</b></p><p>&lt;x&gt;other</p>`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// TestTextChunkLastInTextNodeSplitAcrossWrites locks in the literal
// scenario: "<p>he" and "llo</p>" delivered as two separate Write calls
// must report ("he", false), ("llo", false), ("", true) — a text node
// ending is its own zero-length event, never folded into the last
// content-bearing chunk.
func TestTextChunkLastInTextNodeSplitAcrossWrites(t *testing.T) {
	type seen struct {
		text string
		last bool
	}
	var got []seen
	settings := Settings{
		DocumentContentHandlers: []DocumentContentHandlers{
			{
				Text: func(c *TextChunk) error {
					got = append(got, seen{text: c.AsStr(), last: c.LastInTextNode()})
					return nil
				},
			},
		},
	}

	var out strings.Builder
	rw, err := NewRewriter(settings, func(b []byte) error {
		out.Write(b)
		return nil
	})
	if err != nil {
		t.Fatalf("NewRewriter: %v", err)
	}
	if err := rw.Write([]byte("<p>he")); err != nil {
		t.Fatalf("Write 1: %v", err)
	}
	if err := rw.Write([]byte("llo</p>")); err != nil {
		t.Fatalf("Write 2: %v", err)
	}
	if err := rw.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	want := []seen{
		{text: "he", last: false},
		{text: "llo", last: false},
		{text: "", last: true},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d text callbacks %+v, want %d %+v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestDoctypeRemoval(t *testing.T) {
	settings := Settings{
		DocumentContentHandlers: []DocumentContentHandlers{
			{
				Doctype: func(d *Doctype) error {
					if d.Name() != "html" {
						t.Errorf("doctype name = %q, want html", d.Name())
					}
					d.Remove()
					return nil
				},
			},
		},
	}
	got, err := rewrite(t, settings, `<!DOCTYPE html><p>x</p>`, 0)
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if got != `<p>x</p>` {
		t.Fatalf("got %q, want doctype stripped", got)
	}
}

func TestDocumentEndAppend(t *testing.T) {
	settings := Settings{
		DocumentContentHandlers: []DocumentContentHandlers{
			{
				End: func(de *DocumentEnd) error {
					de.Append("<!--the end-->", Html)
					return nil
				},
			},
		},
	}
	got, err := rewrite(t, settings, `<p>x</p>`, 0)
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if got != `<p>x</p><!--the end-->` {
		t.Fatalf("got %q", got)
	}
}

func TestTextAndCommentsPropagateThroughUnmatchedDescendants(t *testing.T) {
	var texts []string
	settings := Settings{
		ElementContentHandlers: []ElementContentHandlers{
			{
				Selector: "article",
				Text: func(c *TextChunk) error {
					texts = append(texts, c.AsStr())
					return nil
				},
			},
		},
	}
	if _, err := rewrite(t, settings, `<article>a<span>b</span>c</article>`, 0); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	joined := strings.Join(texts, "")
	if joined != "abc" {
		t.Fatalf("captured text = %q, want abc", joined)
	}
}

func TestStrictModeErrorsOnParsingAmbiguity(t *testing.T) {
	settings := Settings{Strict: true}
	_, err := rewrite(t, settings, `<select><textarea></select>`, 0)
	if err == nil {
		t.Fatalf("expected an error in strict mode")
	}
}

func TestNonStrictModeBailsOutInstead(t *testing.T) {
	settings := Settings{Strict: false}
	var out strings.Builder
	rw, err := NewRewriter(settings, func(b []byte) error {
		out.Write(b)
		return nil
	})
	if err != nil {
		t.Fatalf("NewRewriter: %v", err)
	}
	input := `<select><textarea></select>`
	_ = rw.Write([]byte(input))
	_ = rw.End()

	reason, bailedOut := rw.Bailout()
	if !bailedOut {
		t.Fatalf("expected Bailout() to report true")
	}
	if reason == "" {
		t.Fatalf("expected a non-empty bailout reason")
	}
	if got := out.String(); got != input {
		t.Fatalf("non-strict bailout should emit the remaining input verbatim: got %q, want %q", got, input)
	}
}

func TestNonStrictModeBailoutStillRewritesBeforeTheAmbiguity(t *testing.T) {
	var seen []string
	settings := Settings{
		Strict: false,
		ElementContentHandlers: []ElementContentHandlers{
			{
				Selector: "select",
				Element: func(el *StartTag) error {
					seen = append(seen, el.Name())
					return el.SetAttribute("data-seen", "1")
				},
			},
		},
	}
	var out strings.Builder
	rw, err := NewRewriter(settings, func(b []byte) error {
		out.Write(b)
		return nil
	})
	if err != nil {
		t.Fatalf("NewRewriter: %v", err)
	}
	input := `<select><textarea></select><p>after</p>`
	if err := rw.Write([]byte(input)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := rw.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	if len(seen) != 1 || seen[0] != "select" {
		t.Fatalf("expected the select element handler to fire once before the bailout, got %v", seen)
	}
	want := `<select data-seen="1"><textarea></select><p>after</p>`
	if got := out.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if _, bailedOut := rw.Bailout(); !bailedOut {
		t.Fatalf("expected Bailout() to report true")
	}
}

func TestMemoryLimitExceeded(t *testing.T) {
	settings := Settings{MemorySettings: MemorySettings{MaxAllowedMemoryUsage: 4}}
	_, err := rewrite(t, settings, `<p>this is far more than four bytes</p>`, 0)
	var memErr *MemoryLimitExceededError
	require.ErrorAs(t, err, &memErr)
}

func TestUnknownEncodingRejectedAtConstruction(t *testing.T) {
	_, err := NewRewriter(Settings{Encoding: "not-a-real-encoding"}, func([]byte) error { return nil })
	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
	require.Equal(t, UnknownEncoding, encErr.Kind)
}

func TestNonASCIICompatibleEncodingRejected(t *testing.T) {
	_, err := NewRewriter(Settings{Encoding: "utf-16le"}, func([]byte) error { return nil })
	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
	require.Equal(t, NonAsciiCompatibleEncoding, encErr.Kind)
}

func TestInvalidSelectorRejectedAtConstruction(t *testing.T) {
	settings := Settings{
		ElementContentHandlers: []ElementContentHandlers{
			{Selector: ">", Element: func(*StartTag) error { return nil }},
		},
	}
	_, err := NewRewriter(settings, func([]byte) error { return nil })
	var selErr *SelectorError
	require.ErrorAs(t, err, &selErr)
}

func TestWriteAfterEndIsRejected(t *testing.T) {
	rw, err := NewRewriter(Settings{}, func([]byte) error { return nil })
	if err != nil {
		t.Fatalf("NewRewriter: %v", err)
	}
	if err := rw.Write([]byte(`<p>x</p>`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := rw.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := rw.Write([]byte(`more`)); err == nil {
		t.Fatalf("expected an error writing after End")
	}
}

func TestAdjustCharsetOnMetaTag(t *testing.T) {
	settings := Settings{AdjustCharsetOnMetaTag: true}
	rw, err := NewRewriter(settings, func([]byte) error { return nil })
	if err != nil {
		t.Fatalf("NewRewriter: %v", err)
	}
	if err := rw.Write([]byte(`<meta charset="iso-8859-1">`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := rw.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if got := rw.Encoding(); got != "windows-1252" && got != "iso-8859-1" {
		t.Fatalf("Encoding() = %q, want the canonical label for iso-8859-1", got)
	}
}
