package rewriter

import (
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// nonASCIICompatible lists the htmlindex labels spec section 6 names
// explicitly as unsafe to rewrite: bytes 0x00-0x7F don't mean what ASCII
// says they mean, so byte-level tag/attribute scanning would corrupt the
// document. Every other label htmlindex recognizes is ASCII-compatible
// (it already excludes EBCDIC and similar encodings that never reach the
// web platform).
var nonASCIICompatible = map[string]bool{
	"utf-16le":    true,
	"utf-16be":    true,
	"iso-2022-jp": true,
	"replacement": true,
}

// encodingOracle resolves a label to a canonical name and flips, once,
// when a <meta charset> retarget is observed. It never decodes/encodes a
// full document: the rewriter operates on raw bytes and only consults the
// oracle to validate labels and to implement the meta-charset switch.
type encodingOracle struct {
	label string
}

func newEncodingOracle(label string) (*encodingOracle, error) {
	canon, err := canonicalEncodingLabel(label)
	if err != nil {
		return nil, err
	}
	return &encodingOracle{label: canon}, nil
}

// canonicalEncodingLabel validates label against the htmlindex registry
// and spec section 6's ASCII-compatibility rule.
func canonicalEncodingLabel(label string) (string, error) {
	norm := strings.ToLower(strings.TrimSpace(label))
	enc, err := htmlindex.Get(norm)
	if err != nil {
		return "", &EncodingError{Kind: UnknownEncoding, Label: label}
	}
	canon, err := htmlindex.Name(enc)
	if err != nil {
		canon = norm
	}
	if nonASCIICompatible[canon] {
		return "", &EncodingError{Kind: NonAsciiCompatibleEncoding, Label: label}
	}
	return canon, nil
}

// Label reports the currently active encoding label.
func (o *encodingOracle) Label() string { return o.label }

// AdjustFromMetaTag implements the adjust_charset_on_meta_tag one-shot
// switch: a <meta charset="..."> (or <meta http-equiv=content-type
// content="...charset=...">) retargets subsequent decoding only. Bytes
// already emitted are untouched — this rewriter never re-encodes output,
// it only uses the label to decide whether byte-level scanning stays
// valid (see the ASCII-compatibility check above).
func (o *encodingOracle) AdjustFromMetaTag(label string) error {
	canon, err := canonicalEncodingLabel(label)
	if err != nil {
		// A meta tag naming a bad encoding doesn't fail the rewrite; the
		// oracle just keeps the previously validated label.
		return err
	}
	o.label = canon
	return nil
}

// metaCharsetFromAttrs extracts the charset label from a <meta> tag's
// attributes, handling both the HTML5 `<meta charset="...">` shorthand and
// the legacy `<meta http-equiv="Content-Type" content="...; charset=...">`
// form. Returns "" if neither is present.
func metaCharsetFromAttrs(attrs map[string]string) string {
	if cs, ok := attrs["charset"]; ok {
		return cs
	}
	httpEquiv := strings.ToLower(attrs["http-equiv"])
	if httpEquiv != "content-type" {
		return ""
	}
	content := attrs["content"]
	idx := strings.Index(strings.ToLower(content), "charset=")
	if idx < 0 {
		return ""
	}
	rest := content[idx+len("charset="):]
	rest = strings.Trim(rest, `"' `)
	if semi := strings.IndexByte(rest, ';'); semi >= 0 {
		rest = rest[:semi]
	}
	return strings.TrimSpace(rest)
}
