package htmltok

// TextType is the lexer's current textual context, controlling which byte
// sequences can end the current text run.
type TextType uint8

const (
	Data TextType = iota
	RCData
	RawText
	ScriptData
	PlainText
	CDataSection
)

func (t TextType) String() string {
	switch t {
	case Data:
		return "Data"
	case RCData:
		return "RCData"
	case RawText:
		return "RawText"
	case ScriptData:
		return "ScriptData"
	case PlainText:
		return "PlainText"
	case CDataSection:
		return "CDataSection"
	default:
		return "Unknown"
	}
}

// AllowsEntities reports whether character references are decoded in this
// text context. Only Data and RCData do.
func (t TextType) AllowsEntities() bool {
	return t == Data || t == RCData
}

// TextTypeForElement returns the text type a start tag switches the lexer
// into, and whether it switches at all. script/style/title/textarea etc
// are the elements the tree-builder simulator must recognize per spec.
func TextTypeForElement(tagNameLower string) (TextType, bool) {
	switch tagNameLower {
	case "script":
		return ScriptData, true
	case "style", "xmp", "iframe", "noembed", "noframes":
		return RawText, true
	case "noscript":
		// Only raw-text when scripting is enabled; this implementation
		// always treats it as raw text, matching a scripting-enabled
		// embedder (the common case for a front-of-origin proxy).
		return RawText, true
	case "title", "textarea":
		return RCData, true
	case "plaintext":
		return PlainText, true
	default:
		return Data, false
	}
}
