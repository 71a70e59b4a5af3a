package types

// Language is the closed set of language tags a chunk can carry.
type Language string

const (
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangGo         Language = "go"
	LangRust       Language = "rust"
	LangJava       Language = "java"
	LangCPP        Language = "cpp"
	LangC          Language = "c"
	LangMarkdown   Language = "markdown"
	LangYAML       Language = "yaml"
	LangJSON       Language = "json"
	LangText       Language = "text"
)

// Languages lists every tag in classifier order, text last.
var Languages = []Language{
	LangPython, LangJavaScript, LangTypeScript, LangGo, LangRust, LangJava,
	LangCPP, LangC, LangMarkdown, LangYAML, LangJSON, LangText,
}

// Valid reports whether l is one of the known tags.
func (l Language) Valid() bool {
	switch l {
	case LangPython, LangJavaScript, LangTypeScript, LangGo, LangRust, LangJava,
		LangCPP, LangC, LangMarkdown, LangYAML, LangJSON, LangText:
		return true
	default:
		return false
	}
}

// IsStructural reports whether the language has declaration syntax the
// structural chunker understands.
func (l Language) IsStructural() bool {
	switch l {
	case LangPython, LangGo, LangJavaScript, LangTypeScript, LangJava:
		return true
	case LangRust, LangCPP, LangC, LangMarkdown, LangYAML, LangJSON, LangText:
		return false
	default:
		return false
	}
}

func (l Language) String() string { return string(l) }
