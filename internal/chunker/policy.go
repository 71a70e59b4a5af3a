package chunker

import (
	"fmt"
	"regexp"

	"github.com/dshills/coldstart/pkg/types"
)

// DeclarationPolicy decides which lines open a top-level declaration for
// one language. Lines are passed without their terminator.
type DeclarationPolicy interface {
	Language() types.Language
	IsDeclaration(line string) bool
}

// patternPolicy matches declaration lines against an anchored regexp.
type patternPolicy struct {
	lang    types.Language
	pattern *regexp.Regexp
}

// NewPatternPolicy compiles a line pattern into a policy. The pattern is
// matched against whole lines, so it should be anchored with ^.
func NewPatternPolicy(lang types.Language, pattern string) (DeclarationPolicy, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile %s declaration pattern: %w", lang, err)
	}
	return &patternPolicy{lang: lang, pattern: re}, nil
}

func mustPatternPolicy(lang types.Language, pattern string) DeclarationPolicy {
	p, err := NewPatternPolicy(lang, pattern)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *patternPolicy) Language() types.Language { return p.lang }

func (p *patternPolicy) IsDeclaration(line string) bool {
	return p.pattern.MatchString(line)
}

// Built-in policies. Each only recognizes declarations starting at column 0,
// so nested methods stay inside their enclosing class chunk.
var (
	PythonPolicy = mustPatternPolicy(types.LangPython,
		`^(?:class |def |async def )`)

	GoPolicy = mustPatternPolicy(types.LangGo,
		`^(?:func|type)\s`)

	JavaScriptPolicy = mustPatternPolicy(types.LangJavaScript,
		`^(?:export\s+(?:default\s+)?)?(?:async\s+)?(?:function\b|class\s)`)

	TypeScriptPolicy = mustPatternPolicy(types.LangTypeScript,
		`^(?:export\s+(?:default\s+)?)?(?:declare\s+)?(?:(?:async\s+)?function\b|(?:abstract\s+)?class\s|interface\s|enum\s|type\s+\w+)`)

	JavaPolicy = mustPatternPolicy(types.LangJava,
		`^(?:(?:public|protected|private|abstract|final|static|sealed|non-sealed|strictfp)\s+)*(?:class|interface|enum|record|@interface)\s`)
)

// DefaultPolicies returns the built-in policy for every structural language.
func DefaultPolicies() []DeclarationPolicy {
	return []DeclarationPolicy{
		PythonPolicy,
		GoPolicy,
		JavaScriptPolicy,
		TypeScriptPolicy,
		JavaPolicy,
	}
}

func policyTable(policies []DeclarationPolicy) map[types.Language]DeclarationPolicy {
	table := make(map[types.Language]DeclarationPolicy, len(policies))
	for _, p := range policies {
		table[p.Language()] = p
	}
	return table
}
