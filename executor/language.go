package executor

import (
	"context"
	"strings"
)

// Language identifies a guest language.
type Language string

// Languages with an in-process interpreter.
const (
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Python     Language = "python"
)

// Languages an assessment may be written in that have no in-process
// interpreter. They are recognised so the caller gets a clear explanation.
const (
	Java   Language = "java"
	C      Language = "c"
	CPP    Language = "cpp"
	CSharp Language = "csharp"
	Go     Language = "go"
	Rust   Language = "rust"
	Ruby   Language = "ruby"
	PHP    Language = "php"
	Kotlin Language = "kotlin"
	Swift  Language = "swift"
)

// Strategy is how a language gets executed.
type Strategy int

const (
	// StrategyNone marks a language that cannot run in-process.
	StrategyNone Strategy = iota
	// StrategyDirect runs source in a fresh isolated interpreter instance.
	StrategyDirect
	// StrategyTransform lowers source to JavaScript, then runs it directly.
	StrategyTransform
	// StrategyEmbedded runs source in a shared, lazily loaded runtime.
	StrategyEmbedded
)

func (s Strategy) String() string {
	switch s {
	case StrategyDirect:
		return "direct"
	case StrategyTransform:
		return "transform"
	case StrategyEmbedded:
		return "embedded"
	default:
		return "unsupported"
	}
}

type languageSpec struct {
	id       Language
	name     string
	strategy Strategy
	aliases  []string
}

var knownLanguages = []languageSpec{
	{JavaScript, "JavaScript", StrategyDirect, []string{"js", "node", "mjs"}},
	{TypeScript, "TypeScript", StrategyTransform, []string{"ts"}},
	{Python, "Python", StrategyEmbedded, []string{"py", "python3"}},
	{Java, "Java", StrategyNone, nil},
	{C, "C", StrategyNone, nil},
	{CPP, "C++", StrategyNone, []string{"c++", "cxx"}},
	{CSharp, "C#", StrategyNone, []string{"c#", "cs"}},
	{Go, "Go", StrategyNone, []string{"golang"}},
	{Rust, "Rust", StrategyNone, []string{"rs"}},
	{Ruby, "Ruby", StrategyNone, []string{"rb"}},
	{PHP, "PHP", StrategyNone, nil},
	{Kotlin, "Kotlin", StrategyNone, []string{"kt"}},
	{Swift, "Swift", StrategyNone, nil},
}

var languageIndex = func() map[string]languageSpec {
	idx := make(map[string]languageSpec)
	for _, spec := range knownLanguages {
		idx[string(spec.id)] = spec
		for _, alias := range spec.aliases {
			idx[alias] = spec
		}
	}
	return idx
}()

// ParseLanguage normalises a language name or alias ("js", "py", "C++").
// Unknown names come back lower-cased and are unsupported.
func ParseLanguage(name string) Language {
	key := strings.ToLower(strings.TrimSpace(name))
	if spec, ok := languageIndex[key]; ok {
		return spec.id
	}
	return Language(key)
}

// Strategy returns how l is executed.
func (l Language) Strategy() Strategy {
	return languageIndex[string(l)].strategy
}

// DisplayName returns the human-readable name, e.g. "C++".
func (l Language) DisplayName() string {
	if spec, ok := languageIndex[string(l)]; ok {
		return spec.name
	}
	if l == "" {
		return "(none)"
	}
	return string(l)
}

// IsSupported reports whether l has a backend.
func IsSupported(l Language) bool {
	return ParseLanguage(string(l)).Strategy() != StrategyNone
}

// LanguageInfo describes a known language for listings.
type LanguageInfo struct {
	ID        Language `json:"id"`
	Name      string   `json:"name"`
	Supported bool     `json:"supported"`
	Strategy  string   `json:"strategy"`
}

// Languages lists every known language, supported ones first.
func Languages() []LanguageInfo {
	out := make([]LanguageInfo, 0, len(knownLanguages))
	for _, spec := range knownLanguages {
		out = append(out, LanguageInfo{
			ID:        spec.id,
			Name:      spec.name,
			Supported: spec.strategy != StrategyNone,
			Strategy:  spec.strategy.String(),
		})
	}
	return out
}

func supportedNames() string {
	var names []string
	for _, spec := range knownLanguages {
		if spec.strategy != StrategyNone {
			names = append(names, spec.name)
		}
	}
	return strings.Join(names, ", ")
}

// Interpreter is a WASI build of a guest interpreter.
// See the language/javascript and language/python packages.
type Interpreter interface {
	// Name is the cache key for the compiled module.
	Name() string

	// Module returns the WASM binary. It may be slow (disk, network).
	Module(ctx context.Context) ([]byte, error)

	// Args is the guest argv. The guest source is never part of it: it is
	// delivered as a JSON request on stdin.
	Args() []string

	// LibDir is a host directory mounted read-only at /usr/local/lib, or "".
	LibDir() string
}
