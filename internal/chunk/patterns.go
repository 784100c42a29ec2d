package chunk

import "regexp"

// semanticPatterns maps a file extension to the regex that marks where a
// top-level declaration begins in that language. chunkWithSemanticConfig
// uses these as preferred split points before falling back to a raw byte
// window.
var semanticPatterns = map[string]*regexp.Regexp{
	"rs":      regexp.MustCompile(`\n(?:pub\s+)?(?:async\s+)?(?:fn |struct |enum |impl |trait |mod )`),
	"py":      regexp.MustCompile(`\n(?:class |def |async def )`),
	"pyi":     regexp.MustCompile(`\n(?:class |def |async def )`),
	"pyw":     regexp.MustCompile(`\n(?:class |def |async def )`),
	"js":      regexp.MustCompile(`\n(?:function |class |export (?:default )?(?:function |class |const |let ))`),
	"jsx":     regexp.MustCompile(`\n(?:function |class |export (?:default )?(?:function |class |const |let ))`),
	"mjs":     regexp.MustCompile(`\n(?:function |class |export (?:default )?(?:function |class |const |let ))`),
	"cjs":     regexp.MustCompile(`\n(?:function |class |export (?:default )?(?:function |class |const |let ))`),
	"ts":      regexp.MustCompile(`\n(?:(?:export )?(?:function |class |interface |type |const |enum |async function ))`),
	"tsx":     regexp.MustCompile(`\n(?:(?:export )?(?:function |class |interface |type |const |enum |async function ))`),
	"mts":     regexp.MustCompile(`\n(?:(?:export )?(?:function |class |interface |type |const |enum |async function ))`),
	"cts":     regexp.MustCompile(`\n(?:(?:export )?(?:function |class |interface |type |const |enum |async function ))`),
	"go":      regexp.MustCompile(`\n(?:func |type )`),
	"java":    regexp.MustCompile(`\n\s*(?:public |private |protected )?(?:static )?(?:class |interface |void |int |string |def )`),
	"cs":      regexp.MustCompile(`\n\s*(?:public |private |protected )?(?:static )?(?:class |interface |void |int |string |def )`),
	"kt":      regexp.MustCompile(`\n(?:(?:override |suspend |private |internal |public )?(?:fun |class |object |interface |data class |sealed class |enum class ))`),
	"kts":     regexp.MustCompile(`\n(?:(?:override |suspend |private |internal |public )?(?:fun |class |object |interface |data class |sealed class |enum class ))`),
	"scala":   regexp.MustCompile(`\n\s*(?:(?:private |protected )?(?:def |class |object |trait |case class |val |var ))`),
	"sc":      regexp.MustCompile(`\n\s*(?:(?:private |protected )?(?:def |class |object |trait |case class |val |var ))`),
	"swift":   regexp.MustCompile(`\n\s*(?:(?:public |private |internal |open )?(?:func |class |struct |enum |protocol |extension ))`),
	"dart":    regexp.MustCompile(`\n\s*(?:(?:abstract )?class |void |Future |Stream |[A-Z][a-zA-Z]*\s+[a-z])`),
	"c":       regexp.MustCompile(`\n(?:[a-zA-Z_][a-zA-Z0-9_*\s]+\([^)]*\)\s*\{)`),
	"cpp":     regexp.MustCompile(`\n(?:[a-zA-Z_][a-zA-Z0-9_*\s]+\([^)]*\)\s*\{)`),
	"cc":      regexp.MustCompile(`\n(?:[a-zA-Z_][a-zA-Z0-9_*\s]+\([^)]*\)\s*\{)`),
	"cxx":     regexp.MustCompile(`\n(?:[a-zA-Z_][a-zA-Z0-9_*\s]+\([^)]*\)\s*\{)`),
	"h":       regexp.MustCompile(`\n(?:[a-zA-Z_][a-zA-Z0-9_*\s]+\([^)]*\)\s*\{)`),
	"hpp":     regexp.MustCompile(`\n(?:[a-zA-Z_][a-zA-Z0-9_*\s]+\([^)]*\)\s*\{)`),
	"hxx":     regexp.MustCompile(`\n(?:[a-zA-Z_][a-zA-Z0-9_*\s]+\([^)]*\)\s*\{)`),
	"hh":      regexp.MustCompile(`\n(?:[a-zA-Z_][a-zA-Z0-9_*\s]+\([^)]*\)\s*\{)`),
	"m":       regexp.MustCompile(`\n(?:[a-zA-Z_][a-zA-Z0-9_*\s]+\([^)]*\)\s*\{)`),
	"mm":      regexp.MustCompile(`\n(?:[a-zA-Z_][a-zA-Z0-9_*\s]+\([^)]*\)\s*\{)`),
	"rb":      regexp.MustCompile(`\n(?:class |module |def )`),
	"erb":     regexp.MustCompile(`\n(?:class |module |def )`),
	"php":     regexp.MustCompile(`\n\s*(?:(?:public |private |protected |static )?function |class |interface |trait )`),
	"lua":     regexp.MustCompile(`\n(?:(?:local )?function )`),
	"jl":      regexp.MustCompile(`\n(?:function |macro |struct |module |abstract type )`),
	"ex":      regexp.MustCompile(`\n\s*(?:def |defp |defmodule |defmacro )`),
	"exs":     regexp.MustCompile(`\n\s*(?:def |defp |defmodule |defmacro )`),
	"erl":     regexp.MustCompile(`\n[a-z][a-zA-Z0-9_]*\(`),
	"hrl":     regexp.MustCompile(`\n[a-z][a-zA-Z0-9_]*\(`),
	"hs":      regexp.MustCompile(`\n[a-z][a-zA-Z0-9_']*\s+::`),
	"lhs":     regexp.MustCompile(`\n[a-z][a-zA-Z0-9_']*\s+::`),
	"ml":      regexp.MustCompile(`\n(?:let |type |module |val )`),
	"mli":     regexp.MustCompile(`\n(?:let |type |module |val )`),
	"elm":     regexp.MustCompile(`\n[a-z][a-zA-Z0-9_]*\s+:`),
	"fs":      regexp.MustCompile(`\n(?:let |type |module |member )`),
	"fsi":     regexp.MustCompile(`\n(?:let |type |module |member )`),
	"fsx":     regexp.MustCompile(`\n(?:let |type |module |member )`),
	"zig":     regexp.MustCompile(`\n(?:(?:pub )?(?:fn |const |var ))`),
	"nim":     regexp.MustCompile(`\n(?:proc |func |method |type |template |macro )`),
	"v":       regexp.MustCompile(`\n(?:(?:pub )?(?:fn |struct |enum |interface ))`),
	"d":       regexp.MustCompile(`\n(?:[a-zA-Z_][a-zA-Z0-9_*\s]+\([^)]*\)\s*\{)`),
	"sol":     regexp.MustCompile(`\n\s*(?:function |contract |interface |library |event |modifier )`),
	"clj":     regexp.MustCompile(`\n\(`),
	"cljs":    regexp.MustCompile(`\n\(`),
	"cljc":    regexp.MustCompile(`\n\(`),
	"lisp":    regexp.MustCompile(`\n\(`),
	"el":      regexp.MustCompile(`\n\(`),
	"rkt":     regexp.MustCompile(`\n\(`),
	"pl":      regexp.MustCompile(`\n(?:sub |package )`),
	"pm":      regexp.MustCompile(`\n(?:sub |package )`),
	"r":       regexp.MustCompile(`\n[a-zA-Z_.][a-zA-Z0-9_.]*\s*<-\s*function`),
	"groovy":  regexp.MustCompile(`\n\s*(?:def |class |interface )`),
	"gradle":  regexp.MustCompile(`\n\s*(?:def |class |interface )`),
	"vue":     regexp.MustCompile(`\n<(?:template|script|style)`),
	"svelte":  regexp.MustCompile(`\n<(?:template|script|style)`),
	"astro":   regexp.MustCompile(`\n<(?:template|script|style)`),
	"pas":     regexp.MustCompile(`\n(?:procedure |function |type |var |begin )`),
	"vb":      regexp.MustCompile(`\n\s*(?:Sub |Function |Class |Property |Module )`),
	"vbs":     regexp.MustCompile(`\n\s*(?:Sub |Function |Class |Property |Module )`),
	"md":      regexp.MustCompile(`\n#{1,6} `),
	"markdown": regexp.MustCompile(`\n#{1,6} `),
	"rst":     regexp.MustCompile(`\n\n`),
	"adoc":    regexp.MustCompile(`\n\n`),
	"txt":     regexp.MustCompile(`\n\n`),
	"tex":     regexp.MustCompile(`\n\n`),
	"bib":     regexp.MustCompile(`\n\n`),
	"toml":    regexp.MustCompile(`\n\[`),
	"ini":     regexp.MustCompile(`\n\[`),
	"cfg":     regexp.MustCompile(`\n\[`),
	"yaml":    regexp.MustCompile(`\n[a-zA-Z_][a-zA-Z0-9_]*:`),
	"yml":     regexp.MustCompile(`\n[a-zA-Z_][a-zA-Z0-9_]*:`),
	"tf":      regexp.MustCompile(`\n(?:resource |data |variable |output |module |locals )`),
	"tfvars":  regexp.MustCompile(`\n(?:resource |data |variable |output |module |locals )`),
	"hcl":     regexp.MustCompile(`\n(?:resource |data |variable |output |module |locals )`),
	"nix":     regexp.MustCompile(`\n\s*[a-zA-Z_][a-zA-Z0-9_-]*\s*=`),
	"proto":   regexp.MustCompile(`\n(?:message |service |enum |rpc )`),
	"graphql": regexp.MustCompile(`\n(?:type |query |mutation |subscription |input |interface |enum )`),
	"gql":     regexp.MustCompile(`\n(?:type |query |mutation |subscription |input |interface |enum )`),
}

func getSemanticPattern(ext string) *regexp.Regexp {
	return semanticPatterns[ext]
}
