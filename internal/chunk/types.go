// Package chunk splits file content into overlapping byte windows sized
// and split for the language the extension implies, so each window is
// small enough to embed meaningfully and large enough to carry context.
package chunk

// Config controls how a single file's content is split into chunks.
type Config struct {
	MaxBytes     int
	OverlapBytes int
}

// sizeClass groups extensions that share a byte budget.
type sizeClass struct {
	ext          map[string]bool
	maxBytes     int
	overlapBytes int
}

var codeExts = []string{
	"rs", "py", "pyi", "pyw", "js", "mjs", "cjs", "ts", "mts", "cts", "tsx",
	"jsx", "go", "java", "kt", "kts", "scala", "sc", "groovy", "gradle", "clj",
	"cljs", "cljc", "c", "cpp", "cc", "cxx", "h", "hpp", "hxx", "hh", "cs",
	"fs", "fsi", "fsx", "vb", "vbs", "rb", "erb", "swift", "m", "mm", "dart",
	"php", "pl", "pm", "lua", "r", "jl", "ex", "exs", "erl", "hrl", "hs",
	"lhs", "ml", "mli", "elm", "zig", "nim", "v", "d", "sol", "move", "pas",
	"lisp", "el", "rkt", "asm", "s", "wat", "vue", "svelte", "astro",
}

var proseExts = []string{"md", "markdown", "txt", "rst", "adoc", "tex"}

var structuredConfigExts = []string{
	"toml", "yaml", "yml", "json", "jsonc", "json5", "ini", "cfg", "conf", "env",
	"properties", "tf", "tfvars", "hcl", "nix", "proto", "graphql", "gql",
}

var dataExts = []string{"csv", "tsv", "sql", "log", "lock", "cmake"}

func buildSet(exts []string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		m[e] = true
	}
	return m
}

var classes = []sizeClass{
	{buildSet(codeExts), 1200, 200},
	{buildSet(proseExts), 800, 150},
	{buildSet(structuredConfigExts), 600, 100},
	{buildSet(dataExts), 800, 150},
}

// GetChunkConfig returns the byte-size class for ext (without the leading dot).
// Extensions outside every known class fall back to the default prose size.
func GetChunkConfig(ext string) Config {
	for _, c := range classes {
		if c.ext[ext] {
			return Config{MaxBytes: c.maxBytes, OverlapBytes: c.overlapBytes}
		}
	}
	return Config{MaxBytes: 800, OverlapBytes: 150}
}
