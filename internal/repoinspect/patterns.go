package repoinspect

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Depth grades how deeply a project integrates AI APIs.
type Depth string

const (
	DepthNone      Depth = "none"
	DepthBasic     Depth = "basic"
	DepthModerate  Depth = "moderate"
	DepthDeep      Depth = "deep"
	DepthExtensive Depth = "extensive"
)

type aiPattern struct {
	name        string
	description string
	weight      int
	patterns    []*regexp.Regexp
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		out = append(out, regexp.MustCompile(`(?i)`+expr))
	}
	return out
}

var aiPatterns = []aiPattern{
	{"anthropic_sdk", "Anthropic SDK import/usage", 3, compile(
		`import\s+anthropic`, `from\s+anthropic`, `require\(['"]@anthropic`,
		`require\(['"]anthropic`, `import\s+Anthropic`, `new\s+Anthropic`)},
	{"claude_model_reference", "Claude model name reference", 3, compile(
		`claude-opus`, `claude-sonnet`, `claude-haiku`, `claude-3`, `claude-4`, `opus-4`, `opus4`)},
	{"anthropic_api_key", "Anthropic API key reference", 2, compile(`ANTHROPIC_API_KEY`, `sk-ant-`)},
	{"extended_thinking", "Extended thinking / chain-of-thought", 4, compile(
		`extended.?thinking`, `thinking.*budget`, `think.*tokens`, `budget_tokens`)},
	{"tool_use", "Tool use / function calling", 3, compile(
		`tool_use`, `tool_choice`, `function_calling`, `tools\s*=\s*\[`, `input_schema`)},
	{"mcp_server", "MCP (Model Context Protocol) server", 4, compile(
		`mcp.*server`, `model.?context.?protocol`, `FastMCP`, `@mcp`, `mcp\.tool`, `MCPServer`)},
	{"claude_code", "Claude Code integration", 3, compile(
		`claude.?code`, `CLAUDE\.md`, `\.claude`, `claude.*hooks`, `claude.*skills`)},
	{"streaming", "Streaming response handling", 2, compile(
		`stream.*message`, `with.*stream`, `content_block`, `message_stream`)},
	{"multi_turn", "Multi-turn conversation", 2, compile(
		`conversation.*history`, `messages\s*[\.\[]\s*append`, `chat.*history`, `message.*history`)},
	{"agentic_pattern", "Agentic patterns", 3, compile(
		`agent.*loop`, `observe.*act`, `autonomous`, `self.*correct`, `plan.*execute`)},
	{"openai_sdk", "OpenAI SDK usage", 2, compile(
		`import\s+openai`, `from\s+openai`, `OpenAI\(`, `OPENAI_API_KEY`)},
	{"gemini_sdk", "Google Gemini SDK usage", 2, compile(
		`import\s+google\.genai`, `from\s+google\s+import\s+genai`, `genai\.Client`, `GEMINI_API_KEY`)},
	{"system_prompt", "System prompt usage", 1, compile(
		`system\s*[=:]\s*['"]`, `system_prompt`, `role.*system`)},
}

var sourceExtensions = map[string]struct{}{
	".py": {}, ".js": {}, ".ts": {}, ".tsx": {}, ".jsx": {}, ".rs": {}, ".go": {},
	".java": {}, ".rb": {}, ".swift": {}, ".kt": {}, ".cpp": {}, ".c": {}, ".cs": {},
	".vue": {}, ".svelte": {}, ".dart": {}, ".sh": {}, ".bash": {}, ".zsh": {},
}

var configExtensions = map[string]struct{}{
	".md": {}, ".txt": {}, ".json": {}, ".yaml": {}, ".yml": {}, ".toml": {},
	".cfg": {}, ".ini": {}, ".conf": {},
}

var scannableNames = map[string]struct{}{
	".env.example": {}, "Dockerfile": {}, "docker-compose.yml": {}, "Makefile": {},
	"Procfile": {}, "CLAUDE.md": {},
}

// maxScanBytes bounds how much of one file is searched for patterns.
const maxScanBytes = 1 << 20

// PatternMatch records where an AI integration pattern was found.
type PatternMatch struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Files       []string `json:"files"`
	MatchCount  int      `json:"match_count"`
}

// Integration is the AI integration summary of a checkout.
type Integration struct {
	Patterns []PatternMatch `json:"patterns,omitempty"`
	Score    int            `json:"score"`
	Depth    Depth          `json:"depth"`
}

func scannable(name string) bool {
	if _, ok := scannableNames[name]; ok {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := sourceExtensions[ext]; ok {
		return true
	}
	_, ok := configExtensions[ext]
	return ok
}

// DetectIntegration searches source and config files for AI API usage.
// Each file counts toward a pattern through its first matching expression.
func DetectIntegration(root string) (Integration, error) {
	found := make(map[string]*PatternMatch)
	err := walk(root, func(path, rel string, entry fs.DirEntry) error {
		if !scannable(entry.Name()) {
			return nil
		}
		content := readCapped(path, maxScanBytes)
		if content == "" {
			return nil
		}
		for _, pattern := range aiPatterns {
			for _, expr := range pattern.patterns {
				matches := expr.FindAllStringIndex(content, -1)
				if len(matches) == 0 {
					continue
				}
				match, ok := found[pattern.name]
				if !ok {
					match = &PatternMatch{Name: pattern.name, Description: pattern.description}
					found[pattern.name] = match
				}
				match.Files = append(match.Files, rel)
				match.MatchCount += len(matches)
				break
			}
		}
		return nil
	})
	if err != nil {
		return Integration{}, err
	}

	var integration Integration
	for _, pattern := range aiPatterns {
		match, ok := found[pattern.name]
		if !ok {
			continue
		}
		integration.Score += pattern.weight * min(match.MatchCount, 5)
		integration.Patterns = append(integration.Patterns, *match)
	}
	integration.Depth = gradeDepth(len(integration.Patterns), integration.Score)
	return integration, nil
}

func gradeDepth(patterns, score int) Depth {
	switch {
	case patterns == 0:
		return DepthNone
	case patterns <= 2 && score < 6:
		return DepthBasic
	case patterns <= 4 && score < 15:
		return DepthModerate
	case patterns <= 6 && score < 25:
		return DepthDeep
	default:
		return DepthExtensive
	}
}

// Structure describes the top level layout of a checkout.
type Structure struct {
	TopLevelDirs     []string `json:"top_level_dirs,omitempty"`
	TopLevelFiles    []string `json:"top_level_files,omitempty"`
	Frameworks       []string `json:"frameworks,omitempty"`
	HasDocker        bool     `json:"has_docker"`
	HasCI            bool     `json:"has_ci"`
	HasEnvExample    bool     `json:"has_env_example"`
	HasClaudeMD      bool     `json:"has_claude_md"`
	HasLicense       bool     `json:"has_license"`
	Boilerplate      string   `json:"boilerplate,omitempty"`
	BoilerplateHeavy bool     `json:"boilerplate_heavy"`
}

var frameworkSignals = []struct {
	file      string
	fallback  string
	detectors []struct{ keyword, name string }
}{
	{"package.json", "Node.js", []struct{ keyword, name string }{
		{"next", "Next.js"}, {"react", "React"}, {"vue", "Vue"}, {"express", "Express"}, {"svelte", "Svelte"},
	}},
	{"requirements.txt", "Python", []struct{ keyword, name string }{
		{"flask", "Flask"}, {"fastapi", "FastAPI"}, {"django", "Django"}, {"streamlit", "Streamlit"},
	}},
	{"pyproject.toml", "Python", []struct{ keyword, name string }{
		{"flask", "Flask"}, {"fastapi", "FastAPI"}, {"django", "Django"},
	}},
	{"Cargo.toml", "Rust", nil},
	{"go.mod", "Go", nil},
}

var boilerplates = []struct {
	description string
	files       []string
}{
	{"Create React App boilerplate", []string{"src/App.test.js", "src/reportWebVitals.js", "src/setupTests.js"}},
	{"Next.js default template", []string{"app/page.tsx", "app/layout.tsx", "next.config.ts"}},
	{"Vite default template", []string{"vite.config.ts", "src/App.tsx"}},
}

// boilerplateLOC is the size below which a boilerplate project counts as mostly template.
const boilerplateLOC = 500

// AnalyzeStructure inspects the top level of root. totalLOC comes from ScanFiles.
func AnalyzeStructure(root string, totalLOC int) (Structure, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return Structure{}, err
	}
	var structure Structure
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") && name != ".env.example" && name != ".claude" {
			continue
		}
		if entry.IsDir() {
			if _, skip := skipDirs[name]; !skip {
				structure.TopLevelDirs = append(structure.TopLevelDirs, name)
			}
		} else if entry.Type().IsRegular() {
			structure.TopLevelFiles = append(structure.TopLevelFiles, name)
		}
	}

	exists := func(names ...string) bool {
		for _, name := range names {
			if fileExists(filepath.Join(root, name)) {
				return true
			}
		}
		return false
	}
	structure.HasDocker = exists("Dockerfile", "docker-compose.yml", "docker-compose.yaml")
	structure.HasCI = dirExists(filepath.Join(root, ".github", "workflows"))
	structure.HasEnvExample = exists(".env.example", ".env.local.example", ".env.sample")
	structure.HasClaudeMD = exists("CLAUDE.md") || dirExists(filepath.Join(root, ".claude"))
	structure.HasLicense = exists("LICENSE", "LICENSE.md", "LICENSE.txt")

	frameworks := make(map[string]struct{})
	for _, signal := range frameworkSignals {
		path := filepath.Join(root, signal.file)
		if !fileExists(path) {
			continue
		}
		content := strings.ToLower(readCapped(path, maxScanBytes))
		detected := false
		for _, detector := range signal.detectors {
			if strings.Contains(content, detector.keyword) {
				frameworks[detector.name] = struct{}{}
				detected = true
			}
		}
		if !detected {
			frameworks[signal.fallback] = struct{}{}
		}
	}
	for name := range frameworks {
		structure.Frameworks = append(structure.Frameworks, name)
	}
	sort.Strings(structure.Frameworks)

	for _, bp := range boilerplates {
		matched := 0
		for _, file := range bp.files {
			if fileExists(filepath.Join(root, filepath.FromSlash(file))) {
				matched++
			}
		}
		if float64(matched) >= float64(len(bp.files))*0.6 {
			structure.Boilerplate = bp.description
			structure.BoilerplateHeavy = totalLOC < boilerplateLOC
			break
		}
	}
	return structure, nil
}

func readCapped(path string, limit int64) string {
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()
	data, _ := io.ReadAll(io.LimitReader(file, limit))
	return strings.ToValidUTF8(string(data), "")
}
