package repoinspect

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// MaxFileChars is the per-file cap applied when collecting key files.
const MaxFileChars = 4000

var priorityFiles = []string{"README.md", "CLAUDE.md", ".claude/settings.json"}

var entryPoints = map[string]struct{}{
	"main.py": {}, "app.py": {}, "index.ts": {}, "index.js": {}, "server.py": {},
	"server.ts": {}, "main.ts": {}, "main.js": {}, "run.py": {}, "cli.py": {}, "main.go": {},
}

var keyKeywords = []string{"claude", "anthropic", "agent", "mcp", "llm", "ai"}

var keyExtensions = map[string]struct{}{
	".py": {}, ".ts": {}, ".js": {}, ".tsx": {}, ".jsx": {}, ".md": {}, ".rs": {}, ".go": {},
}

// KeyFile is one file selected for review.
type KeyFile struct {
	Path      string
	Content   string
	Truncated bool
}

// KeyFiles selects the files most useful to a reviewer: the README and
// agent instructions first, then entry points and files whose names mention
// AI topics. Files are truncated to MaxFileChars and collection stops once
// maxChars of content has been gathered.
func KeyFiles(root string, maxChars int) ([]KeyFile, error) {
	var interesting []string
	err := walk(root, func(_, rel string, entry fs.DirEntry) error {
		name := entry.Name()
		lower := strings.ToLower(name)
		if _, ok := keyExtensions[filepath.Ext(name)]; ok {
			for _, keyword := range keyKeywords {
				if strings.Contains(lower, keyword) {
					interesting = append(interesting, rel)
					break
				}
			}
		}
		if _, ok := entryPoints[name]; ok {
			interesting = append(interesting, rel)
		}
		if strings.HasPrefix(rel, ".claude/agents/") || strings.HasPrefix(rel, ".claude/skills/") {
			if strings.HasSuffix(lower, ".md") {
				interesting = append(interesting, rel)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(interesting)

	ordered := make([]string, 0, len(priorityFiles)+len(interesting))
	seen := make(map[string]struct{})
	for _, rel := range append(append([]string(nil), priorityFiles...), interesting...) {
		if _, dup := seen[rel]; dup {
			continue
		}
		seen[rel] = struct{}{}
		ordered = append(ordered, rel)
	}

	var (
		files []KeyFile
		total int
	)
	for _, rel := range ordered {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if !fileExists(path) {
			continue
		}
		content := readCapped(path, MaxFileChars*4)
		file := KeyFile{Path: rel, Content: content}
		if runes := []rune(content); len(runes) > MaxFileChars {
			file.Content = string(runes[:MaxFileChars])
			file.Truncated = true
		}
		files = append(files, file)
		total += len(file.Content)
		if maxChars > 0 && total > maxChars {
			break
		}
	}
	return files, nil
}

// FormatKeyFiles renders files as markdown sections for a review prompt.
func FormatKeyFiles(files []KeyFile) string {
	if len(files) == 0 {
		return "(no key files found)"
	}
	var b strings.Builder
	for _, file := range files {
		fmt.Fprintf(&b, "\n### %s\n```\n%s", file.Path, file.Content)
		if file.Truncated {
			b.WriteString("\n... (truncated)")
		}
		b.WriteString("\n```\n")
	}
	return b.String()
}
