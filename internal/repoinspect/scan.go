package repoinspect

import (
	"bufio"
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var skipDirs = map[string]struct{}{
	"node_modules": {}, ".git": {}, "vendor": {}, "venv": {}, ".venv": {},
	"__pycache__": {}, ".next": {}, "dist": {}, "build": {}, ".cache": {},
	"target": {}, "coverage": {}, ".idea": {}, ".vscode": {}, "env": {},
	".env": {}, ".tox": {}, ".mypy_cache": {}, ".pytest_cache": {}, ".ruff_cache": {},
}

var skipExtensions = map[string]struct{}{
	".lock": {}, ".svg": {}, ".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {},
	".ico": {}, ".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {}, ".map": {},
	".pyc": {}, ".pyo": {}, ".so": {}, ".dylib": {}, ".dll": {}, ".exe": {},
}

var lockFiles = map[string]struct{}{
	"package-lock.json": {}, "yarn.lock": {}, "pnpm-lock.yaml": {}, "Cargo.lock": {}, "poetry.lock": {},
}

var languageByExt = map[string]string{
	".py": "Python", ".js": "JavaScript", ".ts": "TypeScript", ".tsx": "TypeScript",
	".jsx": "JavaScript", ".rs": "Rust", ".go": "Go", ".java": "Java", ".rb": "Ruby",
	".swift": "Swift", ".kt": "Kotlin", ".cpp": "C++", ".c": "C", ".cs": "C#",
	".html": "HTML", ".css": "CSS", ".scss": "SCSS", ".vue": "Vue", ".svelte": "Svelte",
	".dart": "Dart", ".sh": "Shell", ".md": "Markdown", ".json": "JSON",
	".yaml": "YAML", ".yml": "YAML", ".toml": "TOML",
}

var testExtensions = []string{".py", ".js", ".ts", ".tsx", ".jsx", ".rs", ".go"}

var readmeNames = []string{"README.md", "readme.md", "README.rst", "README", "README.txt"}

// Language is the non-blank line count of one language.
type Language struct {
	Name  string `json:"name"`
	Lines int    `json:"lines"`
}

// Files summarizes the contents of a checkout.
type Files struct {
	FileCount       int        `json:"file_count"`
	TotalLOC        int        `json:"total_loc"`
	Languages       []Language `json:"languages,omitempty"`
	PrimaryLanguage string     `json:"primary_language,omitempty"`
	HasReadme       bool       `json:"has_readme"`
	HasTests        bool       `json:"has_tests"`
}

// walk visits every regular file below root outside the skipped directories.
func walk(root string, visit func(path, rel string, entry fs.DirEntry) error) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if entry.IsDir() {
			if _, skip := skipDirs[entry.Name()]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		return visit(path, filepath.ToSlash(rel), entry)
	})
}

// ScanFiles counts files and non-blank lines per language.
func ScanFiles(root string) (Files, error) {
	var files Files
	perLanguage := make(map[string]int)
	err := walk(root, func(path, _ string, entry fs.DirEntry) error {
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if _, skip := skipExtensions[ext]; skip {
			return nil
		}
		if strings.HasSuffix(name, ".min.js") || strings.HasSuffix(name, ".min.css") {
			return nil
		}
		if _, skip := lockFiles[name]; skip {
			return nil
		}
		files.FileCount++
		lines := countLines(path)
		files.TotalLOC += lines
		if lang, ok := languageByExt[ext]; ok {
			perLanguage[lang] += lines
		}
		if !files.HasTests && isTestFile(name) {
			files.HasTests = true
		}
		return nil
	})
	if err != nil {
		return Files{}, err
	}

	for name, lines := range perLanguage {
		files.Languages = append(files.Languages, Language{Name: name, Lines: lines})
	}
	sort.Slice(files.Languages, func(i, j int) bool {
		if files.Languages[i].Lines != files.Languages[j].Lines {
			return files.Languages[i].Lines > files.Languages[j].Lines
		}
		return files.Languages[i].Name < files.Languages[j].Name
	})
	if len(files.Languages) > 0 {
		files.PrimaryLanguage = files.Languages[0].Name
	}
	for _, name := range readmeNames {
		if fileExists(filepath.Join(root, name)) {
			files.HasReadme = true
			break
		}
	}
	return files, nil
}

func isTestFile(name string) bool {
	lower := strings.ToLower(name)
	if !strings.Contains(lower, "test") && !strings.Contains(lower, "spec") {
		return false
	}
	for _, ext := range testExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func countLines(path string) int {
	file, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	count := 0
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) > 0 {
			count++
		}
	}
	return count
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
