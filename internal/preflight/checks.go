package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"hackreview/internal/config"
	"hackreview/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckRunDirectory accepts a run directory that does not exist yet as long
// as its nearest existing ancestor is writable.
func CheckRunDirectory(name, path string) Result {
	if path == "" {
		return Result{Name: name, Detail: "no output directory configured"}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if _, err := os.Stat(abs); err == nil || !errors.Is(err, fs.ErrNotExist) {
		return CheckDirectoryAccess(name, abs)
	}
	parent := filepath.Dir(abs)
	for {
		if _, err := os.Stat(parent); err == nil {
			break
		}
		next := filepath.Dir(parent)
		if next == parent {
			break
		}
		parent = next
	}
	result := CheckDirectoryAccess(name, parent)
	if result.Passed {
		result.Detail = fmt.Sprintf("%s (will be created)", abs)
	}
	return result
}

// CheckTools reports every external executable the pipeline runs. Optional
// tools that are missing still pass, with a note.
func CheckTools(cfg *config.Config) []Result {
	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		result := Result{Name: status.Name, Passed: status.Available}
		switch {
		case status.Available:
			result.Detail = status.Command
		case status.Optional:
			result.Passed = true
			result.Detail = fmt.Sprintf("%s (optional: %s)", status.Detail, status.Description)
		default:
			result.Detail = fmt.Sprintf("%s (%s)", status.Detail, status.Description)
		}
		results = append(results, result)
	}
	return results
}

// CheckCredential verifies that a provider has an API key configured.
func CheckCredential(name string, llm config.LLMConfig) Result {
	if llm.Provider == "" || llm.Provider == config.ProviderNone {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if llm.APIKey == "" {
		env := config.CredentialEnv(llm.Provider)
		return Result{Name: name, Detail: fmt.Sprintf("%s API key missing (set %s)", llm.Provider, env)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s key present (%s)", llm.Provider, llm.Model)}
}
