// Package repoinspect summarizes a cloned submission repository without
// running any of its code: file and line counts per language, top level
// layout and frameworks, template boilerplate, AI integration patterns, and
// the key source files handed to the code reviewer.
package repoinspect
