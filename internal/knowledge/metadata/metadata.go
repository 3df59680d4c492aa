// Package metadata classifies file type and natural language, computes
// content hashes, and derives path-based tags for ingested documents.
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"
)

// ContentType is the coarse shape of a document, used to route it to a
// chunk splitter.
type ContentType string

const (
	ContentMarkdown ContentType = "markdown"
	ContentHTML     ContentType = "html"
	ContentCode     ContentType = "code"
	ContentText     ContentType = "text"
)

// FileType is the fine-grained classification surfaced to users and
// used as a metadata filter predicate.
type FileType string

const (
	FileMarkdown FileType = "markdown"
	FileHTML     FileType = "html"
	FilePDF      FileType = "pdf"
	FileCode     FileType = "code"
	FileText     FileType = "text"
	FileJSON     FileType = "json"
	FileYAML     FileType = "yaml"
	FileXML      FileType = "xml"
	FileUnknown  FileType = "unknown"
)

// Language identifies either a programming language (for code files) or
// a natural language (for prose); one field serves both purposes
// depending on FileType.
type Language string

const (
	LangRust       Language = "rust"
	LangTypeScript Language = "typescript"
	LangJavaScript Language = "javascript"
	LangPython     Language = "python"
	LangGo         Language = "go"
	LangUnknown    Language = "unknown"

	LangEnglish    Language = "english"
	LangPortuguese Language = "portuguese"
	LangSpanish    Language = "spanish"
	LangFrench     Language = "french"
)

// IsProgramming reports whether lang names a programming language this
// repo's code splitter recognizes (as opposed to a natural language).
func (l Language) IsProgramming() bool {
	switch l {
	case LangRust, LangTypeScript, LangJavaScript, LangPython, LangGo:
		return true
	}
	return false
}

// Metadata carries everything the Chunk Pipeline and Vector Index
// schema promote to first-class, filterable columns.
type Metadata struct {
	FileType       FileType
	Language       Language
	Tags           []string
	ContentHash    string // lowercase hex SHA-256 of text
	FileSizeBytes  int64
	FileLineCount  int
	FileModifiedAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// rootLikeDirs are path components skipped when deriving tags because
// they carry no discriminating signal.
var rootLikeDirs = map[string]bool{
	"src": true, "lib": true, "target": true, "node_modules": true,
	".": true, "..": true,
}

// keywordTags are substrings in a path that, when present, contribute a
// fixed tag regardless of their exact position.
var keywordTags = []string{"test", "docs", "api", "utils", "config"}

// extToFileType maps file extensions (including the dot) to a FileType
// and, for code, a Language.
var extToFileType = map[string]FileType{
	".md": FileMarkdown, ".markdown": FileMarkdown,
	".html": FileHTML, ".htm": FileHTML,
	".pdf":  FilePDF,
	".json": FileJSON,
	".yaml": FileYAML, ".yml": FileYAML,
	".xml": FileXML,
	".txt": FileText,
}

var extToLanguage = map[string]Language{
	".rs": LangRust,
	".ts": LangTypeScript, ".tsx": LangTypeScript,
	".js": LangJavaScript, ".jsx": LangJavaScript, ".mjs": LangJavaScript,
	".py": LangPython,
	".go": LangGo,
}

// DetectFileType classifies a path by extension. Recognized code
// extensions return FileCode; everything else falls back through the
// extension table and finally FileUnknown.
func DetectFileType(path string) FileType {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := extToLanguage[ext]; ok {
		return FileCode
	}
	if ft, ok := extToFileType[ext]; ok {
		return ft
	}
	return FileUnknown
}

// DetectLanguage returns the programming language for a code file by
// extension, or LangUnknown if the extension isn't recognized.
func DetectLanguage(path string) Language {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extToLanguage[ext]; ok {
		return lang
	}
	return LangUnknown
}

// DetectContentType maps a FileType to the coarse ContentType the Chunk
// Pipeline dispatches on.
func DetectContentType(ft FileType) ContentType {
	switch ft {
	case FileMarkdown:
		return ContentMarkdown
	case FileHTML:
		return ContentHTML
	case FileCode:
		return ContentCode
	default:
		return ContentText
	}
}

// portugueseMarkers are interrogative/common words whose presence in the
// first slice of a document is a strong signal for Portuguese prose.
var portugueseMarkers = []string{" é ", " não ", " para ", " com ", "ção", "ções", " que ", " você "}
var spanishMarkers = []string{" el ", " la ", " que ", " por ", " está ", " cómo ", " qué "}
var frenchMarkers = []string{" le ", " la ", " est ", " qui ", " pour ", " avec ", " être "}

// DetectNaturalLanguage applies a keyword heuristic over the first ~500
// characters of prose text, defaulting to English when no signal fires.
func DetectNaturalLanguage(text string) Language {
	sample := text
	if len(sample) > 500 {
		sample = sample[:500]
	}
	lower := " " + strings.ToLower(sample) + " "

	scores := map[Language]int{}
	for _, m := range portugueseMarkers {
		if strings.Contains(lower, m) {
			scores[LangPortuguese]++
		}
	}
	for _, m := range spanishMarkers {
		if strings.Contains(lower, m) {
			scores[LangSpanish]++
		}
	}
	for _, m := range frenchMarkers {
		if strings.Contains(lower, m) {
			scores[LangFrench]++
		}
	}

	best := LangEnglish
	bestScore := 0
	for lang, score := range scores {
		if score > bestScore {
			best = lang
			bestScore = score
		}
	}
	return best
}

// DeriveTags extracts tags from path components, skipping root-like
// directory names, plus keyword tags for substrings anywhere in the
// path. Order-preserving de-duplication.
func DeriveTags(path string) []string {
	seen := map[string]bool{}
	var tags []string

	add := func(tag string) {
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	norm := filepath.ToSlash(path)
	for _, comp := range strings.Split(norm, "/") {
		comp = strings.TrimSpace(comp)
		lower := strings.ToLower(comp)
		if comp == "" || rootLikeDirs[lower] {
			continue
		}
		// Strip extension from the final component so "metadata.go"
		// contributes the tag "metadata", not "metadata.go".
		if idx := strings.LastIndex(comp, "."); idx > 0 && comp == filepath.Base(norm) {
			comp = comp[:idx]
		}
		add(strings.ToLower(comp))
	}

	lowerPath := strings.ToLower(norm)
	for _, kw := range keywordTags {
		if strings.Contains(lowerPath, kw) {
			add(kw)
		}
	}

	return tags
}

// ContentHash returns the lowercase hex SHA-256 of text's bytes.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Extract builds the full Metadata for a (path, text, modified) triple.
func Extract(path, text string, modifiedAt time.Time) Metadata {
	ft := DetectFileType(path)
	var lang Language
	if ft == FileCode {
		lang = DetectLanguage(path)
	} else {
		lang = DetectNaturalLanguage(text)
	}

	now := time.Now()
	return Metadata{
		FileType:       ft,
		Language:       lang,
		Tags:           DeriveTags(path),
		ContentHash:    ContentHash(text),
		FileSizeBytes:  int64(len(text)),
		FileLineCount:  strings.Count(text, "\n") + 1,
		FileModifiedAt: modifiedAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
