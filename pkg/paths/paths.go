package paths

import (
	"path"
	"strings"
)

// Path is a canonical file path: slash-separated, rooted, and case-folded
// when the underlying file system is case-insensitive. Paths are the stable
// indices used to key every per-file table in the project core.
type Path string

// CanonicalFileName folds a file name according to file system case
// sensitivity.
func CanonicalFileName(fileName string, useCaseSensitiveFileNames bool) string {
	if useCaseSensitiveFileNames {
		return fileName
	}
	return strings.ToLower(fileName)
}

// NormalizeSlashes converts backslash separators to forward slashes.
func NormalizeSlashes(fileName string) string {
	return strings.ReplaceAll(fileName, "\\", "/")
}

// NormalizePath resolves "." and ".." segments and normalizes separators.
func NormalizePath(fileName string) string {
	normalized := path.Clean(NormalizeSlashes(fileName))
	if normalized == "." {
		return ""
	}
	return normalized
}

// ToPath converts a file name to its canonical Path, resolving relative names
// against currentDirectory.
func ToPath(fileName, currentDirectory string, useCaseSensitiveFileNames bool) Path {
	normalized := NormalizeSlashes(fileName)
	if !IsRooted(normalized) && currentDirectory != "" {
		normalized = NormalizeSlashes(currentDirectory) + "/" + normalized
	}
	return Path(CanonicalFileName(NormalizePath(normalized), useCaseSensitiveFileNames))
}

// IsRooted reports whether fileName is an absolute path ("/x", "c:/x" or a
// UNC path).
func IsRooted(fileName string) bool {
	if strings.HasPrefix(fileName, "/") || strings.HasPrefix(fileName, "\\\\") {
		return true
	}
	return len(fileName) >= 2 && isVolumeLetter(fileName[0]) && fileName[1] == ':'
}

func isVolumeLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Dir returns the directory portion of a normalized file name.
func Dir(fileName string) string {
	d := path.Dir(NormalizeSlashes(fileName))
	if d == "." {
		return ""
	}
	return d
}

// Base returns the last path segment of fileName.
func Base(fileName string) string {
	return path.Base(NormalizeSlashes(fileName))
}

// Join joins path segments with forward slashes and normalizes the result.
func Join(segments ...string) string {
	return NormalizePath(path.Join(segments...))
}

// IsExternalModuleNameRelative reports whether a module specifier is
// relative ("./x", "../x", "/x") as opposed to a bare package name.
func IsExternalModuleNameRelative(moduleName string) bool {
	return strings.HasPrefix(moduleName, "./") ||
		strings.HasPrefix(moduleName, "../") ||
		strings.HasPrefix(moduleName, "/") ||
		moduleName == "." || moduleName == ".."
}

// Extension predicates. The project core cares about three file classes:
// statically typed sources (.ts/.tsx), dynamically typed sources (.js/.jsx),
// and declaration files (.d.ts).

// IsDeclarationFileName reports whether fileName is a declaration file.
func IsDeclarationFileName(fileName string) bool {
	return strings.HasSuffix(lowerName(fileName), ".d.ts")
}

// HasTsExtension reports whether fileName is a .ts or .tsx source
// (declaration files included).
func HasTsExtension(fileName string) bool {
	l := lowerName(fileName)
	return strings.HasSuffix(l, ".ts") || strings.HasSuffix(l, ".tsx")
}

// HasJsExtension reports whether fileName is a .js or .jsx source.
func HasJsExtension(fileName string) bool {
	l := lowerName(fileName)
	return strings.HasSuffix(l, ".js") || strings.HasSuffix(l, ".jsx")
}

// IsJsOrDts reports whether fileName is a dynamically typed source or a
// declaration file. Type acquisition keys off this predicate.
func IsJsOrDts(fileName string) bool {
	return HasJsExtension(fileName) || IsDeclarationFileName(fileName)
}

func lowerName(fileName string) string {
	return strings.ToLower(Base(fileName))
}
