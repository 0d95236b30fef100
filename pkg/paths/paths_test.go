package paths

import "testing"

func TestToPath(t *testing.T) {
	tests := []struct {
		name          string
		fileName      string
		cwd           string
		caseSensitive bool
		want          Path
	}{
		{"absolute unchanged", "/home/user/a.ts", "/tmp", true, "/home/user/a.ts"},
		{"relative resolved", "src/a.ts", "/home/user", true, "/home/user/src/a.ts"},
		{"dot segments collapsed", "/home/user/../other/./b.ts", "", true, "/home/other/b.ts"},
		{"backslashes normalized", "C:\\src\\a.ts", "", true, "C:/src/a.ts"},
		{"case folded when insensitive", "/Home/User/A.TS", "", false, "/home/user/a.ts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToPath(tt.fileName, tt.cwd, tt.caseSensitive)
			if got != tt.want {
				t.Errorf("ToPath(%q, %q) = %q, want %q", tt.fileName, tt.cwd, got, tt.want)
			}
		})
	}
}

func TestIsExternalModuleNameRelative(t *testing.T) {
	relative := []string{"./a", "../a/b", "/abs", ".", ".."}
	for _, name := range relative {
		if !IsExternalModuleNameRelative(name) {
			t.Errorf("expected %q to be relative", name)
		}
	}

	bare := []string{"lodash", "@scope/pkg", "@scope/pkg/sub", "a/b"}
	for _, name := range bare {
		if IsExternalModuleNameRelative(name) {
			t.Errorf("expected %q to be bare", name)
		}
	}
}

func TestExtensionPredicates(t *testing.T) {
	if !IsDeclarationFileName("/lib/node.d.ts") {
		t.Error("node.d.ts should be a declaration file")
	}
	if IsDeclarationFileName("/src/a.ts") {
		t.Error("a.ts is not a declaration file")
	}
	if !HasTsExtension("/src/a.tsx") {
		t.Error("a.tsx should have a ts extension")
	}
	if !HasJsExtension("/src/a.jsx") {
		t.Error("a.jsx should have a js extension")
	}
	if !IsJsOrDts("/src/a.js") || !IsJsOrDts("/lib/types.d.ts") {
		t.Error("js and d.ts files should both satisfy IsJsOrDts")
	}
	if IsJsOrDts("/src/a.ts") {
		t.Error("a.ts should not satisfy IsJsOrDts")
	}
}
