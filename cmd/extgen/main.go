package main

import (
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"go/format"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Manifest lists the extension packages linked into one binary.
type Manifest struct {
	// Package of the generated file. Inferred from the output directory when empty.
	Package string `yaml:"package"`

	// Func is the generated registration function, RegisterExtensions by default.
	Func string `yaml:"func"`

	Imports struct {
		// Extension overrides the import path of the extension runtime package.
		Extension string `yaml:"extension"`
	} `yaml:"imports"`

	Extensions []ExtensionSpec `yaml:"extensions"`
}

// ExtensionSpec is one extension package.
type ExtensionSpec struct {
	// Import is an import path, or a path relative to the manifest ("./catalog").
	Import string `yaml:"import"`

	// Alias is the import name; the last path element by default.
	Alias string `yaml:"alias"`

	// Func is the package's registration function, Register by default. It
	// must have the signature func(*extension.Registry).
	Func string `yaml:"func"`

	// Module is recorded in ExtensionModules; the resolved import path by default.
	Module string `yaml:"module"`
}

func run(args []string, stderr io.Writer) (err error) {
	fs := flag.NewFlagSet("extgen", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	manifestPath := fs.String("manifest", "", "path to extensions.yaml (YAML or JSON)")
	outPath := fs.String("out", "", "output .gen.go file path")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*manifestPath) == "" {
		return fmt.Errorf("missing -manifest")
	}
	if strings.TrimSpace(*outPath) == "" {
		return fmt.Errorf("missing -out")
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	genRegistry(*manifestPath, *outPath, stderr)
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "extgen:", err)
		os.Exit(1)
	}
}

func genRegistry(manifestPath, outPath string, stderr io.Writer) {
	raw := mustRead(manifestPath)

	var m Manifest
	must(yaml.Unmarshal(raw, &m))

	applyDefaults(&m, manifestPath, outPath)
	validateManifest(&m)

	required := []GoImport{{Name: "extension", Path: m.Imports.Extension}}
	for _, e := range m.Extensions {
		required = append(required, GoImport{Name: e.Alias, Path: e.Import})
	}

	for _, gone := range droppedImports(readImportsFromExistingOut(outPath), required) {
		fmt.Fprintf(stderr, "extgen: dropping %s (no longer in %s)\n", gone.Path, filepath.Base(manifestPath))
	}

	data := map[string]any{
		"M":            m,
		"ManifestPath": filepath.ToSlash(manifestPath),
		"ManifestBase": filepath.Base(manifestPath),
		"Hash":         sha256Hex(raw),
		"Imports":      dedupeAndSortImports(required),
	}

	src := mustExecTemplate(registryTpl, data)
	writeFormatted(outPath, src)
}

// applyDefaults fills every optional manifest field. Registration order is
// kept as listed: it is the tie-break for equal priorities.
func applyDefaults(m *Manifest, manifestPath, outPath string) {
	pkgDir := filepath.Dir(outPath)

	if strings.TrimSpace(m.Package) == "" {
		m.Package = inferPackageName(pkgDir)
	}
	if strings.TrimSpace(m.Func) == "" {
		m.Func = "RegisterExtensions"
	}
	if strings.TrimSpace(m.Imports.Extension) == "" {
		if gi, ok := findImportByAliasOrSuffix(scanPackageImports(pkgDir), "extension", "/extension"); ok {
			m.Imports.Extension = gi.Path
		} else {
			m.Imports.Extension = inferRuntimeImport("extension")
		}
	}

	baseDir := filepath.Dir(manifestPath)
	for i := range m.Extensions {
		e := &m.Extensions[i]
		e.Import = strings.TrimSpace(e.Import)
		if strings.HasPrefix(e.Import, "./") || strings.HasPrefix(e.Import, "../") {
			e.Import = resolveRelativeImport(baseDir, e.Import)
		}
		if e.Alias == "" {
			e.Alias = defaultAlias(e.Import)
		}
		if e.Func == "" {
			e.Func = "Register"
		}
		if e.Module == "" {
			e.Module = e.Import
		}
	}
}

func validateManifest(m *Manifest) {
	if !token.IsIdentifier(m.Package) {
		die("manifest package is not an identifier: " + m.Package)
	}
	if !token.IsIdentifier(m.Func) || !token.IsExported(m.Func) {
		die("manifest func must be an exported identifier: " + m.Func)
	}
	if len(m.Extensions) == 0 {
		die("manifest extensions must be non-empty")
	}

	aliases := map[string]string{"extension": m.Imports.Extension}
	imports := map[string]bool{}
	for _, e := range m.Extensions {
		if e.Import == "" {
			die("extension must have import")
		}
		if imports[e.Import] {
			die("duplicate extension import: " + e.Import)
		}
		imports[e.Import] = true

		if !token.IsIdentifier(e.Alias) {
			die("extension alias is not an identifier: " + e.Alias + " (" + e.Import + ")")
		}
		if prev, ok := aliases[e.Alias]; ok {
			die("duplicate alias " + e.Alias + ": " + prev + " and " + e.Import)
		}
		aliases[e.Alias] = e.Import

		if !token.IsIdentifier(e.Func) || !token.IsExported(e.Func) {
			die("extension func must be an exported identifier: " + e.Func + " (" + e.Import + ")")
		}
	}
}

// defaultAlias derives an import name from path: the last element with a
// major-version suffix skipped and non-identifier characters removed.
func defaultAlias(importPath string) string {
	base := path.Base(importPath)
	if isMajorVersion(base) {
		base = path.Base(path.Dir(importPath))
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if b.Len() == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func resolveRelativeImport(baseDir, rel string) string {
	modRoot, modPath, err := findModule(baseDir)
	if err != nil {
		die("cannot resolve " + rel + ": " + err.Error())
	}
	imp, err := moduleImportPathForDir(modRoot, modPath, filepath.Join(baseDir, filepath.FromSlash(rel)))
	if err != nil {
		die("cannot resolve " + rel + ": " + err.Error())
	}
	return imp
}

// inferPackageName reads the package clause of the non-generated Go files in pkgDir.
func inferPackageName(pkgDir string) string {
	entries, err := os.ReadDir(pkgDir)
	if err != nil {
		die("cannot infer package: " + err.Error())
	}
	fset := token.NewFileSet()
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") || isGenerated(name) {
			continue
		}
		f, perr := parser.ParseFile(fset, filepath.Join(pkgDir, name), nil, parser.PackageClauseOnly)
		if perr != nil {
			continue
		}
		return f.Name.Name
	}
	die("cannot infer package: no Go sources in " + filepath.ToSlash(pkgDir) + " (set package in the manifest)")
	return ""
}

// inferRuntimeImport computes the import path of a runtime package from the
// go.mod of the module that contains extgen.
func inferRuntimeImport(runtimePkgRel string) string {
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		die("cannot infer extension runtime import: runtime.Caller failed")
	}
	modRoot, modPath, err := findModule(filepath.Dir(thisFile))
	if err != nil {
		die("cannot infer extension runtime import: cannot find go.mod for generator module: " + err.Error())
	}
	runtimeAbs := filepath.Join(modRoot, filepath.FromSlash(runtimePkgRel))
	if !dirExists(runtimeAbs) {
		die("cannot infer extension runtime import: expected runtime package dir at " + filepath.ToSlash(runtimeAbs))
	}
	return modPath + "/" + filepath.ToSlash(runtimePkgRel)
}

// -------------------------
// go.mod helpers
// -------------------------

type cmdError struct{ msg string }

func (e *cmdError) Error() string { return e.msg }

func findModule(startDir string) (modRoot string, modPath string, err error) {
	dir := startDir
	for {
		gomod := filepath.Join(dir, "go.mod")
		if fileExists(gomod) {
			b, rerr := os.ReadFile(gomod)
			if rerr != nil {
				return "", "", rerr
			}
			for _, ln := range strings.Split(string(b), "\n") {
				ln = strings.TrimSpace(ln)
				if strings.HasPrefix(ln, "module ") {
					mod := strings.Trim(strings.TrimSpace(strings.TrimPrefix(ln, "module ")), `"`)
					if mod == "" {
						return "", "", &cmdError{msg: "go.mod has empty module path at " + filepath.ToSlash(gomod)}
					}
					return dir, mod, nil
				}
			}
			return "", "", &cmdError{msg: "go.mod missing module directive at " + filepath.ToSlash(gomod)}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", "", &cmdError{msg: "could not find go.mod starting from " + filepath.ToSlash(startDir)}
}

func moduleImportPathForDir(modRoot, modPath, dir string) (string, error) {
	rel, err := filepath.Rel(modRoot, dir)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)

	if rel == "." {
		return modPath, nil
	}
	if strings.HasPrefix(rel, "../") || rel == ".." {
		return "", &cmdError{msg: "directory is outside module root: dir=" + filepath.ToSlash(dir) + " modRoot=" + filepath.ToSlash(modRoot)}
	}
	return modPath + "/" + rel, nil
}

func dirExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// -------------------------
// Imports
// -------------------------

type GoImport struct {
	Name string // optional alias, e.g. "catalog"
	Path string
}

func isGenerated(name string) bool {
	return strings.HasSuffix(name, ".gen.go") || strings.Contains(name, ".gen.") || strings.HasSuffix(name, "_gen.go")
}

// scanPackageImports reads imports from all non-generated, non-test .go files
// in pkgDir, keeping aliases.
func scanPackageImports(pkgDir string) []GoImport {
	entries, err := os.ReadDir(pkgDir)
	if err != nil {
		return nil
	}

	var out []GoImport
	fset := token.NewFileSet()
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") || isGenerated(name) {
			continue
		}
		full := filepath.Join(pkgDir, name)
		src, rerr := os.ReadFile(full)
		if rerr != nil {
			continue
		}
		f, perr := parser.ParseFile(fset, full, src, parser.ImportsOnly)
		if perr != nil {
			continue
		}
		for _, imp := range f.Imports {
			alias := ""
			if imp.Name != nil {
				alias = imp.Name.Name
			}
			out = append(out, GoImport{Name: alias, Path: strings.Trim(imp.Path.Value, `"`)})
		}
	}
	return dedupeAndSortImports(out)
}

// findImportByAliasOrSuffix prefers an alias match, then a path suffix match.
func findImportByAliasOrSuffix(imports []GoImport, preferAlias, preferSuffix string) (GoImport, bool) {
	if preferAlias != "" {
		for _, gi := range imports {
			if gi.Name == preferAlias {
				return gi, true
			}
		}
	}
	if preferSuffix != "" {
		for _, gi := range imports {
			if strings.HasSuffix(gi.Path, preferSuffix) {
				return gi, true
			}
		}
	}
	return GoImport{}, false
}

func readImportsFromExistingOut(outPath string) []GoImport {
	if strings.TrimSpace(outPath) == "" || !fileExists(outPath) {
		return nil
	}
	src, err := os.ReadFile(outPath)
	if err != nil {
		return nil
	}
	f, err := parser.ParseFile(token.NewFileSet(), outPath, src, parser.ImportsOnly)
	if err != nil {
		return nil
	}
	out := make([]GoImport, 0, len(f.Imports))
	for _, imp := range f.Imports {
		name := ""
		if imp.Name != nil {
			name = imp.Name.Name
		}
		out = append(out, GoImport{Name: name, Path: strings.Trim(imp.Path.Value, `"`)})
	}
	return out
}

// droppedImports returns the previous imports whose path is no longer required.
func droppedImports(previous, required []GoImport) []GoImport {
	keep := map[string]bool{}
	for _, gi := range required {
		keep[gi.Path] = true
	}
	var out []GoImport
	for _, gi := range previous {
		if !keep[gi.Path] {
			out = append(out, gi)
		}
	}
	return out
}

// dedupeAndSortImports drops repeated (alias, path) pairs and orders the
// rest by path, then alias.
func dedupeAndSortImports(imps []GoImport) []GoImport {
	type key struct {
		path string
		name string
	}
	seen := map[key]bool{}
	out := make([]GoImport, 0, len(imps))
	for _, gi := range imps {
		k := key{path: gi.Path, name: gi.Name}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, gi)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path == out[j].Path {
			return out[i].Name < out[j].Name
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// -------------------------
// Misc helpers
// -------------------------

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func mustRead(path string) []byte {
	b, err := os.ReadFile(path)
	must(err)
	return b
}

func mustExecTemplate(tpl *template.Template, data any) []byte {
	var sb strings.Builder
	must(tpl.Execute(&sb, data))
	return []byte(sb.String())
}

func writeFormatted(out string, src []byte) {
	fmtSrc, err := format.Source(src)
	if err != nil {
		_ = os.WriteFile(out, src, 0o644)
		die("gofmt/format failed: " + err.Error())
	}
	must(os.WriteFile(out, fmtSrc, 0o644))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func die(msg string) {
	panic(msg)
}

// -------------------------
// Templates
// -------------------------

var registryTpl = template.Must(template.New("registry").Parse(`// Code generated by extgen. DO NOT EDIT.
// source: {{.ManifestPath}}
// sha256: {{.Hash}}

package {{.M.Package}}

import (
{{- range .Imports}}
	{{if .Name}}{{.Name}} {{end}}"{{.Path}}"
{{- end}}
)

// ExtensionModules lists the extension modules linked into this binary, in
// registration order.
var ExtensionModules = []string{
{{- range .M.Extensions}}
	{{printf "%q" .Module}},
{{- end}}
}

// {{.M.Func}} registers every extension package listed in {{.ManifestBase}} into r.
// Registration order breaks ties between equal priorities.
func {{.M.Func}}(r *extension.Registry) {
{{- range .M.Extensions}}
	{{.Alias}}.{{.Func}}(r)
{{- end}}
}
`))
