package bundle

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompiler struct {
	commands []*exec.Cmd
	fail     error
}

// run pretends to be wasm-pack or go build, writing the files they would produce
func (f *fakeCompiler) run(_ context.Context, cmd *exec.Cmd) error {
	f.commands = append(f.commands, cmd)
	if f.fail != nil {
		return f.fail
	}
	switch filepath.Base(cmd.Path) {
	case "wasm-pack":
		outDir := argAfter(cmd.Args, "--out-dir")
		name := argAfter(cmd.Args, "--out-name")
		if err := os.WriteFile(filepath.Join(outDir, name+".js"), []byte("export default async function init() {}"), 0o644); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(outDir, name+"_bg.wasm"), []byte("\x00asm"), 0o644)
	default:
		return os.WriteFile(argAfter(cmd.Args, "-o"), []byte("\x00asm"), 0o644)
	}
}

func argAfter(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func writeProject(t *testing.T, files map[string]string) string {
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), os.ModePerm))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func readOut(t *testing.T, m *Manifest, name string) string {
	data, err := os.ReadFile(filepath.Join(m.OutputDir, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}

const indexJS = `import("./pkg").then((m) => m.main()).catch(console.error);
`

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>piispis</title></head>
<body><canvas id="canvas"></canvas></body>
</html>
`

func TestBuildWasmPackProject(t *testing.T) {
	root := writeProject(t, map[string]string{
		"wasmboot.hcl":         fullConfig,
		"index.js":             indexJS,
		"index.html":           indexHTML,
		"static/piispis.png":   "\x89PNG",
		"static/css/style.css": "body { margin: 0 }",
	})
	cfg, err := LoadConfig(filepath.Join(root, "wasmboot.hcl"))
	require.NoError(t, err)

	compiler := &fakeCompiler{}
	m, err := (&Builder{Exec: compiler.run}).Build(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"css/style.css",
		"index.html",
		"index.js",
		"piispis.png",
		"pkg/module.js",
		"pkg/module_bg.wasm",
	}, m.Files)
	assert.Equal(t, "pkg/module.js", m.Module)

	require.Len(t, compiler.commands, 1)
	cmd := compiler.commands[0]
	assert.Equal(t, []string{
		"wasm-pack", "build", root,
		"--target", "web",
		"--out-dir", filepath.Join(root, "dist", "pkg"),
		"--out-name", "module",
		"--dev",
	}, cmd.Args)

	assert.Equal(t, indexJS, readOut(t, m, "index.js"))
	assert.Equal(t, "\x89PNG", readOut(t, m, "piispis.png"))
	assert.Equal(t, "body { margin: 0 }", readOut(t, m, "css/style.css"))

	page := readOut(t, m, "index.html")
	assert.Contains(t, page, "<title>piispis</title>")
	assert.Contains(t, page, `<canvas id="canvas"></canvas>`)
	assert.Equal(t, 1, strings.Count(page, `<script defer="" src="index.js"></script>`))
}

func TestBuildGoProductionProject(t *testing.T) {
	root := writeProject(t, map[string]string{
		"wasmboot.hcl": `
mode = "production"

module "go" {
  source   = "./guest"
  out_name = "guest"
  args     = ["-tags=demo"]
}
`,
		"guest/main.go":       "package main\n\nfunc main() {}\n",
		"goroot/wasm_exec.js": "class Go {}",
	})
	cfg, err := LoadConfig(filepath.Join(root, "wasmboot.hcl"))
	require.NoError(t, err)

	compiler := &fakeCompiler{}
	b := &Builder{Exec: compiler.run, WasmExec: filepath.Join(root, "goroot", "wasm_exec.js")}
	m, err := b.Build(context.Background(), cfg)
	require.NoError(t, err)

	require.Len(t, compiler.commands, 1)
	cmd := compiler.commands[0]
	wasmFile := filepath.Join(root, "dist", "pkg", "guest.wasm")
	assert.Equal(t, []string{"go", "build", "-o", wasmFile, "-trimpath", "-ldflags=-s -w", "-tags=demo", "."}, cmd.Args)
	assert.Equal(t, filepath.Join(root, "guest"), cmd.Dir)
	assert.Contains(t, cmd.Env, "GOOS=js")
	assert.Contains(t, cmd.Env, "GOARCH=wasm")

	assert.Equal(t, []string{"index.html", "index.js", "pkg/guest.wasm", "wasm_exec.js"}, m.Files)
	assert.Equal(t, "class Go {}", readOut(t, m, "wasm_exec.js"))

	loader := readOut(t, m, "index.js")
	assert.Contains(t, loader, "const go = new Go();")
	assert.Contains(t, loader, `WebAssembly.instantiateStreaming(fetch("./pkg/guest.wasm"), go.importObject)`)
	assert.Contains(t, loader, "go.run(instance);")
	assert.Contains(t, loader, `console.log("Available exports:", Object.keys(exports));`)
	assert.Contains(t, loader, `console.log("main function:", typeof exports.main);`)
	assert.NotContains(t, loader, ", {})")

	page := readOut(t, m, "index.html")
	assert.Contains(t, page, "<title>wasmboot App</title>")
	runtime := strings.Index(page, `<script defer="" src="wasm_exec.js"></script>`)
	bundle := strings.Index(page, `<script defer="" src="index.js"></script>`)
	require.NotEqual(t, -1, runtime)
	require.NotEqual(t, -1, bundle)
	assert.Less(t, runtime, bundle)
}

func TestBuildGoMissingWasmExec(t *testing.T) {
	root := writeProject(t, map[string]string{})
	cfg := DefaultConfig(root)
	cfg.Module = &ModuleBlock{Kind: KindGo}
	cfg.applyDefaults()

	b := &Builder{Exec: (&fakeCompiler{}).run, WasmExec: filepath.Join(root, "missing", "wasm_exec.js")}
	_, err := b.Build(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not copy wasm_exec.js")
}

func TestBuildPlainWasmLoader(t *testing.T) {
	root := writeProject(t, map[string]string{})

	m, err := (&Builder{}).Build(context.Background(), DefaultConfig(root))
	require.NoError(t, err)

	loader := readOut(t, m, "index.js")
	assert.Contains(t, loader, `WebAssembly.instantiateStreaming(fetch("./pkg/module.wasm"), {})`)
	assert.Contains(t, loader, "const exports = instance.exports;")
	assert.Contains(t, loader, `if (typeof exports.main === "function") {`)
	assert.NotContains(t, loader, "new Go()")
	assert.NotContains(t, loader, "import(")
	assert.NotContains(t, m.Files, "wasm_exec.js")
}

func TestBuildWasmPackLoaderImportsGlue(t *testing.T) {
	root := writeProject(t, map[string]string{})
	cfg := DefaultConfig(root)
	cfg.Module = &ModuleBlock{Kind: KindWasmPack}
	cfg.applyDefaults()

	m, err := (&Builder{Exec: (&fakeCompiler{}).run}).Build(context.Background(), cfg)
	require.NoError(t, err)

	loader := readOut(t, m, "index.js")
	assert.Contains(t, loader, `import("./pkg/module.js")`)
	assert.Contains(t, loader, "await m.default();")
}

func TestBuildWithoutModule(t *testing.T) {
	root := writeProject(t, map[string]string{"static/a.txt": "a"})
	cfg := DefaultConfig(root)
	cfg.Copy = []CopyBlock{{From: "static", To: "assets"}}

	compiler := &fakeCompiler{}
	m, err := (&Builder{Exec: compiler.run}).Build(context.Background(), cfg)
	require.NoError(t, err)

	assert.Empty(t, compiler.commands)
	assert.Equal(t, []string{"assets/a.txt", "index.html", "index.js"}, m.Files)
	assert.Equal(t, "pkg/module.wasm", m.Module)
}

func TestBuildReplacesPreviousOutput(t *testing.T) {
	root := writeProject(t, map[string]string{"dist/stale.js": "old"})
	cfg := DefaultConfig(root)

	m, err := (&Builder{}).Build(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotContains(t, m.Files, "stale.js")
}

func TestBuildCompilerFailure(t *testing.T) {
	root := writeProject(t, map[string]string{})
	cfg := DefaultConfig(root)
	cfg.Module = &ModuleBlock{Kind: KindGo}
	cfg.applyDefaults()

	compiler := &fakeCompiler{fail: assert.AnError}
	_, err := (&Builder{Exec: compiler.run}).Build(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "could not run go")
}

func TestBuildCompilerWithoutOutput(t *testing.T) {
	root := writeProject(t, map[string]string{})
	cfg := DefaultConfig(root)
	cfg.Module = &ModuleBlock{Kind: KindGo}
	cfg.applyDefaults()

	silent := func(context.Context, *exec.Cmd) error { return nil }
	_, err := (&Builder{Exec: silent}).Build(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not produce the module")
}

func TestBuildRefusesToWipeRoot(t *testing.T) {
	root := writeProject(t, map[string]string{"index.js": indexJS})
	cfg := DefaultConfig(root)
	cfg.Output.Path = "."

	_, err := (&Builder{}).Build(context.Background(), cfg)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(root, "index.js"))
	assert.NoError(t, statErr)
}

func TestBuildRefusesToWipeAncestorOfRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "project")
	require.NoError(t, os.MkdirAll(root, os.ModePerm))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "precious.txt"), []byte("keep"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src.rs"), []byte("fn main() {}"), 0o644))

	cfg, err := ParseConfig([]byte("output {\n  path = \"..\"\n}\n"), "wasmboot.hcl", root)
	require.NoError(t, err)

	_, err = (&Builder{}).Build(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project root")

	_, statErr := os.Stat(filepath.Join(parent, "precious.txt"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(root, "src.rs"))
	assert.NoError(t, statErr)
}

func TestBuildRefusesOutputHoldingInputs(t *testing.T) {
	tests := map[string]func(cfg *Config){
		"entry":         func(cfg *Config) { cfg.Entry = "web/index.js" },
		"HTML template": func(cfg *Config) { cfg.HTML.Template = "web/index.html" },
		"copy source":   func(cfg *Config) { cfg.Copy = []CopyBlock{{From: "web/static"}} },
	}
	for name, configure := range tests {
		t.Run(name, func(t *testing.T) {
			root := writeProject(t, map[string]string{
				"web/index.js":     indexJS,
				"web/index.html":   indexHTML,
				"web/static/a.txt": "a",
			})
			cfg := DefaultConfig(root)
			cfg.Output.Path = "web"
			configure(cfg)

			_, err := (&Builder{}).Build(context.Background(), cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), name)

			_, statErr := os.Stat(filepath.Join(root, "web", "index.js"))
			assert.NoError(t, statErr)
		})
	}
}

func TestBuildMissingCopySource(t *testing.T) {
	root := writeProject(t, map[string]string{})
	cfg := DefaultConfig(root)
	cfg.Copy = []CopyBlock{{From: "static"}}

	_, err := (&Builder{}).Build(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not copy static")
}
