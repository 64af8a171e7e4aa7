package scaffold

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	for raw, want := range map[string]string{
		"my-app":      "my-app",
		"  My-App2  ": "my-app2",
		"trainer123":  "trainer123",
	} {
		got, err := ValidateName(raw)
		require.NoError(t, err, "name %q", raw)
		assert.Equal(t, want, got)
	}

	_, err := ValidateName("my_app!")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `'!', '_'`)
	assert.Contains(t, err.Error(), "trainkit-app")

	_, err = ValidateName("   ")
	require.Error(t, err)
}

func TestFilesName(t *testing.T) {
	assert.Equal(t, "my_new_app", FilesName("my-new-app"))
	assert.Equal(t, "app", FilesName("app"))
}

func TestTemplates(t *testing.T) {
	templates := Templates()
	for _, kind := range KindValues() {
		info, err := fs.Stat(templates, kind.String())
		require.NoError(t, err, "templates for %s", kind)
		assert.True(t, info.IsDir())
	}
	_, err := fs.Stat(templates, "app/go.mod.tmpl")
	require.NoError(t, err)
}

func TestGenerate_App(t *testing.T) {
	dir := t.TempDir()
	result, err := Generate(Options{Kind: KindApp, Name: "My-App", DestDir: dir})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "my-app"), result.Path)
	require.Equal(t, "my_app", result.FilesName)
	require.Contains(t, result.Files, "my_app/main.go")
	require.Contains(t, result.Files, "go.mod")

	mainGo, err := os.ReadFile(filepath.Join(result.Path, "my_app", "main.go"))
	require.NoError(t, err)
	assert.Contains(t, string(mainGo), "my_app running on")
	assert.NotContains(t, string(mainGo), Placeholder)
	goMod, err := os.ReadFile(filepath.Join(result.Path, "go.mod"))
	require.NoError(t, err)
	assert.Contains(t, string(goMod), "module my_app")
	_, err = os.Stat(filepath.Join(result.Path, Placeholder))
	assert.True(t, os.IsNotExist(err))

	// Generating again on the same place fails.
	_, err = Generate(Options{Kind: KindApp, Name: "my-app", DestDir: dir})
	require.ErrorContains(t, err, "already exists")
}

func TestGenerate_Component(t *testing.T) {
	dir := t.TempDir()
	result, err := Generate(Options{Kind: KindComponent, Name: "fancy-layer", DestDir: dir})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		"README.md", "go.mod", "trainkit.yaml", "app/main.go",
		"fancy_layer/component.go", "fancy_layer/component_test.go",
	}, result.Files)

	demo, err := os.ReadFile(filepath.Join(result.Path, "app", "main.go"))
	require.NoError(t, err)
	assert.Contains(t, string(demo), `"fancy_layer/fancy_layer"`)
	assert.Contains(t, string(demo), "fancy_layer.NewTemplateComponent")
}

func TestGenerate_SpecialFiles(t *testing.T) {
	dsStore := []byte("placeholdername\x00\x01binary")
	templates := fstest.MapFS{
		"app/placeholdername/placeholdername.txt.tmpl": {Data: []byte("hello placeholdername")},
		"app/placeholdername/.DS_Store":                {Data: dsStore},
		"app/__pycache__/cached.pyc":                   {Data: []byte("placeholdername")},
		"app/sub/__pycache__/other.pyc":                {Data: []byte("placeholdername")},
		"app/notes.md":                                 {Data: []byte("# placeholdername notes")},
	}
	dir := t.TempDir()
	result, err := Generate(Options{Kind: KindApp, Name: "x-y", DestDir: dir, Templates: templates})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"x_y/x_y.txt", "x_y/.DS_Store", "notes.md"}, result.Files)

	contents, err := os.ReadFile(filepath.Join(result.Path, "x_y", "x_y.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello x_y", string(contents))
	contents, err = os.ReadFile(filepath.Join(result.Path, "x_y", ".DS_Store"))
	require.NoError(t, err)
	assert.Equal(t, dsStore, contents, ".DS_Store files are copied verbatim")
	_, err = os.Stat(filepath.Join(result.Path, "__pycache__"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(result.Path, "sub", "__pycache__"))
	assert.True(t, os.IsNotExist(err))

	// Missing templates for the kind.
	_, err = Generate(Options{Kind: KindComponent, Name: "other", DestDir: dir, Templates: templates})
	require.Error(t, err)
	_, err = os.Stat(filepath.Join(dir, "other"))
	assert.True(t, os.IsNotExist(err), "partially generated project is removed")

	// Invalid names create nothing.
	_, err = Generate(Options{Kind: KindApp, Name: "bad name", DestDir: dir, Templates: templates})
	require.Error(t, err)
	_, err = os.Stat(filepath.Join(dir, "bad name"))
	assert.True(t, os.IsNotExist(err))
}

func TestInstructions(t *testing.T) {
	result := &Result{Path: "/tmp/my-app", FilesName: "my_app"}
	msg := Instructions(KindApp, result, "my-app")
	assert.Contains(t, msg, "trainkit app template created!")
	assert.Contains(t, msg, "/tmp/my-app")
	assert.Contains(t, msg, "cd my-app && go run ./my_app")

	msg = Instructions(KindComponent, result, "my-app")
	assert.Contains(t, msg, "trainkit component template created!")
	assert.Contains(t, msg, `import "my_app/my_app"`)
	assert.Contains(t, msg, "my_app.NewTemplateComponent")
	assert.Contains(t, msg, "cd my-app && go run ./app")
}
