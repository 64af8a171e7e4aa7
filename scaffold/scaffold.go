// Package scaffold generates new trainkit projects (apps or components) from the embedded templates.
//
// Templates are laid out under templates/<kind>/. The token "placeholdername", in file paths and contents, is
// replaced by the project's files-name (see FilesName), and the ".tmpl" suffix is dropped from file names.
package scaffold

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Kind of project to generate.
type Kind int

//go:generate go tool enumer -type Kind -trimprefix=Kind -transform=lower -output=gen_kind_enumer.go scaffold.go

const (
	KindApp Kind = iota
	KindComponent
)

const (
	// Placeholder is replaced by the project's files-name in the templates.
	Placeholder = "placeholdername"

	// TemplateSuffix is stripped from the generated file names.
	TemplateSuffix = ".tmpl"
)

// Files copied verbatim, and directories skipped.
var (
	verbatimFiles = []string{".DS_Store"}
	skippedDirs   = []string{"__pycache__"}
)

//go:embed all:templates
var embeddedTemplates embed.FS

// Templates returns the built-in templates: one directory per Kind.
func Templates() fs.FS {
	return must.M1(fs.Sub(embeddedTemplates, "templates"))
}

// Options for Generate.
type Options struct {
	Kind Kind

	// Name of the project, it must be valid according to ValidateName.
	Name string

	// DestDir where the project directory is created. Defaults to the current directory.
	DestDir string

	// Templates to use instead of the built-in ones. It must hold a directory per Kind (e.g.: "app/").
	Templates fs.FS
}

// Result of Generate.
type Result struct {
	// Path to the new project.
	Path string

	// FilesName used to replace the Placeholder.
	FilesName string

	// Files generated, relative to Path, in "/" separated form.
	Files []string
}

// FilesName converts a project name to the form used in file names and identifiers: '-' are replaced by '_'.
func FilesName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// ValidateName trims and lower-cases the name, and checks that it only contains letters (a-z), numbers (0-9)
// and '-'. It returns the normalized name.
func ValidateName(raw string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return "", errors.New("name cannot be empty, valid example: trainkit-app")
	}
	var unsupported []string
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			continue
		}
		quoted := fmt.Sprintf("%q", r)
		if !slices.Contains(unsupported, quoted) {
			unsupported = append(unsupported, quoted)
		}
	}
	if len(unsupported) > 0 {
		slices.Sort(unsupported)
		return "", errors.Errorf("name %q contains the following unsupported characters: %s -- a name can "+
			"only contain letters (a-z), numbers (0-9) and the '-' character, valid example: trainkit-app",
			name, strings.Join(unsupported, ", "))
	}
	return name, nil
}

// Generate creates a new project from the templates of opts.Kind.
//
// It fails if the project directory already exists.
func Generate(opts Options) (*Result, error) {
	name, err := ValidateName(opts.Name)
	if err != nil {
		return nil, err
	}
	if !opts.Kind.IsAKind() {
		return nil, errors.Errorf("invalid project kind %s", opts.Kind)
	}
	templates := opts.Templates
	if templates == nil {
		templates = Templates()
	}
	destDir := opts.DestDir
	if destDir == "" {
		destDir = "."
	}
	projectPath, err := filepath.Abs(filepath.Join(destDir, name))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to find absolute path for %q", name)
	}
	if _, err := os.Stat(projectPath); err == nil {
		return nil, errors.Errorf("%q already exists, choose another name or remove it", projectPath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrapf(err, "failed to check %q", projectPath)
	}

	result := &Result{Path: projectPath, FilesName: FilesName(name)}
	klog.V(1).Infof("Laying out %s template at %s", opts.Kind, projectPath)
	if err := os.MkdirAll(projectPath, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create %q", projectPath)
	}
	root := opts.Kind.String()
	err = fs.WalkDir(templates, root, func(templatePath string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if templatePath == root {
			return nil
		}
		if entry.IsDir() && slices.Contains(skippedDirs, entry.Name()) {
			return fs.SkipDir
		}
		relPath := strings.ReplaceAll(strings.TrimPrefix(templatePath, root+"/"), Placeholder, result.FilesName)
		targetPath := filepath.Join(projectPath, filepath.FromSlash(relPath))
		if entry.IsDir() {
			return os.MkdirAll(targetPath, 0755)
		}
		contents, err := fs.ReadFile(templates, templatePath)
		if err != nil {
			return err
		}
		if !slices.Contains(verbatimFiles, entry.Name()) {
			contents = []byte(strings.ReplaceAll(string(contents), Placeholder, result.FilesName))
		}
		relPath = strings.TrimSuffix(relPath, TemplateSuffix)
		targetPath = strings.TrimSuffix(targetPath, TemplateSuffix)
		if err := os.WriteFile(targetPath, contents, 0644); err != nil {
			return err
		}
		result.Files = append(result.Files, path.Clean(relPath))
		return nil
	})
	if err == nil && len(result.Files) == 0 {
		err = errors.Errorf("no templates found for %s", opts.Kind)
	}
	if err != nil {
		if rmErr := os.RemoveAll(projectPath); rmErr != nil {
			klog.Warningf("Failed to remove partially generated %q: %v", projectPath, rmErr)
		}
		return nil, errors.WithMessagef(err, "failed to generate %s %q", opts.Kind, name)
	}
	return result, nil
}
