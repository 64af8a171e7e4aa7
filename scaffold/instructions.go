package scaffold

import (
	"fmt"
	"strings"
)

// Instructions returns the message shown after a project is generated, with the commands to use it.
//
// The name is the (validated) project name, as given by the user.
func Instructions(kind Kind, result *Result, name string) string {
	var sb strings.Builder
	w := func(format string, args ...any) {
		_, _ = fmt.Fprintf(&sb, format, args...)
		sb.WriteString("\n")
	}
	filesName := result.FilesName
	w("trainkit %s template created!", kind)
	w("%s", result.Path)
	w("")
	switch kind {
	case KindApp:
		w("Run your app with:")
		w("    cd %s && go run ./%s", name, filesName)
		w("")
		w("Select the accelerator and devices in %s/trainkit.yaml, or check the selection with:", name)
		w("    trainkit devices --config %s/trainkit.yaml", name)
	case KindComponent:
		w("To use your component, first test it:")
		w("    cd %s", name)
		w("    go test ./...")
		w("")
		w("Use the component inside an app:")
		w("")
		w("    import %q", filesName+"/"+filesName)
		w("")
		w("    component := %s.NewTemplateComponent(selection)", filesName)
		w("    if err := component.Run(ctx); err != nil {")
		w("        klog.Fatalf(\"%%+v\", err)")
		w("    }")
		w("")
		w("Check out the demo app with your %s component:", name)
		w("    cd %s && go run ./app", name)
	}
	return sb.String()
}
