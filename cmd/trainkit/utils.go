package main

import (
	"os/user"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ReportError prints an error if it is not nil, but otherwise does nothing.
func ReportError(err error) {
	if err != nil {
		klog.Warningf("Error: %v", err)
	}
}

// ExpandHome replaces a leading "~" (the current user) or "~name" in path by the home directory of the user.
// Other paths are returned unchanged.
func ExpandHome(path string) (string, error) {
	rest, found := strings.CutPrefix(path, "~")
	if !found {
		return path, nil
	}
	userName, tail, _ := strings.Cut(rest, "/")
	lookup := func() (*user.User, error) { return user.Lookup(userName) }
	if userName == "" {
		lookup = user.Current
	}
	usr, err := lookup()
	if err != nil {
		return "", errors.Wrapf(err, "cannot expand home directory in %q", path)
	}
	return filepath.Join(usr.HomeDir, tail), nil
}
