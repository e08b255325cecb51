// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spec

import (
	"fmt"
	"strings"
)

// OrderError reports a package listed before one of its declared
// dependencies.
type OrderError struct {
	Package    string
	Dependency string
	Duplicate  bool
}

func (e *OrderError) Error() string {
	if e.Duplicate {
		return fmt.Sprintf("package %q is listed more than once", e.Package)
	}
	return fmt.Sprintf("package %q requires %q, which is listed after it", e.Package, e.Dependency)
}

// CheckOrder validates the caller supplied build order. The lists are
// concatenated in the order given, every name must be unique and every
// declared dependency that names a listed package must come earlier.
// Dependencies on names that are not listed (tools provided by the host,
// such as cmake or ninja) are not checked.
//
// CheckOrder never reorders anything.
func CheckOrder(lists ...[]Spec) error {
	pos := make(map[string]int)
	i := 0
	for _, list := range lists {
		for _, s := range list {
			if _, dup := pos[s.Name]; dup {
				return &OrderError{Package: s.Name, Duplicate: true}
			}
			pos[s.Name] = i
			i++
		}
	}
	for _, list := range lists {
		for _, s := range list {
			for _, dep := range s.Requires {
				at, ok := pos[dep]
				if ok && at > pos[s.Name] {
					return &OrderError{Package: s.Name, Dependency: dep}
				}
			}
		}
	}
	return nil
}

// Names returns the package names of specs joined by sep.
func Names(specs []Spec, sep string) string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return strings.Join(names, sep)
}
