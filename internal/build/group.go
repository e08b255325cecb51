// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	statusStyle = lipgloss.NewStyle().Width(78).Align(lipgloss.Right)
)

// group wraps the output of fn in a CI log group and reports the outcome
// with its duration.
func (b *Builder) group(title string, fn func() error) error {
	start := time.Now()
	fmt.Fprintf(b.out, "::group::%s\n", title)
	err := fn()

	outcome := okStyle.Render("ok")
	if err != nil {
		outcome = failedStyle.Render("failed")
	}
	status := fmt.Sprintf("%s %.2fs", outcome, time.Since(start).Seconds())
	fmt.Fprintf(b.out, "::endgroup::\n%s\n", statusStyle.Render(status))
	return err
}
