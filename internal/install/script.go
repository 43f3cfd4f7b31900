// Package install persists configuration bundles with elevated privileges.
package install

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/jmylchreest/cru/internal/model"
)

// ScriptName is the helper script written into the staging directory.
const ScriptName = "apply_config.sh"

// PostStep is a command run after all files are copied.
type PostStep string

const (
	PostStepNone      PostStep = ""
	PostStepInitramfs PostStep = "initramfs"
)

// InitramfsTools are tried in order by PostStepInitramfs.
var InitramfsTools = [][]string{
	{"mkinitcpio", "-P"},
	{"dracut", "--force"},
	{"update-initramfs", "-u"},
}

// CopyOp copies a staged file to its destination. Source is relative to the
// staging directory.
type CopyOp struct {
	Source      string      `json:"source" yaml:"source"`
	Destination string      `json:"destination" yaml:"destination"`
	Mode        os.FileMode `json:"mode" yaml:"mode"`
}

// Script is the privileged helper: a list of copies and an optional post
// step. The rendered script takes the staging directory as its only
// argument and is safe to re-run.
type Script struct {
	Copies   []CopyOp `json:"copies" yaml:"copies"`
	PostStep PostStep `json:"post_step,omitempty" yaml:"post_step,omitempty"`
}

// Render returns the bash source of the helper.
func (s Script) Render() string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	b.WriteString("set -e\n")
	b.WriteString("STAGING=\"${1:?usage: $0 <staging-dir>}\"\n")

	for _, op := range s.Copies {
		dest := shellQuote(op.Destination)
		fmt.Fprintf(&b, "\nmkdir -p %s\n", shellQuote(path.Dir(op.Destination)))
		fmt.Fprintf(&b, "cp \"${STAGING}/%s\" %s\n", op.Source, dest)
		fmt.Fprintf(&b, "chmod %o %s\n", op.Mode.Perm(), dest)
	}

	if s.PostStep == PostStepInitramfs {
		b.WriteString("\n# Rebuild the initramfs with whichever tool is installed\n")
		names := make([]string, 0, len(InitramfsTools))
		for i, tool := range InitramfsTools {
			keyword := "elif"
			if i == 0 {
				keyword = "if"
			}
			fmt.Fprintf(&b, "%s command -v %s >/dev/null 2>&1; then\n", keyword, tool[0])
			fmt.Fprintf(&b, "    %s\n", strings.Join(tool, " "))
			names = append(names, tool[0])
		}
		b.WriteString("else\n")
		fmt.Fprintf(&b, "    echo \"Warning: Could not find %s. Initramfs not updated.\" >&2\n", joinOr(names))
		b.WriteString("fi\n")
	}
	return b.String()
}

// Destinations returns the destination of every copy.
func (s Script) Destinations() []string {
	dests := make([]string, 0, len(s.Copies))
	for _, op := range s.Copies {
		dests = append(dests, op.Destination)
	}
	return dests
}

// stagedName is the file name an entry is staged under.
func stagedName(index int, e model.BundleEntry) string {
	return fmt.Sprintf("%02d-%s%s", index, e.Role, path.Ext(e.Destination))
}

// ScriptFor builds the helper for a bundle.
func ScriptFor(bundle model.ConfigBundle) (Script, error) {
	if !bundle.Applicable {
		return Script{}, model.ErrNotApplicable
	}
	if _, ok := bundle.Primary(); !ok {
		return Script{}, fmt.Errorf("bundle has no primary entry: %w", model.ErrNotApplicable)
	}

	var s Script
	for i, e := range bundle.Entries {
		if e.Destination == "" {
			continue
		}
		if !path.IsAbs(e.Destination) {
			return Script{}, fmt.Errorf("destination %q is not absolute", e.Destination)
		}
		mode := e.Mode
		if mode == 0 {
			mode = 0o644
		}
		s.Copies = append(s.Copies, CopyOp{Source: stagedName(i, e), Destination: e.Destination, Mode: mode})
	}
	for _, step := range bundle.PostInstall {
		if step == model.PostInstallInitramfs {
			s.PostStep = PostStepInitramfs
		}
	}
	return s, nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func joinOr(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", or " + names[len(names)-1]
	}
}
