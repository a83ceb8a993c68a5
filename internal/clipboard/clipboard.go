package clipboard

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

var ErrToolNotFound = errors.New("clipboard tool not found")

type Command struct {
	Path string
	Args []string
}

// candidates lists the clipboard writers tried per OS, in preference order.
var candidates = map[string][]Command{
	"darwin": {{Path: "pbcopy"}},
	"linux": {
		{Path: "wl-copy"},
		{Path: "xclip", Args: []string{"-selection", "clipboard"}},
		{Path: "xsel", Args: []string{"--clipboard", "--input"}},
	},
	"windows": {{Path: "clip.exe"}},
}

func SelectCommand(goos string, lookPath func(string) (string, error)) (Command, error) {
	for _, c := range candidates[goos] {
		path, err := lookPath(c.Path)
		if err != nil {
			continue
		}
		return Command{Path: path, Args: c.Args}, nil
	}
	return Command{}, ErrToolNotFound
}

// System writes to the OS clipboard through an external tool.
type System struct {
	goos     string
	lookPath func(string) (string, error)
}

func NewSystem() *System {
	return &System{goos: runtime.GOOS, lookPath: exec.LookPath}
}

func (s *System) Copy(ctx context.Context, text string) error {
	cmdDef, err := SelectCommand(s.goos, s.lookPath)
	if err != nil {
		return err
	}
	return run(ctx, cmdDef, text)
}

func run(ctx context.Context, cmdDef Command, text string) error {
	cmd := exec.CommandContext(ctx, cmdDef.Path, cmdDef.Args...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("clipboard command failed: %w: %s", err, msg)
		}
		return fmt.Errorf("clipboard command failed: %w", err)
	}
	return nil
}
