package clipboard

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"
)

func lookPathFrom(available map[string]string) func(string) (string, error) {
	return func(name string) (string, error) {
		if p, ok := available[name]; ok {
			return p, nil
		}
		return "", errors.New("not found")
	}
}

func TestSelectCommand(t *testing.T) {
	tests := []struct {
		name      string
		goos      string
		available map[string]string
		want      Command
		wantErr   error
	}{
		{
			name:      "darwin pbcopy",
			goos:      "darwin",
			available: map[string]string{"pbcopy": "/usr/bin/pbcopy"},
			want:      Command{Path: "/usr/bin/pbcopy"},
		},
		{
			name:      "linux prefers wl-copy",
			goos:      "linux",
			available: map[string]string{"wl-copy": "/usr/bin/wl-copy", "xclip": "/usr/bin/xclip"},
			want:      Command{Path: "/usr/bin/wl-copy"},
		},
		{
			name:      "linux falls back to xclip",
			goos:      "linux",
			available: map[string]string{"xclip": "/usr/bin/xclip", "xsel": "/usr/bin/xsel"},
			want:      Command{Path: "/usr/bin/xclip", Args: []string{"-selection", "clipboard"}},
		},
		{
			name:      "linux xsel last",
			goos:      "linux",
			available: map[string]string{"xsel": "/usr/bin/xsel"},
			want:      Command{Path: "/usr/bin/xsel", Args: []string{"--clipboard", "--input"}},
		},
		{
			name:    "linux nothing installed",
			goos:    "linux",
			wantErr: ErrToolNotFound,
		},
		{
			name:      "unknown os",
			goos:      "plan9",
			available: map[string]string{"pbcopy": "/bin/pbcopy"},
			wantErr:   ErrToolNotFound,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SelectCommand(tc.goos, lookPathFrom(tc.available))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %#v want %#v", got, tc.want)
			}
		})
	}
}

func TestSystemCopyWithoutTool(t *testing.T) {
	s := &System{goos: "linux", lookPath: lookPathFrom(nil)}
	if err := s.Copy(context.Background(), "x"); !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}

func TestRunPipesTextToStdin(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	out := filepath.Join(t.TempDir(), "clip.txt")
	cmd := Command{Path: sh, Args: []string{"-c", "cat > \"$0\"", out}}
	if err := run(context.Background(), cmd, "copied turn"); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "copied turn" {
		t.Fatalf("unexpected clipboard payload %q", data)
	}
}
