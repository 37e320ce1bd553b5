package demangle

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrInvoke indicates the external demangler could not be run.
var ErrInvoke = errors.New("demangle: failed to run undname")

// undnameMarker precedes the quoted declaration in undname output.
const undnameMarker = `is :- "`

// Builtin demangles in process. Names it cannot decode are passed through
// unchanged so they are still indexed.
type Builtin struct{}

// Demangle returns the single candidate for mangled, or none for an empty
// name.
func (Builtin) Demangle(_ context.Context, mangled string) ([]string, error) {
	if mangled == "" {
		return nil, nil
	}
	return []string{DemangleSimple(mangled)}, nil
}

// Undname runs Microsoft's undname.exe once per symbol.
type Undname struct {
	// Path is the executable, looked up in PATH when it has no separator.
	Path string
}

// Demangle runs undname on mangled and returns the declarations it printed.
func (u *Undname) Demangle(ctx context.Context, mangled string) ([]string, error) {
	if mangled == "" {
		return nil, nil
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, u.Path, mangled)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%w: %s: %v: %s", ErrInvoke, u.Path, err, msg)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvoke, u.Path, err)
	}

	return ParseUndnameOutput(stdout.Bytes()), nil
}

// ParseUndnameOutput extracts the quoted payload of every line carrying the
// `is :- "` marker.
func ParseUndnameOutput(out []byte) []string {
	var decls []string

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		i := strings.Index(line, undnameMarker)
		if i < 0 {
			continue
		}
		payload := line[i+len(undnameMarker):]
		if j := strings.LastIndexByte(payload, '"'); j >= 0 {
			payload = payload[:j]
		}
		decls = append(decls, payload)
	}

	return decls
}
