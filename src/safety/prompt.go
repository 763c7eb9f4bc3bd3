package safety

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Options are the global safety flags.
type Options struct {
	DryRun bool
	Yes    bool
}

// Confirm asks a yes/no question on out and reads the answer from in.
// --yes answers for the user; --dry-run always declines.
func Confirm(opts Options, in io.Reader, out io.Writer, question string) (bool, error) {
	if opts.DryRun {
		return false, nil
	}
	if opts.Yes {
		return true, nil
	}
	if out != nil {
		fmt.Fprintf(out, "%s [y/N]: ", strings.TrimSpace(question))
	}
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	ans := strings.TrimSpace(strings.ToLower(line))
	return ans == "y" || ans == "yes", nil
}

// ConfirmOverwrite asks before replacing existing archives, but only when in
// is an interactive terminal. Non-interactive runs overwrite unasked.
func ConfirmOverwrite(opts Options, in io.Reader, out io.Writer, existing []string) (bool, error) {
	if len(existing) == 0 || opts.Yes || opts.DryRun || !IsTerminal(in) {
		return true, nil
	}
	q := fmt.Sprintf("%d existing archive(s) will be overwritten (%s). Continue?", len(existing), strings.Join(existing, ", "))
	return Confirm(opts, in, out, q)
}

// IsTerminal reports whether r is a terminal file.
func IsTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
