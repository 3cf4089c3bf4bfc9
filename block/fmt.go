package block

import (
	"fmt"
	"io"
)

// Format writes a textual representation of the receiver, providing improved
// fmt.Printf display. Produces a verbose "Kind#id raw=... display=..." form
// when formatted with "%+v", a terse "Kind#id" form otherwise.
func (b Block) Format(f fmt.State, _ rune) {
	if f.Flag('+') {
		fmt.Fprintf(f, "%v#%v status=%v raw=%q", b.Kind, b.ID, b.Status, b.Raw)
		if b.HasDisplay {
			fmt.Fprintf(f, " display=%q", b.Display)
		}
		return
	}
	fmt.Fprintf(f, "%v#%v", b.Kind, b.ID)
}

// Format writes a type string representing the receiver code.
func (k Kind) Format(f fmt.State, _ rune) {
	io.WriteString(f, k.String())
}

// Format writes a type string representing the receiver code.
func (s Status) Format(f fmt.State, _ rune) {
	io.WriteString(f, s.String())
}

// Format writes a textual representation of the receiver. Produces a
// multi-line verbose listing of every committed block plus the pending block
// when formatted with "%+v", a one-line summary otherwise.
func (u Update) Format(f fmt.State, _ rune) {
	if f.Flag('+') {
		fmt.Fprintf(f, "committed=%v", len(u.Committed))
		for _, b := range u.Committed {
			fmt.Fprintf(f, "\n  %+v", b)
		}
		if u.Pending != nil {
			fmt.Fprintf(f, "\n  pending: %+v", *u.Pending)
		}
		if u.Reset {
			io.WriteString(f, "\n  reset")
		}
		if len(u.Invalidated) > 0 {
			fmt.Fprintf(f, "\n  invalidated=%v", u.Invalidated)
		}
		return
	}

	fmt.Fprintf(f, "committed=%v", len(u.Committed))
	if u.Pending != nil {
		fmt.Fprintf(f, " pending=%v", u.Pending.Kind)
	}
	if u.Reset {
		io.WriteString(f, " reset")
	}
	if n := len(u.Invalidated); n > 0 {
		fmt.Fprintf(f, " invalidated=%v", n)
	}
}
