package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/five82/watchwire/internal/state"
	"github.com/five82/watchwire/internal/transport"
)

// runHeadless prints connection changes and newly accepted events to out
// until ctx is cancelled.
func runHeadless(ctx context.Context, store *state.Store, out io.Writer) {
	updates, cancel := store.Subscribe()
	defer cancel()

	p := printer{out: out, last: -1}
	p.print(store.Snapshot())
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			p.print(store.Snapshot())
		}
	}
}

// printer writes only what changed since the previous snapshot.
type printer struct {
	out     io.Writer
	last    transport.State
	printed int
}

func (p *printer) print(snap state.Snapshot) {
	if snap.Connection != p.last {
		p.last = snap.Connection
		line := fmt.Sprintf("[%s] %s", snap.Connection, snap.Endpoint)
		if (snap.Connection == transport.Error || snap.Connection == transport.Disconnected) && snap.LastError != nil {
			line += ": " + snap.LastError.Error()
		}
		fmt.Fprintln(p.out, line)
	}
	for _, ev := range snap.Events[min(p.printed, len(snap.Events)):] {
		fmt.Fprintf(p.out, "%s - %s\n%s\n", strings.ToUpper(ev.Kind), ev.Path, ev.Content)
	}
	p.printed = max(p.printed, len(snap.Events))
}
