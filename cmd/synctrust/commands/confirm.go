package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"synctrust/internal/crypto"
	"synctrust/internal/domain"
)

// terminalConfirmer shows safety words on out and reads the answer from in.
// Prompts are shown one at a time.
type terminalConfirmer struct {
	out io.Writer

	once  sync.Once
	in    io.Reader
	lines chan string

	mu sync.Mutex
}

func newTerminalConfirmer(in io.Reader, out io.Writer) *terminalConfirmer {
	return &terminalConfirmer{in: in, out: out, lines: make(chan string)}
}

// readLines pumps input lines so a prompt can give up on ctx without
// leaving a blocked reader behind it.
func (t *terminalConfirmer) readLines() {
	sc := bufio.NewScanner(t.in)
	for sc.Scan() {
		t.lines <- strings.TrimSpace(sc.Text())
	}
	close(t.lines)
}

func (t *terminalConfirmer) RequestConfirmation(ctx context.Context, req domain.ConfirmationRequest) <-chan domain.Decision {
	t.once.Do(func() { go t.readLines() })
	ch := make(chan domain.Decision, 1)
	go func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		ch <- t.prompt(ctx, req)
	}()
	return ch
}

func (t *terminalConfirmer) prompt(ctx context.Context, req domain.ConfirmationRequest) domain.Decision {
	if ctx.Err() != nil {
		return domain.DecisionCancel
	}
	p := req.Parameters
	fmt.Fprintf(t.out, "\nSession %s: verify member %d of %d\n", p.SessionID, p.ClientIndex+1, p.ClientsCount)
	fmt.Fprintf(t.out, "  peer:        %s (%s)\n", req.Peer.ClientID, req.Peer.Platform)
	fmt.Fprintf(t.out, "  their key:   %s\n", crypto.ShortFingerprint(req.PeerPublicKeyHash))
	fmt.Fprintf(t.out, "  your key:    %s\n", crypto.ShortFingerprint(req.MyPublicKeyHash))
	fmt.Fprintf(t.out, "  safety words: %s\n", strings.Join(req.SafetyWords, " "))
	for {
		fmt.Fprint(t.out, "Do the words match on the other device? [y]es / [n]o / [c]ancel: ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(t.out, "\nNo longer needed.")
			return domain.DecisionCancel
		case line, ok := <-t.lines:
			if !ok {
				return domain.DecisionCancel
			}
			switch strings.ToLower(line) {
			case "y", "yes":
				return domain.DecisionValidate
			case "n", "no":
				return domain.DecisionReject
			case "c", "cancel":
				return domain.DecisionCancel
			}
		}
	}
}
