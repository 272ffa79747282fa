// Package console is the byte transport for operator diagnostics.
// The core never depends on a concrete port; it writes best-effort
// and polls for input without blocking.
package console

// Transport is a non-blocking byte pipe. TryRecv returns the next
// received byte if one is pending. Send failures are the caller's to
// ignore: diagnostics never gate bus operation.
type Transport interface {
	TryRecv() (byte, bool)
	Send(p []byte) error
}

// Discard is the Transport for headless setups.
type Discard struct{}

func (Discard) TryRecv() (byte, bool) { return 0, false }
func (Discard) Send([]byte) error     { return nil }

// Writer adapts a Transport to io.Writer so the standard logger can
// mirror onto it.
type Writer struct{ T Transport }

func (w Writer) Write(p []byte) (int, error) {
	if err := w.T.Send(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
