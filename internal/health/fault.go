package health

import "sync"

// FaultHandler is the uncaught-fault hook that [ReportFault] invokes. The
// server's event loop does not call ReportFault itself, so an installed
// handler runs only when some caller reports a fault explicitly.
type FaultHandler func(err error)

var (
	faultMu      sync.Mutex
	faultHandler FaultHandler
)

// InstallFaultHandler registers the process-wide uncaught-fault hook. It is
// the single piece of global, mutable state in this server (spec §9): a
// second call replaces the previous handler rather than stacking with it.
func InstallFaultHandler(h FaultHandler) {
	faultMu.Lock()
	defer faultMu.Unlock()
	faultHandler = h
}

// ReportFault invokes the currently installed fault handler, if any. It is
// a no-op when no handler has been installed, which keeps tests that never
// call [InstallFaultHandler] safe.
func ReportFault(err error) {
	faultMu.Lock()
	h := faultHandler
	faultMu.Unlock()
	if h != nil {
		h(err)
	}
}
