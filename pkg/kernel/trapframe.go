package kernel

// Trapframe is the saved user-register image written on kernel entry and
// restored on return. Trimmed from xv6's struct trapframe (proc.h) to
// the user-visible registers: the kernel_satp/kernel_sp/kernel_trap/
// kernel_hartid fields exist only to support trap vectoring and the
// trampoline assembly, which this core does not implement — it assumes a
// "current thread" is already established on trap entry and that a
// return path exists.
type Trapframe struct {
	Epc uint64 // saved user program counter

	Ra uint64
	Sp uint64
	Gp uint64
	Tp uint64

	T0, T1, T2 uint64
	S0, S1     uint64
	A0, A1, A2, A3, A4, A5, A6, A7 uint64
	S2, S3, S4, S5, S6, S7, S8, S9, S10, S11 uint64
	T3, T4, T5, T6 uint64
}

// trapframeSize is the byte size a signal delivery reserves for the
// backup trapframe copy written onto the user stack, standing in for
// sizeof(struct trapframe) in handle_user_signal: one uint64 for each of
// Trapframe's 32 registers.
const trapframeSize = 32 * 8

// SignalHandlerKind tags a kernel-implemented default handler:
// SIG_DFL/SIG_IGN/SIGKILL/SIGSTOP/SIGCONT.
type SignalHandlerKind int

const (
	HandlerKill SignalHandlerKind = iota
	HandlerIgnore
	HandlerStop
	HandlerCont
)

// SignalHandler is a tagged variant {KernelDefault(Kind), UserFn(address)},
// treating xv6's numeric-sentinel encoding trick as an explicit variant
// rather than literally comparing a function pointer against small
// integers.
type SignalHandler struct {
	Kernel   bool
	Kind     SignalHandlerKind
	UserAddr uint64
}

// KernelHandler constructs a kernel-default handler value.
func KernelHandler(kind SignalHandlerKind) SignalHandler {
	return SignalHandler{Kernel: true, Kind: kind}
}

// UserHandler constructs a user-space handler value pointing at addr.
func UserHandler(addr uint64) SignalHandler {
	return SignalHandler{Kernel: false, UserAddr: addr}
}

// sentinelHandler maps the five sentinel addresses xv6 uses for sigaction
// registration (0, 1, 9, 17, 19) to their kernel-default variant. Returns
// ok=false for any other address, meaning "install as a user handler".
func sentinelHandler(addr uint64) (SignalHandler, bool) {
	switch addr {
	case SigDFL, SigKill:
		return KernelHandler(HandlerKill), true
	case SigIGN:
		return KernelHandler(HandlerIgnore), true
	case SigStop:
		return KernelHandler(HandlerStop), true
	case SigCont:
		return KernelHandler(HandlerCont), true
	default:
		return SignalHandler{}, false
	}
}

// defaultHandlerFor returns the handler table's default entry for signum,
// matching allocproc's def_handlers[] wiring: SIGKILL/SIGSTOP/SIGCONT get
// their named defaults, SIG_IGN ignores, everything else (including
// SIG_DFL) kills.
func defaultHandlerFor(signum int) SignalHandler {
	switch signum {
	case SigIGN:
		return KernelHandler(HandlerIgnore)
	case SigStop:
		return KernelHandler(HandlerStop)
	case SigCont:
		return KernelHandler(HandlerCont)
	case SigKill:
		return KernelHandler(HandlerKill)
	default:
		return KernelHandler(HandlerKill)
	}
}
