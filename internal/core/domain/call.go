package domain

type CallState string

const (
	CallIdle      CallState = "idle"
	CallCalling   CallState = "calling"
	CallRinging   CallState = "ringing"
	CallConnected CallState = "connected"
)

// CallSessionFor builds the session both sides of a call rendezvous in.
// The caller always comes first; the callee reuses the room it received.
func CallSessionFor(caller, callee Identity) SessionID {
	return SessionID("call-" + caller.String() + "-" + callee.String())
}

// OutgoingCall is the caller's pending request.
type OutgoingCall struct {
	Target  Identity
	Session SessionID
}

// IncomingCall is the callee's record of a request waiting for an answer.
type IncomingCall struct {
	From    Identity
	Session SessionID
}

// CallSnapshot is a point-in-time view of both negotiation slots.
type CallSnapshot struct {
	Outgoing     CallState
	OutgoingCall *OutgoingCall
	Incoming     CallState
	IncomingCall *IncomingCall
}

type NoticeKind string

const (
	NoticeCalling       NoticeKind = "calling"
	NoticeRinging       NoticeKind = "ringing"
	NoticeCallConnected NoticeKind = "call_connected"
	NoticeCallTimedOut  NoticeKind = "call_timed_out"
	NoticeCallCancelled NoticeKind = "call_cancelled"
	NoticeCallRejected  NoticeKind = "call_rejected"
)

// CallNotice is what the negotiation layer reports to the user.
type CallNotice struct {
	Kind    NoticeKind
	Peer    Identity
	Session SessionID
}
