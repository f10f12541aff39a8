// Package rime owns the input-method engine: its one-time setup, the
// session handle, deployment, mode flags and the paths input takes into it.
//
// The engine is not reentrant. Manager calls every session operation from
// one goroutine at a time; only Deploy may run alongside them.
package rime

// SessionID is an engine session handle. Zero is never a live session.
type SessionID uint64

// NoSession is the invalid handle.
const NoSession SessionID = 0

// Traits describe the distribution to the engine.
type Traits struct {
	SharedDataDir        string
	UserDataDir          string
	DistributionName     string
	DistributionCodeName string
	DistributionVersion  string
	// AppName may only be registered once per process.
	AppName string
}

// Candidate is one engine suggestion.
type Candidate struct {
	Text    string
	Comment string
}

// Status is the session's mode snapshot.
type Status struct {
	SchemaID     string
	SchemaName   string
	IsDisabled   bool
	IsComposing  bool
	IsASCIIMode  bool
	IsFullShape  bool
	IsSimplified bool
	IsASCIIPunct bool
}

// Context is the session's composition snapshot.
type Context struct {
	Preedit   string
	Input     string
	CursorPos int
	// Highlighted is the 0-based index of the highlighted candidate.
	Highlighted int
}

// NotificationHandler receives engine messages such as ("deploy", "start"),
// ("schema", "luna_pinyin/朙月拼音") or ("option", "!ascii_mode").
type NotificationHandler func(messageType, value string)

// Engine is the decoding engine. Methods report failure through their
// return values; a false or empty result is never fatal to the caller.
type Engine interface {
	SetNotificationHandler(h NotificationHandler)
	IsFirstRun() bool
	Setup(t Traits)
	Initialize(t Traits)
	// Deploy rebuilds schemas and dictionaries. It may run concurrently
	// with the session methods.
	Deploy() bool
	Finalize()

	CreateSession() SessionID
	FindSession(s SessionID) bool
	CleanAllSessions()

	ProcessKey(s SessionID, text string) bool
	ProcessKeyCode(s SessionID, code, mask int) bool
	// Candidates returns up to count candidates starting at the 1-based
	// position start.
	Candidates(s SessionID, start, count int) []Candidate
	// SelectCandidate selects by 0-based absolute index.
	SelectCandidate(s SessionID, index int) bool
	CleanComposition(s SessionID)
	// Commit returns and clears the text committed since the last call.
	Commit(s SessionID) string
	Input(s SessionID) string

	Option(s SessionID, name string) bool
	SetOption(s SessionID, name string, value bool)
	Status(s SessionID) (Status, bool)
	Context(s SessionID) (Context, bool)

	SchemaList() []Schema
	SelectSchema(s SessionID, schemaID string) bool
}

// X11 keysyms the keyboard sends as key codes.
const (
	KeySpace     = 0x0020
	KeyBackSpace = 0xff08
	KeyTab       = 0xff09
	KeyReturn    = 0xff0d
	KeyEscape    = 0xff1b
	KeyHome      = 0xff50
	KeyEnd       = 0xff57
)

// Modifier masks for ProcessKeyCode.
const (
	ShiftMask   = 1 << 0
	LockMask    = 1 << 1
	ControlMask = 1 << 2
	AltMask     = 1 << 3
	ReleaseMask = 1 << 30
)
