// Package rimetest provides an in-memory rime.Engine for tests.
package rimetest

import (
	"fmt"
	"strings"
	"sync"

	"hamster/internal/rime"
)

// Default schemas deployed in a new Fake.
var DefaultSchemas = []rime.Schema{
	{ID: "luna_pinyin", Name: "朙月拼音"},
	{ID: "double_pinyin", Name: "自然码双拼"},
	{ID: "terra_pinyin", Name: "地球拼音"},
}

// NihaoCount is the number of candidates the Fake offers for "nihao".
const NihaoCount = 35

type session struct {
	input     string
	committed string
	schema    rime.Schema
	options   map[string]bool
}

// Fake is a scripted engine. Letters compose, space commits the first
// candidate, and the dictionary holds a handful of pinyin words.
type Fake struct {
	mu       sync.Mutex
	handler  rime.NotificationHandler
	firstRun bool
	next     rime.SessionID
	sessions map[rime.SessionID]*session

	failCreate   bool
	initGate     chan struct{}
	deployGate   chan struct{}
	deployResult bool
	words        map[string][]rime.Candidate
	schemas      []rime.Schema
	rejected     map[string]bool
	calls        map[string]int
}

var _ rime.Engine = (*Fake)(nil)

// NewFake returns an engine reporting a first run whose deployments
// succeed.
func NewFake() *Fake {
	nihao := make([]rime.Candidate, NihaoCount)
	nihao[0] = rime.Candidate{Text: "你好"}
	for i := 1; i < NihaoCount; i++ {
		nihao[i] = rime.Candidate{Text: fmt.Sprintf("候选%02d", i), Comment: "nǐ hǎo"}
	}
	return &Fake{
		firstRun:     true,
		sessions:     make(map[rime.SessionID]*session),
		deployResult: true,
		words: map[string][]rime.Candidate{
			"nihao": nihao,
			"ni":    {{Text: "你"}, {Text: "尼"}, {Text: "泥"}},
			"hao":   {{Text: "好"}, {Text: "号"}},
		},
		schemas:  append([]rime.Schema(nil), DefaultSchemas...),
		rejected: make(map[string]bool),
		calls:    make(map[string]int),
	}
}

// Calls returns how often the named method ran.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// SetFirstRun sets what IsFirstRun reports.
func (f *Fake) SetFirstRun(v bool) {
	f.mu.Lock()
	f.firstRun = v
	f.mu.Unlock()
}

// SetFailCreate makes CreateSession return NoSession.
func (f *Fake) SetFailCreate(v bool) {
	f.mu.Lock()
	f.failCreate = v
	f.mu.Unlock()
}

// SetDeployResult sets what Deploy returns.
func (f *Fake) SetDeployResult(ok bool) {
	f.mu.Lock()
	f.deployResult = ok
	f.mu.Unlock()
}

// HoldDeploy makes Deploy block until the returned function is called.
func (f *Fake) HoldDeploy() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.deployGate = gate
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// HoldInitialize makes Initialize block until the returned function is
// called.
func (f *Fake) HoldInitialize() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.initGate = gate
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Reject makes SetOption ignore name.
func (f *Fake) Reject(name string) {
	f.mu.Lock()
	f.rejected[name] = true
	f.mu.Unlock()
}

// AddWord adds candidates for an input.
func (f *Fake) AddWord(input string, cands ...rime.Candidate) {
	f.mu.Lock()
	f.words[input] = cands
	f.mu.Unlock()
}

// KillSessions drops every session as if the engine had recycled them.
func (f *Fake) KillSessions() {
	f.mu.Lock()
	clear(f.sessions)
	f.mu.Unlock()
}

// LiveSessions returns the number of sessions the engine knows.
func (f *Fake) LiveSessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *Fake) notify(messageType, value string) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(messageType, value)
	}
}

func (f *Fake) SetNotificationHandler(h rime.NotificationHandler) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

func (f *Fake) IsFirstRun() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.firstRun
}

func (f *Fake) Setup(rime.Traits) {
	f.mu.Lock()
	f.calls["Setup"]++
	f.firstRun = false
	f.mu.Unlock()
}

func (f *Fake) Initialize(rime.Traits) {
	f.mu.Lock()
	f.calls["Initialize"]++
	gate := f.initGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (f *Fake) Deploy() bool {
	f.mu.Lock()
	f.calls["Deploy"]++
	gate := f.deployGate
	f.mu.Unlock()

	f.notify("deploy", "start")
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	ok := f.deployResult
	f.mu.Unlock()
	if ok {
		f.notify("deploy", "success")
	} else {
		f.notify("deploy", "failure")
	}
	return ok
}

func (f *Fake) Finalize() {
	f.mu.Lock()
	f.calls["Finalize"]++
	f.mu.Unlock()
}

func (f *Fake) CreateSession() rime.SessionID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateSession"]++
	if f.failCreate {
		return rime.NoSession
	}
	f.next++
	f.sessions[f.next] = &session{schema: f.schemas[0], options: make(map[string]bool)}
	return f.next
}

func (f *Fake) FindSession(s rime.SessionID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[s]
	return ok
}

func (f *Fake) CleanAllSessions() {
	f.mu.Lock()
	f.calls["CleanAllSessions"]++
	clear(f.sessions)
	f.mu.Unlock()
}

func (f *Fake) ProcessKey(s rime.SessionID, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ProcessKey"]++
	sess, ok := f.sessions[s]
	if !ok {
		return false
	}
	if text == " " {
		if sess.input == "" {
			return false
		}
		if cands := f.words[sess.input]; len(cands) > 0 {
			sess.committed += cands[0].Text
		} else {
			sess.committed += sess.input
		}
		sess.input = ""
		return true
	}
	if text == "" || strings.Trim(text, "abcdefghijklmnopqrstuvwxyz") != "" {
		return false
	}
	sess.input += text
	return true
}

func (f *Fake) ProcessKeyCode(s rime.SessionID, code, mask int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ProcessKeyCode"]++
	sess, ok := f.sessions[s]
	if !ok || mask&rime.ReleaseMask != 0 || sess.input == "" {
		return false
	}
	switch code {
	case rime.KeyBackSpace:
		sess.input = sess.input[:len(sess.input)-1]
	case rime.KeyReturn:
		sess.committed += sess.input
		sess.input = ""
	case rime.KeyEscape:
		sess.input = ""
	default:
		return false
	}
	return true
}

func (f *Fake) Candidates(s rime.SessionID, start, count int) []rime.Candidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Candidates"]++
	sess, ok := f.sessions[s]
	if !ok || start < 1 || count <= 0 {
		return nil
	}
	all := f.words[sess.input]
	if start > len(all) {
		return nil
	}
	end := min(start-1+count, len(all))
	return append([]rime.Candidate(nil), all[start-1:end]...)
}

func (f *Fake) SelectCandidate(s rime.SessionID, index int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["SelectCandidate"]++
	sess, ok := f.sessions[s]
	if !ok {
		return false
	}
	all := f.words[sess.input]
	if index < 0 || index >= len(all) {
		return false
	}
	sess.committed += all[index].Text
	sess.input = ""
	return true
}

func (f *Fake) CleanComposition(s rime.SessionID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sess, ok := f.sessions[s]; ok {
		sess.input = ""
	}
}

func (f *Fake) Commit(s rime.SessionID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[s]
	if !ok {
		return ""
	}
	text := sess.committed
	sess.committed = ""
	return text
}

func (f *Fake) Input(s rime.SessionID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sess, ok := f.sessions[s]; ok {
		return sess.input
	}
	return ""
}

func (f *Fake) Option(s rime.SessionID, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Option"]++
	if sess, ok := f.sessions[s]; ok {
		return sess.options[name]
	}
	return false
}

func (f *Fake) SetOption(s rime.SessionID, name string, value bool) {
	f.mu.Lock()
	f.calls["SetOption"]++
	sess, ok := f.sessions[s]
	if !ok || f.rejected[name] {
		f.mu.Unlock()
		return
	}
	sess.options[name] = value
	f.mu.Unlock()

	if value {
		f.notify("option", name)
	} else {
		f.notify("option", "!"+name)
	}
}

func (f *Fake) Status(s rime.SessionID) (rime.Status, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[s]
	if !ok {
		return rime.Status{}, false
	}
	return rime.Status{
		SchemaID:     sess.schema.ID,
		SchemaName:   sess.schema.Name,
		IsComposing:  sess.input != "",
		IsASCIIMode:  sess.options["ascii_mode"],
		IsFullShape:  sess.options["full_shape"],
		IsSimplified: sess.options["simplification"],
		IsASCIIPunct: sess.options["ascii_punct"],
	}, true
}

func (f *Fake) Context(s rime.SessionID) (rime.Context, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[s]
	if !ok {
		return rime.Context{}, false
	}
	return rime.Context{Preedit: sess.input, Input: sess.input, CursorPos: len(sess.input)}, true
}

func (f *Fake) SchemaList() []rime.Schema {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rime.Schema(nil), f.schemas...)
}

func (f *Fake) SelectSchema(s rime.SessionID, schemaID string) bool {
	f.mu.Lock()
	sess, ok := f.sessions[s]
	var found rime.Schema
	if ok {
		for _, sc := range f.schemas {
			if sc.ID == schemaID {
				found = sc
			}
		}
	}
	if !ok || found.ID == "" {
		f.mu.Unlock()
		return false
	}
	sess.schema = found
	sess.input = ""
	f.mu.Unlock()

	f.notify("schema", found.ID+"/"+found.Name)
	return true
}
