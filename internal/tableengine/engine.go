// Package tableengine is a table-driven input engine backed by SQLite. It
// reads Rime-style schema and dictionary files on deployment and serves
// prefix lookups ranked by weight and learned frequency.
package tableengine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"hamster/internal/patch"
	"hamster/internal/rime"
	"hamster/internal/store"
)

// InstallationFile marks a user data directory as set up.
const InstallationFile = "installation.yaml"

// DefaultStoreFile is the database created in the user data directory.
const DefaultStoreFile = "hamster.db"

type session struct {
	input     string
	committed string
	schema    string
	options   map[string]bool
}

// Engine implements rime.Engine over a store.Store.
type Engine struct {
	logger    *slog.Logger
	userDir   string
	storePath string

	mu       sync.Mutex
	handler  rime.NotificationHandler
	dirs     dataDirs
	db       *store.Store
	schemas  []store.SchemaRecord
	sessions map[rime.SessionID]*session
	next     rime.SessionID

	// deploying serializes deployments.
	deploying sync.Mutex
}

var _ rime.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithUserDataDir names the user directory before Setup, so IsFirstRun
// can look for the installation file.
func WithUserDataDir(dir string) Option {
	return func(e *Engine) { e.userDir = dir }
}

// WithStorePath places the database somewhere other than the user
// data directory.
func WithStorePath(path string) Option {
	return func(e *Engine) { e.storePath = path }
}

// New creates an engine. It does nothing until Initialize.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:   slog.Default().With("component", "tableengine"),
		sessions: make(map[rime.SessionID]*session),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) notify(messageType, value string) {
	e.mu.Lock()
	h := e.handler
	e.mu.Unlock()
	if h != nil {
		h(messageType, value)
	}
}

func (e *Engine) SetNotificationHandler(h rime.NotificationHandler) {
	e.mu.Lock()
	e.handler = h
	e.mu.Unlock()
}

// IsFirstRun reports whether the user directory lacks an installation file.
func (e *Engine) IsFirstRun() bool {
	e.mu.Lock()
	dir := e.userDir
	e.mu.Unlock()
	if dir == "" {
		return true
	}
	_, err := os.Stat(filepath.Join(dir, InstallationFile))
	return errors.Is(err, os.ErrNotExist)
}

type installation struct {
	InstallationID       string `yaml:"installation_id"`
	DistributionName     string `yaml:"distribution_name"`
	DistributionCodeName string `yaml:"distribution_code_name"`
	DistributionVersion  string `yaml:"distribution_version"`
	InstallTime          string `yaml:"install_time"`
}

// Setup creates the user directory and writes the installation file.
func (e *Engine) Setup(t rime.Traits) {
	if err := os.MkdirAll(t.UserDataDir, 0755); err != nil {
		e.logger.Error("creating user data directory", "dir", t.UserDataDir, "error", err)
		return
	}
	data, err := yaml.Marshal(installation{
		InstallationID:       uuid.NewString(),
		DistributionName:     t.DistributionName,
		DistributionCodeName: t.DistributionCodeName,
		DistributionVersion:  t.DistributionVersion,
		InstallTime:          time.Now().Format(time.RFC3339),
	})
	if err != nil {
		e.logger.Error("encoding installation file", "error", err)
		return
	}
	if err := os.WriteFile(filepath.Join(t.UserDataDir, InstallationFile), data, 0644); err != nil {
		e.logger.Error("writing installation file", "error", err)
		return
	}
	e.mu.Lock()
	e.userDir = t.UserDataDir
	e.mu.Unlock()
}

// Initialize opens the store and loads the deployed schemas.
func (e *Engine) Initialize(t rime.Traits) {
	path := e.storePath
	if path == "" {
		path = filepath.Join(t.UserDataDir, DefaultStoreFile)
	}
	db, err := store.Open(path)
	if err != nil {
		e.logger.Error("opening dictionary store", "path", path, "error", err)
		return
	}
	schemas, err := db.Schemas()
	if err != nil {
		e.logger.Warn("reading deployed schemas", "error", err)
	}

	e.mu.Lock()
	e.userDir = t.UserDataDir
	e.dirs = dataDirs{user: t.UserDataDir, shared: t.SharedDataDir}
	e.db = db
	e.schemas = schemas
	e.mu.Unlock()
	e.logger.Debug("engine initialized", "store", path, "schemas", len(schemas))
}

// Store returns the dictionary store, or nil before Initialize.
func (e *Engine) Store() *store.Store {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db
}

// Deploy imports the selected schemas and their dictionaries. The list
// comes from the user's patch document, then default.yaml, then every
// schema file present.
func (e *Engine) Deploy() bool {
	e.deploying.Lock()
	defer e.deploying.Unlock()

	e.mu.Lock()
	db, dirs := e.db, e.dirs
	e.mu.Unlock()

	e.notify("deploy", "start")
	started := time.Now()
	n, err := e.deploy(db, dirs)
	if db != nil {
		rec := store.Deploy{ID: uuid.NewString(), Started: started, Duration: time.Since(started), OK: err == nil, Schemas: n}
		if err != nil {
			rec.Detail = err.Error()
		}
		if rerr := db.RecordDeploy(rec); rerr != nil {
			e.logger.Warn("recording deployment", "error", rerr)
		}
	}
	if err != nil {
		e.logger.Error("deployment failed", "error", err)
		e.notify("deploy", "failure")
		return false
	}
	e.notify("deploy", "success")
	return true
}

func (e *Engine) deploy(db *store.Store, dirs dataDirs) (int, error) {
	if db == nil {
		return 0, errors.New("engine not initialized")
	}

	ids, err := patch.ReadSchemaList(filepath.Join(dirs.user, patch.FileName))
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		if ids, err = dirs.defaultSchemaList(); err != nil {
			return 0, err
		}
	}
	if len(ids) == 0 {
		ids = dirs.availableSchemas()
	}
	if len(ids) == 0 {
		return 0, errors.New("no schemas to deploy")
	}

	var deployed []string
	for i, id := range ids {
		sf, err := dirs.loadSchema(id)
		if err != nil {
			return len(deployed), err
		}
		var entries []store.Entry
		if dict := sf.Translator.Dictionary; dict != "" {
			if entries, err = dirs.loadDictionary(dict); err != nil {
				return len(deployed), fmt.Errorf("schema %s: %w", id, err)
			}
		}
		rec := store.SchemaRecord{
			ID:         sf.Schema.ID,
			Name:       sf.Schema.Name,
			Version:    sf.Schema.Version,
			Dictionary: sf.Translator.Dictionary,
			Alphabet:   sf.Speller.Alphabet,
			Position:   i,
		}
		if err := db.ReplaceSchema(rec, entries); err != nil {
			return len(deployed), err
		}
		e.logger.Info("schema deployed", "schema", rec.ID, "entries", len(entries))
		deployed = append(deployed, rec.ID)
	}
	if _, err := db.RemoveSchemasExcept(deployed); err != nil {
		return len(deployed), err
	}

	schemas, err := db.Schemas()
	if err != nil {
		return len(deployed), err
	}
	e.mu.Lock()
	e.schemas = schemas
	e.mu.Unlock()
	return len(deployed), nil
}

// Finalize drops every session and closes the store.
func (e *Engine) Finalize() {
	e.mu.Lock()
	db := e.db
	e.db = nil
	clear(e.sessions)
	e.mu.Unlock()
	if db != nil {
		if err := db.Close(); err != nil {
			e.logger.Warn("closing dictionary store", "error", err)
		}
	}
}

func (e *Engine) CreateSession() rime.SessionID {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return rime.NoSession
	}
	e.next++
	s := &session{options: make(map[string]bool)}
	if len(e.schemas) > 0 {
		s.schema = e.schemas[0].ID
	}
	e.sessions[e.next] = s
	return e.next
}

func (e *Engine) FindSession(s rime.SessionID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sessions[s]
	return ok
}

func (e *Engine) CleanAllSessions() {
	e.mu.Lock()
	clear(e.sessions)
	e.mu.Unlock()
}

// schemaRecord returns the record for id. Callers hold mu.
func (e *Engine) schemaRecord(id string) (store.SchemaRecord, bool) {
	for _, r := range e.schemas {
		if r.ID == id {
			return r, true
		}
	}
	return store.SchemaRecord{}, false
}

// ProcessKey feeds text one character at a time. Alphabet keys compose;
// space commits the best match. It reports whether every character was
// consumed.
func (e *Engine) ProcessKey(s rime.SessionID, text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if !e.processRune(s, r) {
			return false
		}
	}
	return true
}

func (e *Engine) processRune(s rime.SessionID, r rune) bool {
	e.mu.Lock()
	sess, ok := e.sessions[s]
	if !ok || sess.options["ascii_mode"] {
		e.mu.Unlock()
		return false
	}
	rec, _ := e.schemaRecord(sess.schema)
	alphabet := rec.Alphabet
	if alphabet == "" {
		alphabet = DefaultAlphabet
	}
	if strings.ContainsRune(alphabet, r) {
		sess.input += string(r)
		e.mu.Unlock()
		return true
	}
	composing := sess.input != ""
	e.mu.Unlock()

	if r == ' ' && composing {
		if !e.SelectCandidate(s, 0) {
			e.commitRaw(s)
		}
		return true
	}
	return false
}

func (e *Engine) commitRaw(s rime.SessionID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sess, ok := e.sessions[s]; ok {
		sess.committed += sess.input
		sess.input = ""
	}
}

func (e *Engine) ProcessKeyCode(s rime.SessionID, code, mask int) bool {
	if mask&rime.ReleaseMask != 0 {
		return false
	}
	if code == rime.KeySpace {
		return e.processRune(s, ' ')
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.sessions[s]
	if !ok || sess.input == "" {
		return false
	}
	switch code {
	case rime.KeyBackSpace:
		_, size := utf8.DecodeLastRuneInString(sess.input)
		sess.input = sess.input[:len(sess.input)-size]
	case rime.KeyEscape:
		sess.input = ""
	case rime.KeyReturn:
		sess.committed += sess.input
		sess.input = ""
	default:
		return false
	}
	return true
}

// lookupState returns what a lookup needs. Callers must not hold mu.
func (e *Engine) lookupState(s rime.SessionID) (db *store.Store, schema, input string, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, found := e.sessions[s]
	if !found || e.db == nil || sess.input == "" {
		return nil, "", "", false
	}
	return e.db, sess.schema, sess.input, true
}

func (e *Engine) Candidates(s rime.SessionID, start, count int) []rime.Candidate {
	db, schema, input, ok := e.lookupState(s)
	if !ok || start < 1 || count <= 0 {
		return nil
	}
	matches, err := db.Lookup(schema, input, start-1, count)
	if err != nil {
		e.logger.Warn("candidate lookup failed", "input", input, "error", err)
		return nil
	}
	out := make([]rime.Candidate, len(matches))
	for i, m := range matches {
		out[i] = rime.Candidate{Text: m.Text}
		if !m.Exact {
			out[i].Comment = "~" + strings.TrimPrefix(m.Code, input)
		}
	}
	return out
}

// SelectCandidate commits the match at index and learns the choice.
func (e *Engine) SelectCandidate(s rime.SessionID, index int) bool {
	db, schema, input, ok := e.lookupState(s)
	if !ok || index < 0 {
		return false
	}
	matches, err := db.Lookup(schema, input, index, 1)
	if err != nil || len(matches) == 0 {
		return false
	}
	m := matches[0]
	if err := db.BumpFrequency(schema, m.Text, m.Code); err != nil {
		e.logger.Warn("recording selection", "error", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	sess, found := e.sessions[s]
	if !found {
		return false
	}
	sess.committed += m.Text
	sess.input = ""
	return true
}

func (e *Engine) CleanComposition(s rime.SessionID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sess, ok := e.sessions[s]; ok {
		sess.input = ""
	}
}

func (e *Engine) Commit(s rime.SessionID) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.sessions[s]
	if !ok {
		return ""
	}
	text := sess.committed
	sess.committed = ""
	return text
}

func (e *Engine) Input(s rime.SessionID) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sess, ok := e.sessions[s]; ok {
		return sess.input
	}
	return ""
}

func (e *Engine) Option(s rime.SessionID, name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sess, ok := e.sessions[s]; ok {
		return sess.options[name]
	}
	return false
}

// SetOption stores the option and reports the change as "name" or "!name".
func (e *Engine) SetOption(s rime.SessionID, name string, value bool) {
	e.mu.Lock()
	sess, ok := e.sessions[s]
	if !ok {
		e.mu.Unlock()
		return
	}
	sess.options[name] = value
	e.mu.Unlock()

	if value {
		e.notify("option", name)
	} else {
		e.notify("option", "!"+name)
	}
}

func (e *Engine) Status(s rime.SessionID) (rime.Status, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.sessions[s]
	if !ok {
		return rime.Status{}, false
	}
	rec, _ := e.schemaRecord(sess.schema)
	return rime.Status{
		SchemaID:     rec.ID,
		SchemaName:   rec.Name,
		IsComposing:  sess.input != "",
		IsASCIIMode:  sess.options["ascii_mode"],
		IsFullShape:  sess.options["full_shape"],
		IsSimplified: sess.options["simplification"],
		IsASCIIPunct: sess.options["ascii_punct"],
	}, true
}

func (e *Engine) Context(s rime.SessionID) (rime.Context, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.sessions[s]
	if !ok {
		return rime.Context{}, false
	}
	return rime.Context{Preedit: sess.input, Input: sess.input, CursorPos: len(sess.input)}, true
}

func (e *Engine) SchemaList() []rime.Schema {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]rime.Schema, len(e.schemas))
	for i, r := range e.schemas {
		out[i] = rime.Schema{ID: r.ID, Name: r.Name}
	}
	return out
}

// SelectSchema switches the session and clears its composition.
func (e *Engine) SelectSchema(s rime.SessionID, schemaID string) bool {
	e.mu.Lock()
	sess, ok := e.sessions[s]
	rec, found := e.schemaRecord(schemaID)
	if !ok || !found {
		e.mu.Unlock()
		return false
	}
	sess.schema = rec.ID
	sess.input = ""
	e.mu.Unlock()

	e.notify("schema", rec.ID+"/"+rec.Name)
	return true
}
