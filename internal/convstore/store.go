package convstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/nexusorch/nexusd/pkg/models"
)

// Store marshals sessions and templates between their persisted textual
// form and the in-memory data model, and exposes atomic, append-only
// message writes (spec §4.1).
type Store struct {
	TemplatesDir string
	SessionsDir  string
}

// New returns a Store rooted at the given templates/sessions directories.
func New(templatesDir, sessionsDir string) *Store {
	return &Store{TemplatesDir: templatesDir, SessionsDir: sessionsDir}
}

func (s *Store) templatePath(agentID string) string {
	return filepath.Join(s.TemplatesDir, agentID+".agent.md")
}

func (s *Store) sessionPath(sessionID string) string {
	return filepath.Join(s.SessionsDir, sessionID+".session.md")
}

// ReadTemplate loads an agent template by id. Returns ErrNotFound if the
// backing file does not exist.
func (s *Store) ReadTemplate(agentID string) (*models.AgentTemplate, error) {
	raw, err := os.ReadFile(s.templatePath(agentID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: template %q", ErrNotFound, agentID)
		}
		return nil, fmt.Errorf("convstore: read template %q: %w", agentID, err)
	}
	return ParseTemplate(raw)
}

// ReadSession loads a session by id. Returns ErrNotFound if the backing
// file does not exist, ErrMalformed if it cannot be parsed (callers should
// retry after the debounce window — see spec §4.1 Edge cases), or
// ErrBrokenLog if the log's tool-call pairing invariant is violated.
func (s *Store) ReadSession(sessionID string) (*models.Session, error) {
	raw, err := os.ReadFile(s.sessionPath(sessionID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: session %q", ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("convstore: read session %q: %w", sessionID, err)
	}
	sess, err := ParseSession(raw)
	if err != nil {
		return nil, err
	}
	if tmpl, terr := s.ReadTemplate(sess.AgentID); terr == nil {
		sess.SystemPrompt = tmpl.SystemPrompt
	}
	return sess, nil
}

// WriteSession serializes the full session and replaces the file in a
// single atomic write, updating UpdatedAt to now. Concurrent writers must
// not interleave — callers (the Orchestrator's per-session in-flight set)
// are responsible for serializing calls per session id; WriteSession itself
// only guarantees that a reader never observes a half-written file.
func (s *Store) WriteSession(sess *models.Session) error {
	sess.UpdatedAt = time.Now().UTC()
	raw, err := RenderSession(sess)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.SessionsDir, 0o755); err != nil {
		return fmt.Errorf("convstore: ensure sessions dir: %w", err)
	}
	return atomicWriteFile(s.sessionPath(sess.ID), raw, 0o644)
}

// AppendMessage is shorthand for read -> push -> write.
func (s *Store) AppendMessage(sessionID string, msg models.Message) (*models.Session, error) {
	sess, err := s.ReadSession(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Log = append(sess.Log, msg)
	if err := s.WriteSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// CreateSession clones template metadata into a new session with an empty
// log and status=active. If sessionID is empty, one is generated as
// "<agent_id>-<nonce>".
func (s *Store) CreateSession(agentID, sessionID string) (string, error) {
	tmpl, err := s.ReadTemplate(agentID)
	if err != nil {
		return "", err
	}
	if sessionID == "" {
		sessionID = fmt.Sprintf("%s-%s", agentID, uuid.New().String()[:8])
	}

	now := time.Now().UTC()
	sess := &models.Session{
		ID:           sessionID,
		AgentID:      tmpl.AgentID,
		Type:         tmpl.Type,
		Model:        tmpl.Model,
		SystemPrompt: tmpl.SystemPrompt,
		Status:       models.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
		Metadata:     map[string]any{},
	}
	if err := s.WriteSession(sess); err != nil {
		return "", err
	}
	return sessionID, nil
}

// SessionPath returns the on-disk path for a session id, for callers (the
// planner's read_session/edit_session tools) that need to operate on the
// raw file rather than the parsed model.
func (s *Store) SessionPath(sessionID string) string {
	return s.sessionPath(sessionID)
}

// ReadRawSession returns a session file's raw bytes, unparsed. Used by the
// planner's read_session tool, which surfaces the file text verbatim.
func (s *Store) ReadRawSession(sessionID string) ([]byte, error) {
	raw, err := os.ReadFile(s.sessionPath(sessionID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: session %q", ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("convstore: read session %q: %w", sessionID, err)
	}
	return raw, nil
}

// WriteRawSession overwrites a session file with caller-supplied text,
// atomically. Used only by the planner's edit_session tool (spec §4.3,
// gated) — it bypasses the normal append-only Message API entirely, so the
// caller is responsible for producing text that still round-trips through
// ParseSession.
func (s *Store) WriteRawSession(sessionID, content string) error {
	if err := os.MkdirAll(s.SessionsDir, 0o755); err != nil {
		return fmt.Errorf("convstore: ensure sessions dir: %w", err)
	}
	return atomicWriteFile(s.sessionPath(sessionID), []byte(content), 0o644)
}

// ListSessionIDs returns every session id currently on disk, in filename
// order (earliest-created planner session discovery relies on this order
// when filenames carry a sortable nonce).
func (s *Store) ListSessionIDs() ([]string, error) {
	entries, err := os.ReadDir(s.SessionsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("convstore: list sessions dir: %w", err)
	}
	var ids []string
	const suffix = ".session.md"
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
			ids = append(ids, name[:len(name)-len(suffix)])
		}
	}
	return ids, nil
}
