package ledger

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexusorch/nexusd/pkg/models"
)

// Ledger is the single shared tasks/approvals.task.md file. All reads and
// writes go through the in-process mutex: the file is multi-writer in
// practice (human + orchestrator), but this process only ever appends new
// entries and flips Closed, never the human-owned status marker (spec §5).
type Ledger struct {
	path string
	mu   sync.Mutex
}

// New returns a Ledger backed by the given ledger file path. The file and
// its parent directory are created empty if missing.
func New(path string) (*Ledger, error) {
	l := &Ledger{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if werr := atomicWriteFile(path, renderLedger(nil), 0o644); werr != nil {
			return nil, werr
		}
	}
	return l, nil
}

func (l *Ledger) load() ([]models.ApprovalEntry, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("ledger: read %s: %w", l.path, err)
	}
	return parseLedger(raw)
}

func (l *Ledger) save(entries []models.ApprovalEntry) error {
	return atomicWriteFile(l.path, renderLedger(entries), 0o644)
}

// Request appends a new pending entry and returns its id. Calling Request
// twice for the same logical action creates two distinct entries — the
// caller (the Tool Dispatcher) is responsible for not enqueuing duplicates
// (spec §4.2 Idempotence).
func (l *Ledger) Request(sessionID, toolCallID, toolName string, args map[string]any, risk models.RiskLevel, description string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load()
	if err != nil {
		return "", err
	}

	id := "apr_" + uuid.New().String()[:8]
	entries = append(entries, models.ApprovalEntry{
		ID:          id,
		SessionID:   sessionID,
		ToolCallID:  toolCallID,
		ToolName:    toolName,
		Args:        args,
		Risk:        risk,
		Description: description,
		CreatedAt:   time.Now().UTC(),
		Status:      models.ApprovalPending,
	})

	if err := l.save(entries); err != nil {
		return "", err
	}
	return id, nil
}

// Decision reports the current status of an approval entry.
func (l *Ledger) Decision(approvalID string) (models.ApprovalStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load()
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.ID == approvalID {
			return e.Status, nil
		}
	}
	return "", fmt.Errorf("ledger: unknown approval id %q", approvalID)
}

// Get returns the full entry for an approval id.
func (l *Ledger) Get(approvalID string) (*models.ApprovalEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.ID == approvalID {
			entry := e
			return &entry, nil
		}
	}
	return nil, fmt.Errorf("ledger: unknown approval id %q", approvalID)
}

// Close marks an entry archived (non-destructive; it remains visible in the
// file). The orchestrator calls this only after it has observed and acted
// on a non-pending decision — it never flips pending -> approved itself.
func (l *Ledger) Close(approvalID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load()
	if err != nil {
		return err
	}
	found := false
	for i := range entries {
		if entries[i].ID == approvalID {
			entries[i].Closed = true
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("ledger: unknown approval id %q", approvalID)
	}
	return l.save(entries)
}

// ListPending returns the ids of every non-closed entry still in pending
// status.
func (l *Ledger) ListPending() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load()
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.Status == models.ApprovalPending && !e.Closed {
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

// All returns every entry in the ledger, in file order, for reconciliation
// at orchestrator start-up (spec §4.6 Reconciliation) and for read-only CLI
// views.
func (l *Ledger) All() ([]models.ApprovalEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}
