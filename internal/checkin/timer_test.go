package checkin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexusorch/nexusd/internal/convstore"
	"github.com/nexusorch/nexusd/pkg/models"
)

func newTestStore(t *testing.T) *convstore.Store {
	t.Helper()
	dir := t.TempDir()
	templatesDir := filepath.Join(dir, "templates")
	sessionsDir := filepath.Join(dir, "sessions")
	require.NoError(t, os.MkdirAll(templatesDir, 0o755))
	require.NoError(t, os.MkdirAll(sessionsDir, 0o755))

	raw, err := convstore.RenderTemplate(&models.AgentTemplate{
		AgentID: "planner",
		Type:    models.AgentPlanner,
		Model:   "claude-sonnet-4",
		Tools:   []string{"list_active_sessions"},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(templatesDir, "planner.agent.md"), raw, 0o644))

	return convstore.New(templatesDir, sessionsDir)
}

func TestFirstEvaluationEstablishesBaselineOnly(t *testing.T) {
	store := newTestStore(t)
	timer := New(store, filepath.Join(t.TempDir(), "planner-checkin.yaml"), time.Minute, "")

	fired, err := timer.Evaluate(context.Background(), time.Unix(0, 0).UTC())
	require.NoError(t, err)
	require.False(t, fired)

	ids, err := store.ListSessionIDs()
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestSubsequentEvaluationFiresAfterInterval(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "planner-checkin.yaml")
	timer := New(store, path, time.Minute, "")
	base := time.Unix(0, 0).UTC()

	fired, err := timer.Evaluate(context.Background(), base)
	require.NoError(t, err)
	require.False(t, fired)

	fired, err = timer.Evaluate(context.Background(), base.Add(30*time.Second))
	require.NoError(t, err)
	require.False(t, fired)

	fired, err = timer.Evaluate(context.Background(), base.Add(61*time.Second))
	require.NoError(t, err)
	require.True(t, fired)

	ids, err := store.ListSessionIDs()
	require.NoError(t, err)
	require.Len(t, ids, 1)

	sess, err := store.ReadSession(ids[0])
	require.NoError(t, err)
	require.Len(t, sess.Log, 1)
	require.Equal(t, models.RoleUser, sess.Log[0].Role)
	require.Equal(t, checkinMessage, sess.Log[0].Content)
}

func TestReusesExistingPlannerSessionAcrossCheckins(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "planner-checkin.yaml")
	timer := New(store, path, time.Minute, "")
	base := time.Unix(0, 0).UTC()

	_, err := timer.Evaluate(context.Background(), base)
	require.NoError(t, err)
	_, err = timer.Evaluate(context.Background(), base.Add(61*time.Second))
	require.NoError(t, err)
	_, err = timer.Evaluate(context.Background(), base.Add(123*time.Second))
	require.NoError(t, err)

	ids, err := store.ListSessionIDs()
	require.NoError(t, err)
	require.Len(t, ids, 1, "a second check-in must reuse the planner session rather than create another")

	sess, err := store.ReadSession(ids[0])
	require.NoError(t, err)
	require.Len(t, sess.Log, 2)
}
