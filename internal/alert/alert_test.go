package alert

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feeta/feeta/internal/config"
	"github.com/feeta/feeta/internal/project"
	"github.com/feeta/feeta/internal/task"
	"github.com/feeta/feeta/pkg/cerr"
)

func overview(id string, risks ...task.Risk) project.Overview {
	return project.Overview{Project: project.Project{ID: id, Name: "Project " + id}, Risks: risks}
}

var (
	overdue = task.Risk{Type: task.RiskOverdue, Count: 2, Severity: task.SeverityHigh}
	blocked = task.Risk{Type: task.RiskBlocked, Count: 1, Severity: task.SeverityHigh}
)

func TestDetector(t *testing.T) {
	d := NewDetector()

	assert.Empty(t, d.Observe([]project.Overview{overview("a", overdue)}))

	got := d.Observe([]project.Overview{overview("a", overdue, blocked), overview("b", overdue)})
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ProjectID)
	assert.Equal(t, task.RiskBlocked, got[0].Risk.Type)
	assert.Equal(t, "b", got[1].ProjectID)

	failed := overview("a")
	failed.Err = assert.AnError
	assert.Empty(t, d.Observe([]project.Overview{failed, overview("b", overdue)}))

	// Cleared and raised again.
	assert.Empty(t, d.Observe([]project.Overview{overview("a"), overview("b", overdue)}))
	got = d.Observe([]project.Overview{overview("a", blocked), overview("b", overdue)})
	require.Len(t, got, 1)
	assert.Equal(t, "Project a: blocked risk", got[0].Title())
	assert.Equal(t, "1 blocked task (high severity)", got[0].Body())
	assert.Equal(t, "a:blocked", got[0].Tag())
}

func TestSubscriptionStore(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSubscriptionFile(filepath.Join(t.TempDir(), "subs.yaml"))
	require.NoError(t, err)

	subs, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs)

	require.NoError(t, store.Add(ctx, &Subscription{Endpoint: "https://push.example/1", AuthKey: "a"}))
	require.NoError(t, store.Add(ctx, &Subscription{Endpoint: "https://push.example/1", AuthKey: "b"}))
	require.NoError(t, store.Add(ctx, &Subscription{Endpoint: "https://push.example/2"}))
	assert.Equal(t, cerr.InvalidArgument, cerr.CodeOf(store.Add(ctx, &Subscription{})))

	subs, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "b", subs[0].AuthKey)
	assert.NotEmpty(t, subs[0].ID)

	require.NoError(t, store.Delete(ctx, subs[0].ID))
	assert.Equal(t, cerr.NotFound, cerr.CodeOf(store.Delete(ctx, subs[0].ID)))
}

func newBrowserKeys(t *testing.T) (p256dh, auth string) {
	t.Helper()
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	secret := make([]byte, 16)
	_, err = rand.Read(secret)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()), base64.RawURLEncoding.EncodeToString(secret)
}

func TestSender(t *testing.T) {
	ctx := context.Background()
	var delivered atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		assert.Contains(t, r.Header.Get("Authorization"), "vapid")
		delivered.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	store, err := OpenSubscriptionFile(filepath.Join(t.TempDir(), "subs.yaml"))
	require.NoError(t, err)
	for _, path := range []string{"/live", "/gone"} {
		p256dh, auth := newBrowserKeys(t)
		require.NoError(t, store.Add(ctx, &Subscription{Endpoint: srv.URL + path, P256dhKey: p256dh, AuthKey: auth}))
	}

	priv, pub, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	sender := NewSender(&config.AlertEnv{VAPIDPublicKey: pub, VAPIDPrivateKey: priv, VAPIDContact: "ops@example.com"}, store)

	sender.Notify(ctx, []Alert{{ProjectID: "a", ProjectName: "A", Risk: overdue}})
	assert.Equal(t, int32(1), delivered.Load())

	subs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, srv.URL+"/live", subs[0].Endpoint)
}

func TestSender_DisabledWithoutKeys(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits.Add(1) }))
	defer srv.Close()

	store, err := OpenSubscriptionFile(filepath.Join(t.TempDir(), "subs.yaml"))
	require.NoError(t, err)
	require.NoError(t, store.Add(context.Background(), &Subscription{Endpoint: srv.URL}))

	NewSender(&config.AlertEnv{}, store).Notify(context.Background(), []Alert{{Risk: overdue}})
	assert.Zero(t, hits.Load())
}
