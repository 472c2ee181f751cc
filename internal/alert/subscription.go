package alert

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/feeta/feeta/pkg/cerr"
	"github.com/feeta/feeta/pkg/storage"
)

type Subscription struct {
	ID        string    `yaml:"id"`
	Endpoint  string    `yaml:"endpoint"`
	P256dhKey string    `yaml:"p256dh_key"`
	AuthKey   string    `yaml:"auth_key"`
	CreatedAt time.Time `yaml:"created_at"`
}

type subscriptionFile struct {
	Subscriptions []*Subscription `yaml:"subscriptions"`
}

// SubscriptionStore keeps Web Push subscriptions in one YAML document.
type SubscriptionStore struct {
	storage storage.Storage
	path    string
	mu      sync.Mutex
}

func NewSubscriptionStore(s storage.Storage, path string) *SubscriptionStore {
	return &SubscriptionStore{storage: s, path: path}
}

// OpenSubscriptionFile stores subscriptions in the file at path.
func OpenSubscriptionFile(path string) (*SubscriptionStore, error) {
	s, err := storage.NewLocalStorage(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	return NewSubscriptionStore(s, filepath.Base(path)), nil
}

func (r *SubscriptionStore) load(ctx context.Context) (*subscriptionFile, error) {
	doc, err := storage.ReadYAML[subscriptionFile](ctx, r.storage, r.path)
	if errors.Is(err, storage.ErrNotFound) {
		return &subscriptionFile{}, nil
	}
	if err != nil {
		return nil, cerr.FromStorage(cerr.StorageRead, "push subscriptions", err)
	}
	return doc, nil
}

func (r *SubscriptionStore) List(ctx context.Context) ([]*Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Subscriptions, nil
}

// Add stores sub, replacing any subscription with the same endpoint.
func (r *SubscriptionStore) Add(ctx context.Context, sub *Subscription) error {
	if sub.Endpoint == "" {
		return cerr.NewError(cerr.InvalidArgument, "endpoint is required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load(ctx)
	if err != nil {
		return err
	}
	if sub.ID == "" {
		sub.ID = ulid.Make().String()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	doc.Subscriptions = slices.DeleteFunc(doc.Subscriptions, func(s *Subscription) bool {
		return s.Endpoint == sub.Endpoint
	})
	doc.Subscriptions = append(doc.Subscriptions, sub)
	if err := storage.WriteYAML(ctx, r.storage, r.path, doc); err != nil {
		return cerr.FromStorage(cerr.StorageWrite, "push subscriptions", err)
	}
	return nil
}

func (r *SubscriptionStore) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load(ctx)
	if err != nil {
		return err
	}
	n := len(doc.Subscriptions)
	doc.Subscriptions = slices.DeleteFunc(doc.Subscriptions, func(s *Subscription) bool { return s.ID == id })
	if len(doc.Subscriptions) == n {
		return cerr.NewError(cerr.NotFound, "push subscription not found", nil)
	}
	if err := storage.WriteYAML(ctx, r.storage, r.path, doc); err != nil {
		return cerr.FromStorage(cerr.StorageWrite, "push subscriptions", err)
	}
	return nil
}
