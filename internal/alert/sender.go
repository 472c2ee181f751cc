package alert

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/feeta/feeta/internal/config"
)

type NotificationPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

type Sender struct {
	env        *config.AlertEnv
	store      *SubscriptionStore
	httpClient webpush.HTTPClient
}

func NewSender(env *config.AlertEnv, store *SubscriptionStore) *Sender {
	return &Sender{env: env, store: store}
}

// Notify pushes one notification per alert.
func (s *Sender) Notify(ctx context.Context, alerts []Alert) {
	for _, a := range alerts {
		slog.InfoContext(ctx, "risk raised", "project_id", a.ProjectID, "risk", a.Risk.Type, "count", a.Risk.Count)
		s.SendToAll(ctx, &NotificationPayload{
			Title: a.Title(),
			Body:  a.Body(),
			Tag:   a.Tag(),
		})
	}
}

func (s *Sender) SendToAll(ctx context.Context, payload *NotificationPayload) {
	if !s.env.Enabled() {
		slog.DebugContext(ctx, "push notification: VAPID keys not configured, skipping")
		return
	}

	subs, err := s.store.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "push notification: failed to list subscriptions", "error", err)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "push notification: failed to marshal payload", "error", err)
		return
	}

	for _, sub := range subs {
		s.send(ctx, sub, data)
	}
}

func (s *Sender) send(ctx context.Context, sub *Subscription, data []byte) {
	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		HTTPClient:      s.httpClient,
		VAPIDPublicKey:  s.env.VAPIDPublicKey,
		VAPIDPrivateKey: s.env.VAPIDPrivateKey,
		Subscriber:      s.env.VAPIDContact,
		TTL:             86400,
	})
	if err != nil {
		slog.ErrorContext(ctx, "push notification: failed to send", "endpoint", sub.Endpoint, "error", err)
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		slog.InfoContext(ctx, "push notification: subscription expired, removing", "endpoint", sub.Endpoint)
		if err := s.store.Delete(ctx, sub.ID); err != nil {
			slog.ErrorContext(ctx, "push notification: failed to delete expired subscription", "id", sub.ID, "error", err)
		}
	case resp.StatusCode >= 400:
		slog.WarnContext(ctx, "push notification: unexpected status", "endpoint", sub.Endpoint, "status", resp.StatusCode)
	}
}
