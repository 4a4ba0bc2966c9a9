// Package notifier is the Blogify notification engine: it decides who hears
// about a social action, stores one notification per recipient, and
// delivers it live over WebSocket and in the background over Web Push.
//
// The binaries live under cmd/:
//
//   - cmd/server: the HTTP and WebSocket API
//   - cmd/notifyctl: migrations, VAPID keys, seeding, dev tokens, and an API client
//
// The engine itself is under internal/:
//
//   - internal/fanout: recipient resolution and per-recipient persistence
//   - internal/followrequests: the follow-request state machine
//   - internal/permissions: like and comment audience tiers
//   - internal/content: blogs, comments, and the permission-gated mutations
//   - internal/push: VAPID Web Push sending, subscriptions, and the worker pool
//   - internal/realtime: the WebSocket hub
//   - internal/notifications: listing, counts, and recipient actions
//   - internal/kernel: wiring and lifecycle
package notifier
