// Package notifications delivers run events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when notifications are disabled.
// Callers publish an Event with a loosely typed Payload; the ntfy notifier
// owns the titles, tags, and wording so commands never format messages
// themselves.
package notifications
