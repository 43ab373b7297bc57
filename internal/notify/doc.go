// Package notify delivers reminder notifications when a geofence fires.
//
// Every channel implements Notifier. Multi fans a notification out to several
// channels and reports every failure it saw. Channels:
//
//   - LogNotifier: structured log line, always available
//   - TelegramNotifier: bot message in HTML parse mode
//   - MatrixNotifier: room message with a Markdown-rendered HTML body
package notify
