// Package notify renders engine notifications and delivers them to
// registered channels.
package notify

// Compile-time interface compliance checks.
var _ Channel = (*Console)(nil)
var _ Channel = (*Desktop)(nil)
var _ Channel = (*Telegram)(nil)
