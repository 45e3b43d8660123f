// Package notify defines the messaging sink used by the delivery queue and
// provides two implementations: the Telegram Bot API and a generic JSON
// webhook. Send errors are split into transient and permanent so the queue
// can decide whether to retry.
package notify
