// Package bench polls an external benchmark feed on its own timer,
// normalizes the feed's three response shapes into one (name, timestamp,
// value) sample, and raises a threshold alert through the delivery queue.
// Alerts use episode semantics: one alert when a series first goes over
// threshold, silence until it drops back under.
package bench
