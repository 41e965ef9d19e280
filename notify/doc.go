// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package notify delivers vote announcements to live subscribers.
//
// Broker streams notifications to Server-Sent-Events clients of the same
// group. Fanout sends each notification to several sinks, such as the
// stored log and the broker.
package notify
