// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesSent tracks outbound messages encoded and written to the wire.
	MessagesSent = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "sent_total",
			Help:      "Total number of outbound messages sent, by kind",
		},
		[]string{"kind"},
	)

	// MessagesReceived tracks inbound messages successfully decoded and dispatched.
	MessagesReceived = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "received_total",
			Help:      "Total number of inbound messages decoded and dispatched, by kind",
		},
		[]string{"kind"},
	)

	// MessagesDropped tracks inbound messages dropped by the router, by reason.
	MessagesDropped = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "dropped_total",
			Help:      "Total number of inbound messages dropped, by taxonomy reason",
		},
		[]string{"reason"},
	)

	// RequestQueueDepth reports the current depth of the outbound request queue (C4).
	RequestQueueDepth = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "queue_depth",
			Help:      "Current number of MessageRequests waiting for a worker",
		},
	)

	// RequestsCompleted tracks completed outbound requests, by outcome.
	RequestsCompleted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "completed_total",
			Help:      "Total number of outbound requests completed, by outcome",
		},
		[]string{"outcome"}, // ok, timeout, partial, cancelled, error
	)

	// ReplyQueueDepth reports the current depth of the reply pump (C6).
	ReplyQueueDepth = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "replies",
			Name:      "queue_depth",
			Help:      "Current number of replies waiting to be emitted",
		},
	)

	// BroadcastQueueDepth reports the current depth of the broadcast pump (C7).
	BroadcastQueueDepth = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "queue_depth",
			Help:      "Current number of (peers, message) pairs waiting to be fanned out",
		},
	)

	// OutboundSocketsActive reports the current size of the outbound socket cache (C3).
	OutboundSocketsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sockets",
			Name:      "outbound_active",
			Help:      "Current number of cached outbound sockets",
		},
	)

	// OutboundSocketsEvicted tracks outbound socket cache evictions, by reason.
	OutboundSocketsEvicted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sockets",
			Name:      "outbound_evicted_total",
			Help:      "Total number of outbound sockets evicted, by reason",
		},
		[]string{"reason"}, // idle, dead, endpoint_changed
	)

	// NATResolutions tracks NAT resolution outcomes at transport start (C2).
	NATResolutions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "nat",
			Name:      "resolutions_total",
			Help:      "Total number of NAT resolution attempts, by outcome",
		},
		[]string{"outcome"}, // configured_host, turn_relay, turn_public, failed
	)
)
