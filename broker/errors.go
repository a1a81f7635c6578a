// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package broker

import "errors"

// Backend errors.
var (
	// Configuration errors.
	ErrNoServers     = errors.New("no broker servers configured")
	ErrEmptyClientID = errors.New("client ID cannot be empty")

	// Operation errors.
	ErrClientClosed   = errors.New("broker client has been closed")
	ErrProducerClosed = errors.New("producer has been closed")
	ErrNotSupported   = errors.New("operation not supported by this backend")
	ErrTopicMismatch  = errors.New("producer is bound to a different topic")
)
