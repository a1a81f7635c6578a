// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package engine

import "errors"

var (
	// ErrAllProducersFailed indicates every worker in a scenario failed to
	// produce any acknowledged records.
	ErrAllProducersFailed = errors.New("all producers failed")

	// ErrPartialProducerFailure indicates some, but not all, workers failed.
	ErrPartialProducerFailure = errors.New("some producers failed")

	// ErrTopicCreation indicates the scenario topic could not be created.
	ErrTopicCreation = errors.New("topic creation failed")

	// ErrScenarioFailed wraps the failure that aborted a multi-scenario run.
	ErrScenarioFailed = errors.New("scenario failed")

	// ErrNoScenarios indicates a run was started with an empty scenario list.
	ErrNoScenarios = errors.New("no scenarios to run")
)
