/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package leadership

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Runner runs a loop only while its election is won and stops it as soon as
// leadership is lost.
type Runner struct {
	election *Election
	run      func(context.Context) error
	logger   zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner wraps run so it executes on the elected instance only.
func NewRunner(election *Election, run func(context.Context) error, logger zerolog.Logger) *Runner {
	return &Runner{
		election: election,
		run:      run,
		logger:   logger.With().Str("component", "leader_runner").Logger(),
	}
}

// Run campaigns until ctx is cancelled, then stops the loop and resigns.
func (r *Runner) Run(ctx context.Context) error {
	r.election.Start(ctx)
	defer func() {
		r.stopLoop()
		if err := r.election.Stop(); err != nil {
			r.logger.Debug().Err(err).Msg("election stop")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case isLeader := <-r.election.LeaderCh():
			if isLeader {
				r.startLoop(ctx)
			} else {
				r.stopLoop()
			}
		}
	}
}

func (r *Runner) startLoop(parent context.Context) {
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	r.cancel, r.done = cancel, done

	r.logger.Info().Msg("leader loop started")
	go func() {
		defer close(done)
		if err := r.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error().Err(err).Msg("leader loop failed")
		}
	}()
}

func (r *Runner) stopLoop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel, r.done = nil, nil
	r.logger.Info().Msg("leader loop stopped")
}
