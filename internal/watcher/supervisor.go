package watcher

import (
	"context"
	"errors"
	"sync"

	"github.com/paykg/deposit-gateway/pkg/logger"
)

// Supervisor runs one Unit per configured mailbox. A unit stopping on
// ErrAuthFailed takes only itself down; the other mailboxes keep watching.
type Supervisor struct {
	units map[string]*Unit
	wg    sync.WaitGroup
}

func NewSupervisor() *Supervisor {
	return &Supervisor{units: make(map[string]*Unit)}
}

func (s *Supervisor) Add(name string, u *Unit) {
	s.units[name] = u
}

func (s *Supervisor) Start(ctx context.Context) {
	for name, u := range s.units {
		s.wg.Add(1)
		go func(name string, u *Unit) {
			defer s.wg.Done()
			err := u.Run(ctx)
			switch {
			case errors.Is(err, context.Canceled):
				logger.Info("watcher: unit stopped", "mailbox", name)
			case errors.Is(err, ErrAuthFailed):
				logger.Error("watcher: unit stopped on auth failure, fix credentials and restart",
					"mailbox", name)
			default:
				logger.Error("watcher: unit exited", "mailbox", name, "error", err)
			}
		}(name, u)
	}
	logger.Info("watcher: supervisor started", "units", len(s.units))
}

// Wait blocks until every unit has stopped.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
