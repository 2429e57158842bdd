// Package monitor periodically writes the race status to a file so a
// headless session can be watched from outside.
package monitor

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tiledrace/racecore/internal/race"
)

// Source provides the status to write.
type Source interface {
	Snapshot() race.Snapshot
}

// Logger is the logging surface the monitor needs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source     Source
	Logger     Logger
	StatusFile string
	Interval   time.Duration // 0 means one second
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status renders the current snapshot as indented JSON.
func (s *Service) Status() ([]byte, error) {
	b, err := json.MarshalIndent(s.deps.Source.Snapshot(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding status: %w", err)
	}
	return append(b, '\n'), nil
}

// Start starts the status monitor goroutine. The status file is created
// before Start returns.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	statusFile, err := os.Create(s.deps.StatusFile)
	if err != nil {
		return fmt.Errorf("creating status file: %w", err)
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(statusFile, s.stopChan, s.done)
	return nil
}

// Stop writes a final status and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}

func (s *Service) loop(statusFile *os.File, stop <-chan struct{}, done chan<- struct{}) {
	defer func() {
		_ = statusFile.Close()
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		close(done)
	}()

	s.deps.Logger.Debug("Starting status monitor", "file", s.deps.StatusFile, "interval", s.deps.Interval)
	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			s.write(statusFile)
			return
		case <-ticker.C:
			s.write(statusFile)
		}
	}
}

// write replaces the file contents with the current status.
func (s *Service) write(f *os.File) {
	status, err := s.Status()
	if err != nil {
		s.deps.Logger.Error("Error building status", "error", err)
		return
	}
	if err := f.Truncate(0); err != nil {
		s.deps.Logger.Error("Error truncating status file", "error", err)
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		s.deps.Logger.Error("Error rewinding status file", "error", err)
		return
	}
	if _, err := f.Write(status); err != nil {
		s.deps.Logger.Error("Error writing status file", "error", err)
	}
}
