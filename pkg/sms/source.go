package sms

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Source yields confirmation messages for a subscriber. The subscription is
// owned by the caller and must be released through the returned cancel
// function on every exit path.
//
// Correlation is temporal: the next message delivered after the subscribe
// link is invoked is assumed to belong to the active attempt. The channel
// carries no transaction id, so this is the strongest correlation available.
type Source interface {
	Subscribe(subscriber string) (<-chan StatusMessage, func(), error)
}

// ChanSource adapts an existing message channel to the Source interface.
// Used when the host wires its own inbound-SMS path, and in tests.
type ChanSource struct {
	C chan StatusMessage
}

// NewChanSource creates a buffered channel-backed source.
func NewChanSource() *ChanSource {
	return &ChanSource{C: make(chan StatusMessage, 1)}
}

func (s *ChanSource) Subscribe(subscriber string) (<-chan StatusMessage, func(), error) {
	return s.C, func() {}, nil
}

// SpoolSource watches a spool directory for STATUS message files, the way an
// inbound-SMS daemon drops them. Each new file is read once, parsed, and
// delivered; files that are not STATUS messages are skipped.
type SpoolSource struct {
	dir      string
	interval time.Duration
}

// NewSpoolSource creates a spool-directory source polled at interval.
func NewSpoolSource(dir string, interval time.Duration) *SpoolSource {
	return &SpoolSource{dir: dir, interval: interval}
}

func (s *SpoolSource) Subscribe(subscriber string) (<-chan StatusMessage, func(), error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, nil, err
	}

	// Files already present when the subscription starts are stale; only
	// messages arriving afterwards can belong to this attempt.
	seen := make(map[string]bool)
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, nil, err
	}
	for _, entry := range entries {
		seen[entry.Name()] = true
	}

	ch := make(chan StatusMessage, 1)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() { close(done) })
	}

	go s.poll(subscriber, seen, ch, done)

	slog.Info("sms_spool_subscribed", "dir", s.dir, "subscriber", subscriber)
	return ch, cancel, nil
}

func (s *SpoolSource) poll(subscriber string, seen map[string]bool, ch chan<- StatusMessage, done <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		entries, err := os.ReadDir(s.dir)
		if err != nil {
			slog.Error("sms_spool_read_failed", "dir", s.dir, "error", err)
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() || seen[entry.Name()] {
				continue
			}
			seen[entry.Name()] = true

			body, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
			if err != nil {
				slog.Error("sms_spool_file_read_failed", "file", entry.Name(), "error", err)
				continue
			}

			msg, err := ParseStatusMessage(string(body))
			if err != nil {
				slog.Info("sms_spool_skipped_non_status", "file", entry.Name())
				continue
			}

			slog.Info("sms_status_received", "file", entry.Name(), "status", msg.ProvisioningStatus(), "subscriber", subscriber)
			select {
			case ch <- msg:
			case <-done:
				return
			}
		}
	}
}
