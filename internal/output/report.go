package output

import (
	"fmt"
	"os"
	"sync"

	"catalogpull/internal/pull"
)

// ReportSink writes a Markdown summary of the run on Close.
type ReportSink struct {
	path   string
	file   *os.File
	mu     sync.Mutex
	meta   RunMeta
	report *pull.Report
}

func NewReportSink(path string) (*ReportSink, error) {
	if path == "" {
		return nil, fmt.Errorf("report path required")
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}

	return &ReportSink{path: path, file: f}, nil
}

func (s *ReportSink) Write(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case EventRunStarted:
		s.meta.RunID = ev.RunID
		s.meta.OldServer = ev.OldServer
		s.meta.NewServer = ev.NewServer
	case EventReport:
		s.report = ev.Report
	case EventRunFinished:
		s.meta.ExitCode = ev.ExitCode
		s.meta.Finished = true
	}
	return nil
}

func (s *ReportSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.file.WriteString(RenderMarkdown(s.report, s.meta))
	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
