package reporter

import (
	"github.com/hashicorp/go-hclog"
)

// HCLogSink adapts a Reporter to write through github.com/hashicorp/go-hclog,
// for structured output consumers that already standardize on hclog.
type HCLogSink struct {
	Logger hclog.Logger
}

// NewHCLogSink wraps logger, or a new default hclog.Logger if nil.
func NewHCLogSink(logger hclog.Logger) HCLogSink {
	if logger == nil {
		logger = hclog.Default()
	}
	return HCLogSink{Logger: logger}
}

func (s HCLogSink) Report(level Level, source, message string) {
	l := s.Logger
	if source != "" {
		l = l.Named(source)
	}
	switch level {
	case TRACE:
		l.Trace(message)
	case PROGRESS, NOTICE:
		l.Info(message)
	case WARNING:
		l.Warn(message)
	case ERROR, INTERNAL:
		l.Error(message)
	}
}
