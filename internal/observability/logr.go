package observability

import (
	"fmt"

	"github.com/go-logr/logr"
)

// NewLogr adapts logger to logr so libraries that log through logr, such
// as the OpenTelemetry SDK, end up in the service log. Verbosity 0 and 1
// map to info, anything above to debug.
func NewLogr(logger Logger) logr.Logger {
	if logger == nil {
		logger = NopLogger()
	}
	return logr.New(&logrSink{logger: logger})
}

type logrSink struct {
	logger Logger
	name   string
}

func (s *logrSink) Init(logr.RuntimeInfo) {}

func (s *logrSink) Enabled(int) bool { return true }

func (s *logrSink) Info(level int, msg string, keysAndValues ...any) {
	fields := s.fields(keysAndValues)
	if level > 1 {
		s.logger.Debug(msg, fields...)
		return
	}
	s.logger.Info(msg, fields...)
}

func (s *logrSink) Error(err error, msg string, keysAndValues ...any) {
	s.logger.Error(msg, append(s.fields(keysAndValues), Error(err))...)
}

func (s *logrSink) WithValues(keysAndValues ...any) logr.LogSink {
	return &logrSink{logger: s.logger.With(s.pairs(keysAndValues)...), name: s.name}
}

func (s *logrSink) WithName(name string) logr.LogSink {
	if s.name != "" {
		name = s.name + "." + name
	}
	return &logrSink{logger: s.logger, name: name}
}

func (s *logrSink) fields(keysAndValues []any) []Field {
	fields := s.pairs(keysAndValues)
	if s.name != "" {
		fields = append(fields, String("logger", s.name))
	}
	return fields
}

func (s *logrSink) pairs(keysAndValues []any) []Field {
	fields := make([]Field, 0, len(keysAndValues)/2+1)
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 == len(keysAndValues) {
			fields = append(fields, Any("extra_value", keysAndValues[i]))
			break
		}
		fields = append(fields, Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
