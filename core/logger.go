package core

import "github.com/hupe1980/studymesh/logging"

// scopedLogger backs the LogX helpers of RunContext and ToolContext. Its kv
// pairs are appended to every entry; the logger is never nil.
type scopedLogger struct {
	logger logging.Logger
	kv     []any
}

func newScopedLogger(l logging.Logger, kv ...any) *scopedLogger {
	if l == nil {
		l = logging.NoOpLogger{}
	}
	return &scopedLogger{logger: l, kv: kv}
}

func (s *scopedLogger) with(kv ...any) *scopedLogger {
	merged := make([]any, 0, len(s.kv)+len(kv))
	merged = append(append(merged, s.kv...), kv...)
	return &scopedLogger{logger: s.logger, kv: merged}
}

func (s *scopedLogger) args(args []any) []any {
	if len(s.kv) == 0 {
		return args
	}
	out := make([]any, 0, len(args)+len(s.kv))
	return append(append(out, args...), s.kv...)
}

// Logger returns the unscoped logger.
func (s *scopedLogger) Logger() logging.Logger { return s.logger }

func (s *scopedLogger) LogDebug(msg string, args ...any) { s.logger.Debug(msg, s.args(args)...) }
func (s *scopedLogger) LogInfo(msg string, args ...any)  { s.logger.Info(msg, s.args(args)...) }
func (s *scopedLogger) LogWarn(msg string, args ...any)  { s.logger.Warn(msg, s.args(args)...) }
func (s *scopedLogger) LogError(msg string, args ...any) { s.logger.Error(msg, s.args(args)...) }
