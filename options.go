package gosimplehttp

import "github.com/sirupsen/logrus"

// Option configures a Server at construction time.
type Option func(*Server)

// WithLogger overrides the server's logrus logger. The default is
// logrus.StandardLogger().
func WithLogger(log *logrus.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithConfig overrides the server's tunables. The default is DefaultConfig().
func WithConfig(cfg *Config) Option {
	return func(s *Server) {
		s.cfg = cfg
	}
}
