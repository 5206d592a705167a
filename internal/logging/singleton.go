package logging

import (
	"sync"
)

var (
	instance *Logger
	once     sync.Once
	mu       sync.Mutex
	cfg      *Config
)

// Configure sets the logging configuration.
// This should be called before any logger usage.
func Configure(config *Config) {
	mu.Lock()
	defer mu.Unlock()
	cfg = config
}

// GetLogger returns the singleton logger instance, initializing it on first use.
// If no config was provided via Configure(), a stdout-only default is used.
func GetLogger() *Logger {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()

		if cfg == nil {
			cfg = &Config{File: "./logs/tunnelout.log", MaxSize: 100, MaxBackups: 3, MaxAge: 7}
		}

		var err error
		instance, err = NewLogger(cfg)
		if err != nil {
			panic("failed to initialize logger: " + err.Error())
		}
	})

	return instance
}
