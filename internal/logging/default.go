package logging

import "sync"

var (
	defaultMu     sync.RWMutex
	defaultLogger *Logger
)

// InitDefaultLogger создаёт логгер по умолчанию для функций пакета
func InitDefaultLogger(component string) error {
	logger, err := GetLoggerManager().GetLogger(component)
	if err != nil {
		return err
	}
	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
	return nil
}

// CloseDefaultLogger закрывает все логгеры менеджера
func CloseDefaultLogger() {
	defaultMu.Lock()
	defaultLogger = nil
	defaultMu.Unlock()
	_ = GetLoggerManager().CloseAll()
}

func current() *Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l == nil {
		return GetComponentLogger("default")
	}
	return l
}

func Debug(format string, args ...interface{}) { current().Debug(format, args...) }
func Info(format string, args ...interface{})  { current().Info(format, args...) }
func Warn(format string, args ...interface{})  { current().Warn(format, args...) }
func Error(format string, args ...interface{}) { current().Error(format, args...) }
