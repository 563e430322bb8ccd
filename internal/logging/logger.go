package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает уровень из строки без учёта регистра
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return TRACE, nil
	case "DEBUG":
		return DEBUG, nil
	case "INFO", "":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("неизвестный уровень логирования %q", s)
}

// Logger пишет сообщения компонента в консоль и, опционально, в файл
type Logger struct {
	component       string
	consoleLogger   *log.Logger
	fileLogger      *log.Logger
	file            *os.File
	minConsoleLevel LogLevel
	minFileLevel    LogLevel
}

// Options задают, куда и с какими уровнями пишет новый логгер
type Options struct {
	Console      io.Writer // по умолчанию os.Stderr
	Dir          string    // каталог файловых логов; если пусто, файл не пишется
	ConsoleLevel LogLevel
	FileLevel    LogLevel
}

var (
	optionsMu sync.RWMutex
	options   = Options{ConsoleLevel: INFO, FileLevel: DEBUG}
)

// Configure задаёт параметры для логгеров, создаваемых после вызова
func Configure(opts Options) {
	optionsMu.Lock()
	options = opts
	optionsMu.Unlock()
}

func currentOptions() Options {
	optionsMu.RLock()
	defer optionsMu.RUnlock()
	return options
}

// NewLogger создаёт логгер компонента с текущими параметрами
func NewLogger(component string) (*Logger, error) {
	opts := currentOptions()

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	l := &Logger{
		component:       component,
		consoleLogger:   log.New(console, "", log.LstdFlags),
		minConsoleLevel: opts.ConsoleLevel,
		minFileLevel:    opts.FileLevel,
	}

	if opts.Dir == "" {
		return l, nil
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", opts.Dir, err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join(opts.Dir, fmt.Sprintf("%s_%s.log", component, timestamp))
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла логов: %w", err)
	}

	l.file = file
	l.fileLogger = log.New(file, "", log.LstdFlags)
	return l, nil
}

// Close закрывает файл логов
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.fileLogger = nil
	return err
}

// Enabled сообщает, будет ли сообщение уровня level куда-либо записано
func (l *Logger) Enabled(level LogLevel) bool {
	return level >= l.minConsoleLevel || (l.fileLogger != nil && level >= l.minFileLevel)
}

func (l *Logger) logf(level LogLevel, format string, args ...interface{}) {
	if !l.Enabled(level) {
		return
	}

	message := fmt.Sprintf("[%s] [%s] %s", level.String(), l.component, fmt.Sprintf(format, args...))

	if l.fileLogger != nil && level >= l.minFileLevel {
		l.fileLogger.Println(message)
	}
	if level >= l.minConsoleLevel {
		l.consoleLogger.Println(message)
	}
}

// Trace логирует сообщение уровня TRACE
func (l *Logger) Trace(format string, args ...interface{}) { l.logf(TRACE, format, args...) }

// Debug логирует сообщение уровня DEBUG
func (l *Logger) Debug(format string, args ...interface{}) { l.logf(DEBUG, format, args...) }

// Info логирует сообщение уровня INFO
func (l *Logger) Info(format string, args ...interface{}) { l.logf(INFO, format, args...) }

// Warn логирует сообщение уровня WARN
func (l *Logger) Warn(format string, args ...interface{}) { l.logf(WARN, format, args...) }

// Error логирует сообщение уровня ERROR
func (l *Logger) Error(format string, args ...interface{}) { l.logf(ERROR, format, args...) }
