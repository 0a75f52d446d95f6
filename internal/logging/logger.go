package logging

import (
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
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

// ParseLevel разбирает имя уровня без учёта регистра
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return TRACE, nil
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("неизвестный уровень логирования: %q", s)
	}
}

// Options - настройки логгеров компонентов
type Options struct {
	Dir          string   // Каталог файлов логов
	ToFile       bool     // Писать ли логи компонентов в файлы
	ConsoleLevel LogLevel // Минимальный уровень для консоли
	FileLevel    LogLevel // Минимальный уровень для файла
}

// DefaultOptions - только консоль, уровень INFO
func DefaultOptions() Options {
	return Options{Dir: "logs", ConsoleLevel: INFO, FileLevel: DEBUG}
}

// levels - пороги логгера. Общие для логгера и всех его копий из With,
// меняются на лету через LoggerManager.SetLogLevel.
type levels struct {
	console atomic.Int32
	file    atomic.Int32
}

func newLevels(console, file LogLevel) *levels {
	lv := &levels{}
	lv.console.Store(int32(console))
	lv.file.Store(int32(file))
	return lv
}

// Logger - логгер компонента с отдельными порогами для консоли и файла
type Logger struct {
	prefix        string
	consoleLogger *log.Logger
	fileLogger    *log.Logger
	file          *os.File
	levels        *levels
}

var (
	optionsMu sync.RWMutex
	options   = DefaultOptions()

	// Логгер по умолчанию (консоль, INFO)
	defaultLogger = &Logger{
		consoleLogger: log.New(os.Stdout, "", log.LstdFlags),
		levels:        newLevels(INFO, ERROR),
	}
)

// InitLogger применяет настройки ко всем логгерам, созданным после вызова,
// и переоткрывает логгер по умолчанию
func InitLogger(opts Options) error {
	optionsMu.Lock()
	options = opts
	optionsMu.Unlock()

	l, err := NewLogger("server")
	if err != nil {
		return err
	}
	defaultLogger = l
	return nil
}

// CloseLogger закрывает файлы всех логгеров
func CloseLogger() {
	_ = GetLoggerManager().CloseAll()
	_ = defaultLogger.Close()
}

// NewLogger создаёт логгер компонента по текущим настройкам
func NewLogger(component string) (*Logger, error) {
	optionsMu.RLock()
	opts := options
	optionsMu.RUnlock()

	prefix := ""
	if component != "" {
		prefix = "[" + component + "] "
	}
	l := &Logger{
		prefix:        prefix,
		consoleLogger: log.New(os.Stdout, "", log.LstdFlags),
		levels:        newLevels(opts.ConsoleLevel, opts.FileLevel),
	}
	if !opts.ToFile {
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

// NewWriterLogger создаёт логгер, пишущий в w (используется в тестах)
func NewWriterLogger(component string, w io.Writer, level LogLevel) *Logger {
	return &Logger{
		prefix:        "[" + component + "] ",
		consoleLogger: log.New(w, "", 0),
		levels:        newLevels(level, ERROR),
	}
}

// With возвращает логгер с дополнительным префиксом (например, trace id соединения).
// Новый логгер пишет в те же приёмники; закрывать его не нужно.
func (l *Logger) With(prefix string) *Logger {
	cp := *l
	cp.prefix = l.prefix + prefix + " "
	cp.file = nil
	return &cp
}

// Close закрывает файл логгера
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// SetLevels меняет пороги логгера и всех его копий
func (l *Logger) SetLevels(console, file LogLevel) {
	l.levels.console.Store(int32(console))
	l.levels.file.Store(int32(file))
}

// Enabled сообщает, попадёт ли сообщение уровня level хотя бы в один приёмник
func (l *Logger) Enabled(level LogLevel) bool {
	if l == nil {
		return false
	}
	return (l.consoleLogger != nil && int32(level) >= l.levels.console.Load()) ||
		(l.fileLogger != nil && int32(level) >= l.levels.file.Load())
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if !l.Enabled(level) {
		return
	}
	message := fmt.Sprintf("[%s] %s%s", level.String(), l.prefix, fmt.Sprintf(format, args...))

	if l.fileLogger != nil && int32(level) >= l.levels.file.Load() {
		l.fileLogger.Println(message)
	}
	if l.consoleLogger != nil && int32(level) >= l.levels.console.Load() {
		l.consoleLogger.Println(message)
	}
}

func (l *Logger) Trace(format string, args ...interface{}) { l.log(TRACE, format, args...) }
func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

// LogTrace логирует сообщение уровня TRACE
func LogTrace(format string, args ...interface{}) {
	defaultLogger.log(TRACE, format, args...)
}

// LogDebug логирует сообщение уровня DEBUG
func LogDebug(format string, args ...interface{}) {
	defaultLogger.log(DEBUG, format, args...)
}

// LogInfo логирует сообщение уровня INFO
func LogInfo(format string, args ...interface{}) {
	defaultLogger.log(INFO, format, args...)
}

// LogWarn логирует сообщение уровня WARN
func LogWarn(format string, args ...interface{}) {
	defaultLogger.log(WARN, format, args...)
}

// LogError логирует сообщение уровня ERROR
func LogError(format string, args ...interface{}) {
	defaultLogger.log(ERROR, format, args...)
}

// LogMessage логирует кадр протокола с hex дампом (только на уровне TRACE)
func (l *Logger) LogMessage(connID string, direction string, msgType interface{}, payload []byte) {
	if !l.Enabled(TRACE) {
		return
	}
	l.Trace("%s %s %v (%d bytes)", direction, connID, msgType, len(payload))
	if len(payload) > 0 {
		l.Trace("%s", HexDump(payload))
	}
}

// HexDump создает hex дамп данных
func HexDump(data []byte) string {
	if len(data) == 0 {
		return "No data"
	}

	// Ограничиваем размер дампа до 256 байт
	size := len(data)
	if size > 256 {
		size = 256
	}

	return hex.Dump(data[:size])
}

// LogProtocolError логирует ошибку разбора кадра протокола
func (l *Logger) LogProtocolError(connID string, err error, data []byte) {
	l.Error("Protocol error from %s: %v", connID, err)
	if len(data) > 0 {
		l.Error("Raw data (%d bytes):\n%s", len(data), HexDump(data))
	}
}
