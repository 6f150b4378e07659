package logger

// Package logger is a small leveled logger: colored stdout plus an optional
// plain-text file with daily rollover.

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"
)

type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

var (
	logFile     *os.File
	fileDir     string
	currentDay  string
	logMu       sync.Mutex
	fileLogging bool
)

// Init enables file logging under dir/logs (or dir itself when it already
// ends in "logs"). An empty dir leaves stdout-only logging in place.
func Init(dir string) error {
	if dir == "" {
		return nil
	}
	resolved := dir
	if path.Base(filepath.ToSlash(dir)) != "logs" {
		resolved = filepath.Join(dir, "logs")
	}
	if err := os.MkdirAll(resolved, 0755); err != nil {
		return err
	}

	logMu.Lock()
	defer logMu.Unlock()
	fileDir = resolved
	fileLogging = true
	if err := rotateLocked(time.Now()); err != nil {
		fileLogging = false
		return err
	}
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	fileLogging = false
}

func Info(format string, args ...any) {
	log(LevelInfo, format, args...)
}

func Warn(format string, args ...any) {
	log(LevelWarn, format, args...)
}

func Error(format string, args ...any) {
	log(LevelError, format, args...)
}

func log(lvl Level, format string, args ...any) {
	nowTime := time.Now()
	now := nowTime.Format("2006/01/02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	var label, colorStart string
	switch lvl {
	case LevelInfo:
		colorStart = "\033[32m" // green
		label = "[INFO] "
	case LevelWarn:
		colorStart = "\033[33m" // yellow
		label = "[WARN] "
	case LevelError:
		colorStart = "\033[31m" // red
		label = "[EROR] " // 4 chars align
	}
	colorEnd := "\033[0m"

	// File output (no color), rolled over per day.
	if fileLogging {
		line := fmt.Sprintf("%s %s%s\n", now, label, msg)
		logMu.Lock()
		if err := rotateLocked(nowTime); err == nil && logFile != nil {
			_, _ = logFile.WriteString(line)
		}
		logMu.Unlock()
	}

	fmt.Fprintf(os.Stdout, "%s %s%s%s%s\n", now, colorStart, label, colorEnd, msg)
}

func rotateLocked(t time.Time) error {
	if fileDir == "" {
		return nil
	}
	day := t.Format("2006-01-02")
	if logFile != nil && currentDay == day {
		return nil
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	filePath := filepath.Join(fileDir, day+".log")
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	logFile = f
	currentDay = day
	return nil
}
