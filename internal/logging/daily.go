package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DailyFile 按本地日期切换日志文件：<dir>/<prefix>-YYYY-MM-DD.log
type DailyFile struct {
	dir    string
	prefix string
	now    func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
}

func NewDailyFile(dir, prefix string) *DailyFile {
	return &DailyFile{dir: dir, prefix: prefix, now: time.Now}
}

// FileName 指定日期对应的日志文件
func (d *DailyFile) FileName(t time.Time) string {
	return filepath.Join(d.dir, fmt.Sprintf("%s-%s.log", d.prefix, t.Format("2006-01-02")))
}

func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.rotate(); err != nil {
		return 0, err
	}
	return d.file.Write(p)
}

func (d *DailyFile) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}
	return d.file.Sync()
}

func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	d.day = ""
	return err
}

// 调用方持有锁
func (d *DailyFile) rotate() error {
	now := d.now()
	day := now.Format("2006-01-02")
	if d.file != nil && day == d.day {
		return nil
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(d.FileName(now), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if d.file != nil {
		_ = d.file.Close()
	}
	d.file = f
	d.day = day
	return nil
}
