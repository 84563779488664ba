package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/YKarmar/ApplyTracker/internal/types"
)

// CSV 列顺序，写入时必须带表头
var Columns = []string{
	"id",
	"company",
	"title",
	"status",
	"date",
	"location",
	"url",
	"job_id",
	"research",
	"source_id",
	"first_seen",
}

// 旧版 Python 脚本写出的表头，加载时自动迁移
var legacyColumns = []string{"title", "company", "status", "date", "research"}

// LoadStats 加载时的附加信息
type LoadStats struct {
	Rows       int
	Collapsed  int  // 重复主键被合并的行数
	Legacy     bool // 旧格式文件
	FileExists bool
}

// CSVStore 管理磁盘上唯一的 CSV 文件
type CSVStore struct {
	path string

	// 测试用：rename 之前调用，返回错误即模拟写入中断
	beforeRename func(tmpPath string) error
}

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path CSV 文件路径，也是邮件附件路径
func (s *CSVStore) Path() string {
	return s.path
}

// LoadAll 读取全部记录；文件不存在时返回空
func (s *CSVStore) LoadAll() ([]types.JobApplication, error) {
	apps, _, err := s.LoadWithStats()
	return apps, err
}

func (s *CSVStore) LoadWithStats() ([]types.JobApplication, LoadStats, error) {
	var stats LoadStats

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, stats, nil
	}
	if err != nil {
		return nil, stats, fmt.Errorf("open store: %w", err)
	}
	defer file.Close()
	stats.FileExists = true

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 0

	header, err := reader.Read()
	if err == io.EOF {
		return nil, stats, s.corrupt(0, errors.New("missing header row"))
	}
	if err != nil {
		return nil, stats, s.corrupt(0, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var parse func([]string) (types.JobApplication, error)
	switch {
	case equalFields(header, Columns):
		parse = parseRow
	case equalFields(header, legacyColumns):
		parse = parseLegacyRow
		stats.Legacy = true
	default:
		return nil, stats, s.corrupt(1, fmt.Errorf("unexpected header %q", strings.Join(header, ",")))
	}

	var applications []types.JobApplication
	seen := make(map[string]struct{})
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, stats, s.corrupt(pe.Line, pe.Err)
			}
			return nil, stats, s.corrupt(0, err)
		}
		line, _ := reader.FieldPos(0)

		app, err := parse(record)
		if err != nil {
			return nil, stats, s.corrupt(line, err)
		}
		stats.Rows++

		if _, dup := seen[app.ID]; dup {
			stats.Collapsed++
			continue
		}
		seen[app.ID] = struct{}{}
		applications = append(applications, app)
	}

	return applications, stats, nil
}

// Persist 全量写入临时文件后 rename 覆盖，中途失败不影响原文件
func (s *CSVStore) Persist(applications []types.JobApplication) error {
	seen := make(map[string]struct{}, len(applications))
	rows := make([][]string, 0, len(applications))
	for _, app := range applications {
		app.ID = IdentityOf(app)
		if _, dup := seen[app.ID]; dup {
			return fmt.Errorf("persist: duplicate identity %s (%s / %s / %s)", app.ID, app.Company, app.Title, app.Date)
		}
		seen[app.ID] = struct{}{}
		rows = append(rows, formatRow(app))
	}

	return s.writeAtomic(s.path, func(w io.Writer) error {
		writer := csv.NewWriter(w)
		if err := writer.Write(Columns); err != nil {
			return fmt.Errorf("write CSV headers: %w", err)
		}
		if err := writer.WriteAll(rows); err != nil {
			return fmt.Errorf("write CSV records: %w", err)
		}
		return nil
	})
}

func (s *CSVStore) writeAtomic(target string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	mode := os.FileMode(0o644)
	if fi, statErr := os.Stat(target); statErr == nil {
		mode = fi.Mode().Perm()
	}
	if err = tmp.Chmod(mode); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if s.beforeRename != nil {
		if err = s.beforeRename(tmpPath); err != nil {
			return err
		}
	}
	if err = os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("replace %s: %w", target, err)
	}
	return nil
}

func (s *CSVStore) corrupt(line int, err error) error {
	return &types.StoreCorruptError{Path: s.path, Line: line, Err: err}
}

func formatRow(app types.JobApplication) []string {
	firstSeen := ""
	if !app.FirstSeen.IsZero() {
		firstSeen = app.FirstSeen.UTC().Format(time.RFC3339)
	}
	return []string{
		app.ID,
		app.Company,
		app.Title,
		string(app.Status),
		app.Date,
		app.Location,
		app.URL,
		app.JobID,
		app.Research,
		app.SourceID,
		firstSeen,
	}
}

func parseRow(record []string) (types.JobApplication, error) {
	app := types.JobApplication{
		ID:       record[0],
		Company:  record[1],
		Title:    record[2],
		Status:   types.Status(record[3]),
		Date:     record[4],
		Location: record[5],
		URL:      record[6],
		JobID:    record[7],
		Research: record[8],
		SourceID: record[9],
	}
	if record[10] != "" {
		t, err := time.Parse(time.RFC3339, record[10])
		if err != nil {
			return app, fmt.Errorf("first_seen: %w", err)
		}
		app.FirstSeen = t
	}
	if want := IdentityOf(app); app.ID != want {
		return app, fmt.Errorf("id %q does not match company/title/date (want %q)", app.ID, want)
	}
	return app, nil
}

func parseLegacyRow(record []string) (types.JobApplication, error) {
	app := types.JobApplication{
		Title:    record[0],
		Company:  record[1],
		Status:   types.Status(record[2]),
		Date:     record[3],
		Research: record[4],
	}
	app.ID = IdentityOf(app)
	return app, nil
}

func equalFields(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if strings.TrimSpace(a[i]) != b[i] {
			return false
		}
	}
	return true
}
