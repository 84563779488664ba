package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Meta 和 CSV 放在一起的运行元数据
type Meta struct {
	LastRun     time.Time `yaml:"last_run"`
	LastRunID   string    `yaml:"last_run_id,omitempty"`
	RecordCount int       `yaml:"record_count"`
}

func (s *CSVStore) metaPath() string {
	return s.path + ".meta.yaml"
}

// Meta 读取元数据，文件不存在时返回零值
func (s *CSVStore) Meta() (Meta, error) {
	var meta Meta
	b, err := os.ReadFile(s.metaPath())
	if errors.Is(err, os.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return meta, fmt.Errorf("read store meta: %w", err)
	}
	if err := yaml.Unmarshal(b, &meta); err != nil {
		return meta, fmt.Errorf("parse store meta: %w", err)
	}
	return meta, nil
}

func (s *CSVStore) SaveMeta(meta Meta) error {
	return s.writeAtomic(s.metaPath(), func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("encode store meta: %w", err)
		}
		return enc.Close()
	})
}
