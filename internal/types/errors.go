package types

import "fmt"

// FetchError 抓取 LinkedIn 申请记录失败，本次运行中止
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch applications: %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// EnrichmentError 公司调研失败，不影响本次运行
type EnrichmentError struct {
	Company string
	Err     error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("research %q: %v", e.Company, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }

// StoreCorruptError CSV 文件存在但无法按约定格式解析
type StoreCorruptError struct {
	Path string
	Line int
	Err  error
}

func (e *StoreCorruptError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("store %s corrupt at line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("store %s corrupt: %v", e.Path, e.Err)
}

func (e *StoreCorruptError) Unwrap() error { return e.Err }

// DeliveryError 汇总邮件发送失败
type DeliveryError struct {
	To  string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver summary to %s: %v", e.To, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// ConfigError 必填配置缺失或非法
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}
