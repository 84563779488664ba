package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/YKarmar/ApplyTracker/internal/store"
	"github.com/YKarmar/ApplyTracker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execCommand 用临时数据目录执行子命令
func execCommand(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	return execWithConfig(t, "storage:\n  data_dir: "+dataDir+"\n", args...)
}

// execWithConfig 用给定的 YAML 配置执行子命令，相关环境变量全部清空
func execWithConfig(t *testing.T, yamlText string, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"DATA_DIR", "OPENAI_API_KEY", "EMAIL_ADDRESS", "EMAIL_PASSWORD", "SCHEDULE_AT", "PORT"} {
		t.Setenv(key, "")
	}

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(yamlText), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestDedupeCommand(t *testing.T) {
	dir := t.TempDir()
	legacy := "title,company,status,date,research\n" +
		"Backend Engineer,Acme,Submitted,2024-01-15,\n" +
		"backend engineer,ACME ,Submitted,2024-01-15,\n" +
		"SRE,Globex,Viewed,2024-01-14,Globex makes everything.\n"
	csvPath := filepath.Join(dir, "job_applications.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(legacy), 0o644))

	out, err := execCommand(t, dir, "dedupe")
	require.NoError(t, err)
	assert.Contains(t, out, "Kept 2 applications, removed 1 duplicates")
	assert.Contains(t, out, "Migrated legacy CSV header")

	b, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), strings.Join(store.Columns, ",")+"\n"))

	records, err := store.NewCSVStore(csvPath).LoadAll()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestDedupeCommand_NoStore(t *testing.T) {
	out, err := execCommand(t, t.TempDir(), "dedupe")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to do")
}

func TestStatsCommand(t *testing.T) {
	dir := t.TempDir()
	st := store.NewCSVStore(filepath.Join(dir, "job_applications.csv"))
	require.NoError(t, st.Persist([]types.JobApplication{
		{Company: "Acme", Title: "Backend Engineer", Status: types.StatusApplied, Date: "2024-01-15"},
		{Company: "Globex", Title: "SRE", Status: types.StatusViewed, Date: "2024-01-14", Research: "Globex makes everything."},
	}))

	out, err := execCommand(t, dir, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "总共 2 条申请记录")
	assert.Contains(t, out, "涉及公司数量: 2 家")
}

func TestBackfillCommand_RequiresAPIKey(t *testing.T) {
	_, err := execCommand(t, t.TempDir(), "backfill")
	var cfgErr *types.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "OPENAI_API_KEY", cfgErr.Key)
}

func TestRunCommand_ValidatesBeforeNetwork(t *testing.T) {
	_, err := execCommand(t, t.TempDir(), "run")
	var cfgErr *types.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestScheduleCommand_CorruptStoreFailsAtStartup(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{name: "unknown header", content: "garbage,header\n"},
		{name: "empty file", content: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			csvPath := filepath.Join(dir, "job_applications.csv")
			require.NoError(t, os.WriteFile(csvPath, []byte(tc.content), 0o644))

			cfg := "account:\n  address: me@gmail.com\n  password: secret\n" +
				"llm:\n  api_key: sk-test\n" +
				"storage:\n  data_dir: " + dir + "\n"
			_, err := execWithConfig(t, cfg, "schedule")

			var corrupt *types.StoreCorruptError
			require.ErrorAs(t, err, &corrupt)
			assert.Equal(t, csvPath, corrupt.Path)
		})
	}
}
