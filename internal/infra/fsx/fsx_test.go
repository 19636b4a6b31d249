package fsx

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteJSON_SuccessAndNoTempLeft(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "reports", "alice_bob.json")

	if err := WriteJSON(out, map[string]any{"score": 80.0}); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	var got map[string]float64
	if err := json.Unmarshal(b, &got); err != nil || got["score"] != 80.0 {
		t.Fatalf("内容不一致：%q err=%v", string(b), err)
	}
	if !strings.HasSuffix(string(b), "\n") {
		t.Fatalf("期望以换行结尾")
	}

	entries, err := os.ReadDir(filepath.Dir(out))
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".alice_bob.json.tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}

func TestWriteFileAtomic_Replaces(t *testing.T) {
	out := filepath.Join(t.TempDir(), "a.json")
	if err := WriteFileAtomic(out, []byte("old")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := WriteFileAtomic(out, []byte("new")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if b, _ := os.ReadFile(out); string(b) != "new" {
		t.Fatalf("应覆盖旧内容，实际 %q", string(b))
	}
}

func TestWriteFileAtomic_RenameFail_CleanupTemp(t *testing.T) {
	dir := t.TempDir()

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return os.ErrPermission
	}
	defer func() { renameFunc = old }()

	err := WriteFileAtomic(filepath.Join(dir, "a.txt"), []byte("hello"))
	if err == nil {
		t.Fatalf("期望失败，但得到 nil")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".a.txt.tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
		if e.Name() == "a.txt" {
			t.Fatalf("不应写出最终文件：%q", e.Name())
		}
	}
}

func TestWriteFileAtomic_TargetIsDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "a.json"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	err := WriteFileAtomic(filepath.Join(dir, "a.json"), []byte("{}"))
	if !IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%T %v", err, err)
	}
	if err := WriteFileAtomic("  ", nil); err == nil {
		t.Fatalf("空路径应报错")
	}
}
