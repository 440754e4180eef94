package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadURLsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := "# 注释\nhttps://example.com\n\nnot-a-url\nhttp://other.com:8080/start\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}

	urls, err := ReadURLsFromFile(path)
	if err != nil {
		t.Fatalf("ReadURLsFromFile() error = %v", err)
	}
	if len(urls) != 2 || urls[0] != "https://example.com" || urls[1] != "http://other.com:8080/start" {
		t.Errorf("urls = %v", urls)
	}
}

func TestReadURLsFromFile_Errors(t *testing.T) {
	if _, err := ReadURLsFromFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("期望文件不存在时返回错误")
	}

	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, []byte("# only comments\n"), 0644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}
	if _, err := ReadURLsFromFile(path); err == nil {
		t.Error("期望没有有效URL时返回错误")
	}
}
