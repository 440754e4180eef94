package core

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/RecoveryAshes/CSPcrawl/internal/models"
)

func writeHeadersFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "headers.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHeaderManager_Priority(t *testing.T) {
	path := writeHeadersFile(t, "headers:\n  User-Agent: FromConfig/1.0\n  X-Team: red\n")

	hm, err := NewHeaderManager(path, []string{"X-Team: blue", "Authorization: Bearer secret-token"})
	if err != nil {
		t.Fatalf("NewHeaderManager() error = %v", err)
	}

	headers, err := hm.GetHeaders()
	if err != nil {
		t.Fatalf("GetHeaders() error = %v", err)
	}

	tests := []struct {
		name string
		want string
	}{
		{"User-Agent", "FromConfig/1.0"},
		{"X-Team", "blue"},
		{"Accept-Encoding", "gzip, deflate, br"},
		{"Authorization", "Bearer secret-token"},
	}
	for _, tt := range tests {
		if got := headers.Get(tt.name); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, got, tt.want)
		}
	}

	// 返回副本, 修改不影响后续调用
	headers.Set("X-Team", "green")
	again, _ := hm.GetHeaders()
	if again.Get("X-Team") != "blue" {
		t.Error("GetHeaders() 应返回副本")
	}

	safe := hm.GetSafeHeaders()
	if safe["Authorization"] == "Bearer secret-token" {
		t.Error("敏感头部应被脱敏")
	}
}

func TestHeaderManager_Defaults(t *testing.T) {
	wd, _ := os.Getwd()
	t.Cleanup(func() { os.Chdir(wd) })
	os.Chdir(t.TempDir())

	hm, err := NewHeaderManager("", nil)
	if err != nil {
		t.Fatalf("NewHeaderManager() error = %v", err)
	}
	headers, err := hm.GetHeaders()
	if err != nil {
		t.Fatalf("GetHeaders() error = %v", err)
	}
	if headers.Get("User-Agent") != DefaultUserAgent {
		t.Errorf("User-Agent = %q", headers.Get("User-Agent"))
	}
}

func TestHeaderManager_Invalid(t *testing.T) {
	if _, err := NewHeaderManager("", []string{"missing-colon"}); err == nil {
		t.Error("格式错误的命令行头部应返回错误")
	}

	hm, err := NewHeaderManager(writeHeadersFile(t, "headers: {}\n"), []string{"Host: evil.com"})
	if err != nil {
		t.Fatalf("NewHeaderManager() error = %v", err)
	}
	var vErr *models.ValidationError
	if err := hm.Validate(); !errors.As(err, &vErr) {
		t.Errorf("Host 头部应验证失败, 得到 %v", err)
	}
	if _, err := hm.GetHeaders(); err == nil {
		t.Error("验证失败后 GetHeaders() 应返回错误")
	}

	hm, _ = NewHeaderManager(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	var cfgErr *models.ConfigError
	if err := hm.Validate(); !errors.As(err, &cfgErr) {
		t.Errorf("缺失的配置文件应返回 ConfigError, 得到 %v", err)
	}
}

func TestHeaderManager_Concurrent(t *testing.T) {
	hm, _ := NewHeaderManager(writeHeadersFile(t, "headers:\n  X-A: b\n"), nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if h, err := hm.GetHeaders(); err != nil || h.Get("X-A") != "b" {
				t.Errorf("GetHeaders() = %v, %v", h, err)
			}
		}()
	}
	wg.Wait()
}
