package credentials

import (
	"os"
	"path/filepath"
	"testing"
)

func writePasswd(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultPasswdFile)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write passwd file: %v", err)
	}
	return path
}

func TestLoadFromPasswdFile(t *testing.T) {
	var c Credentials
	if err := c.LoadFromPasswdFile(writePasswd(t, "TEST_ACCESS_KEY:TEST_SECRET_KEY")); err != nil {
		t.Fatalf("load credentials: %v", err)
	}
	if c.AccessKeyID != "TEST_ACCESS_KEY" {
		t.Errorf("AccessKeyID = %q, want TEST_ACCESS_KEY", c.AccessKeyID)
	}
	if c.SecretAccessKey != "TEST_SECRET_KEY" {
		t.Errorf("SecretAccessKey = %q, want TEST_SECRET_KEY", c.SecretAccessKey)
	}
	if !c.IsValid() {
		t.Error("credentials should be valid")
	}
}

func TestLoadFromPasswdFileWithToken(t *testing.T) {
	var c Credentials
	if err := c.LoadFromPasswdFile(writePasswd(t, "AK:SK:TOKEN")); err != nil {
		t.Fatalf("load credentials: %v", err)
	}
	if c.SessionToken != "TOKEN" {
		t.Errorf("SessionToken = %q, want TOKEN", c.SessionToken)
	}
}

func TestLoadFromPasswdFileInvalidFormat(t *testing.T) {
	var c Credentials
	if err := c.LoadFromPasswdFile(writePasswd(t, "NO_SEPARATOR")); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestLoadFromPasswdFileNotFound(t *testing.T) {
	var c Credentials
	if err := c.LoadFromPasswdFile("/nonexistent/file"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "ENV_AK")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "ENV_SK")
	t.Setenv("AWS_SESSION_TOKEN", "ENV_TOKEN")

	var c Credentials
	if err := c.LoadFromEnvironment(); err != nil {
		t.Fatalf("load from environment: %v", err)
	}
	if c.AccessKeyID != "ENV_AK" || c.SecretAccessKey != "ENV_SK" || c.SessionToken != "ENV_TOKEN" {
		t.Errorf("unexpected credentials: %+v", c)
	}
}

func TestLoadFromEnvironmentMissing(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")

	var c Credentials
	if err := c.LoadFromEnvironment(); err == nil {
		t.Error("expected error when environment is empty")
	}
}

func TestResolveExplicitPath(t *testing.T) {
	c, ok, err := Resolve(writePasswd(t, "AK:SK"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !ok || c.AccessKeyID != "AK" {
		t.Errorf("resolve ok=%v credentials=%+v", ok, c)
	}
}

func TestResolveEnvFile(t *testing.T) {
	t.Setenv("OBJSTREAM_PASSWD_FILE", writePasswd(t, "AK2:SK2"))
	c, ok, err := Resolve("")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !ok || c.AccessKeyID != "AK2" {
		t.Errorf("resolve ok=%v credentials=%+v", ok, c)
	}
}

func TestResolveNothingFound(t *testing.T) {
	t.Setenv("OBJSTREAM_PASSWD_FILE", "")
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	t.Setenv("HOME", t.TempDir())

	_, ok, err := Resolve("")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ok {
		t.Error("expected no credentials to be found")
	}
}

func TestResolveBadExplicitPath(t *testing.T) {
	if _, _, err := Resolve("/nonexistent/passwd"); err == nil {
		t.Error("expected error for explicit nonexistent path")
	}
}
