package ddns

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func noEnv(string) (string, bool) { return "", false }

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func writeKeyFile(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials")
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatal(err)
	}
	// WriteFile is subject to umask
	if err := os.Chmod(path, perm); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCredentialOrder(t *testing.T) {
	file := writeKeyFile(t, "from-file\n", 0o600)
	prompted := false
	prompt := func() (string, error) {
		prompted = true
		return "from-prompt", nil
	}

	cc := CredentialChain{
		Explicit:    "from-flag",
		Persisted:   "from-config",
		File:        file,
		Interactive: true,
		LookupEnv:   env(map[string]string{"DDNS_TOKEN": "from-env"}),
		Prompt:      prompt,
	}
	steps := []string{"from-flag", "from-env", "from-config", "from-file", "from-prompt"}
	for i, want := range steps {
		c, err := cc.Resolve()
		if err != nil {
			t.Fatalf("step %d: %s", i, err)
		}
		if c.Value != want {
			t.Fatalf("step %d: expected %q; got %q", i, want, c.Value)
		}
		switch i {
		case 0:
			cc.Explicit = ""
		case 1:
			cc.LookupEnv = noEnv
		case 2:
			cc.Persisted = ""
		case 3:
			cc.File = filepath.Join(t.TempDir(), "missing")
		}
	}
	if !prompted {
		t.Fatalf("Expected the prompt to be used last")
	}
}

func TestCredentialEnvPrecedence(t *testing.T) {
	c, err := CredentialChain{
		LookupEnv: env(map[string]string{"DDNS_API_KEY": "key_1", "DDNS_TOKEN": "tok"}),
	}.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if c.Value != "key_1" || c.Source != "DDNS_API_KEY" || !c.IsAPIKey() {
		t.Fatalf("Expected key_1 from DDNS_API_KEY; got %+v", c)
	}
}

func TestCredentialEnvBeatsConfig(t *testing.T) {
	c, err := CredentialChain{
		Persisted: "from_file",
		LookupEnv: env(map[string]string{"DDNS_TOKEN": "from_env"}),
	}.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if c.Value != "from_env" || c.Source != "DDNS_TOKEN" {
		t.Fatalf("Expected from_env from DDNS_TOKEN; got %+v", c)
	}

	c, err = CredentialChain{Persisted: "from_file", LookupEnv: noEnv}.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if c.Value != "from_file" || c.Source != "config" {
		t.Fatalf("Expected from_file from config; got %+v", c)
	}
}

func TestCredentialNonInteractiveNeverPrompts(t *testing.T) {
	_, err := CredentialChain{
		LookupEnv: noEnv,
		Prompt: func() (string, error) {
			t.Fatalf("prompted in non-interactive mode")
			return "", nil
		},
	}.Resolve()
	if !errors.Is(err, ErrAuthMissing) {
		t.Fatalf("Expected ErrAuthMissing; got %v", err)
	}
}

func TestCredentialFilePermissions(t *testing.T) {
	for _, perm := range []os.FileMode{0o600, 0o400} {
		path := writeKeyFile(t, "secret\nignored\n", perm)
		key, err := ReadCredentialFile(path)
		if err != nil {
			t.Fatalf("%s: %s", perm, err)
		}
		if key != "secret" {
			t.Fatalf("Expected first line; got %q", key)
		}
	}

	path := writeKeyFile(t, "secret", 0o644)
	if _, err := ReadCredentialFile(path); err == nil || !strings.Contains(err.Error(), "permissions") {
		t.Fatalf("Expected a permissions error; got %v", err)
	}

	// an unsafe file is reported rather than silently skipped
	_, err := CredentialChain{File: path, LookupEnv: noEnv}.Resolve()
	if !errors.Is(err, ErrAuthMissing) || !strings.Contains(err.Error(), "permissions") {
		t.Fatalf("Expected ErrAuthMissing mentioning permissions; got %v", err)
	}
}

func TestCredentialEmptyFile(t *testing.T) {
	if _, err := ReadCredentialFile(writeKeyFile(t, "\n", 0o600)); err == nil {
		t.Fatalf("Expected an error for an empty credentials file")
	}
}

func TestCredentialStringRedacts(t *testing.T) {
	c := Credential{Value: "key_supersecret", Source: "DDNS_API_KEY"}
	if strings.Contains(c.String(), "supersecret") {
		t.Fatalf("String leaked the secret: %s", c)
	}
}
