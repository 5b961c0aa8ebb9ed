package ddns

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/term"
)

// APIKeyPrefix marks credentials that are API keys rather than bearer tokens.
const APIKeyPrefix = "key_"

// Credential authenticates update requests.
type Credential struct {
	Value  string
	Source string // where the credential was found, for logging
}

// IsAPIKey reports whether the credential is sent as an API key header instead of a bearer token.
func (c Credential) IsAPIKey() bool {
	return strings.HasPrefix(c.Value, APIKeyPrefix)
}

// String never reveals the secret.
func (c Credential) String() string {
	if c.Value == "" {
		return "<none>"
	}
	return fmt.Sprintf("<credential from %s>", c.Source)
}

// Environment variables consulted for a credential, in order.
var CredentialEnv = []string{"DDNS_API_KEY", "DDNS_TOKEN"}

// CredentialChain finds a credential from, in order:
// an explicit value, the environment, a persisted value (configuration or credentials file),
// and finally a terminal prompt.
//
// The prompt is only used when Interactive is set,
// so a daemon can never block waiting for input.
type CredentialChain struct {
	Explicit    string // command line argument
	Persisted   string // value saved in the configuration file
	File        string
	Interactive bool

	// defaults to os.LookupEnv
	LookupEnv func(string) (string, bool)
	// defaults to reading a password from stdin
	Prompt func() (string, error)
}

// Resolve returns the first credential found.
// It fails with ErrAuthMissing when nothing is found and prompting is not allowed.
func (cc CredentialChain) Resolve() (Credential, error) {
	if v := strings.TrimSpace(cc.Explicit); v != "" {
		return Credential{Value: v, Source: "argument"}, nil
	}

	lookup := cc.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, name := range CredentialEnv {
		if v, found := lookup(name); found && strings.TrimSpace(v) != "" {
			return Credential{Value: strings.TrimSpace(v), Source: name}, nil
		}
	}

	if v := strings.TrimSpace(cc.Persisted); v != "" {
		return Credential{Value: v, Source: "config"}, nil
	}

	var fileErr error
	if cc.File != "" {
		key, err := ReadCredentialFile(cc.File)
		switch {
		case err == nil:
			return Credential{Value: key, Source: cc.File}, nil
		case errors.Is(err, fs.ErrNotExist):
		default:
			fileErr = err
		}
	}

	if !cc.Interactive {
		if fileErr != nil {
			return Credential{}, fmt.Errorf("%w: %w", ErrAuthMissing, fileErr)
		}
		return Credential{}, ErrAuthMissing
	}

	prompt := cc.Prompt
	if prompt == nil {
		prompt = promptPassword
	}
	v, err := prompt()
	if err != nil {
		return Credential{}, fmt.Errorf("%w: prompt failed: %w", ErrAuthMissing, err)
	}
	if v = strings.TrimSpace(v); v == "" {
		return Credential{}, ErrAuthMissing
	}
	return Credential{Value: v, Source: "prompt"}, nil
}

// ReadCredentialFile reads the first line of path.
// The file must not be readable by group or others.
func ReadCredentialFile(path string) (string, error) {
	if err := verifyPermissions(path); err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error reading credentials: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("error reading line: %w", err)
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return "", fmt.Errorf("credentials file %q is empty", path)
	}
	return key, nil
}

func verifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking credentials file permissions: %w", err)
	}

	perms := info.Mode().Perm()
	// Error messages will state that we want 0600,
	// but we'll also accept 0400 which is even more restricted.
	// The file might be provided by some secrets managing software as readonly.
	if perms != 0o600 && perms != 0o400 {
		return fmt.Errorf("invalid permissions for \"%s\": expected file permissions \"-rw-------\"; found \"%s\"", path, fs.FileMode(perms))
	}
	return nil
}

func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "Enter API key or token: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("error reading from stdin: %w", err)
	}
	return string(b), nil
}
