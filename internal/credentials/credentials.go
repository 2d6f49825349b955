// Package credentials resolves static S3 credentials from a passwd file or
// the environment. When neither source yields a key pair, the S3 backend
// falls back to the AWS SDK default chain (shared config, IMDS, SSO).
package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultPasswdFile is the passwd file probed in the user's home directory
// when no explicit path is given.
const DefaultPasswdFile = ".passwd-objstream"

// Credentials holds a static S3 key pair.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// IsValid reports whether both the access key and the secret are set.
func (c *Credentials) IsValid() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// LoadFromPasswdFile loads credentials from a passwd file in the format
// ACCESS_KEY:SECRET_KEY with an optional :SESSION_TOKEN third field.
func (c *Credentials) LoadFromPasswdFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read passwd file: %w", err)
	}

	parts := strings.Split(strings.TrimSpace(string(data)), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return fmt.Errorf("invalid passwd file format, expected ACCESS_KEY:SECRET_KEY[:SESSION_TOKEN]")
	}

	c.AccessKeyID = strings.TrimSpace(parts[0])
	c.SecretAccessKey = strings.TrimSpace(parts[1])
	if len(parts) == 3 {
		c.SessionToken = strings.TrimSpace(parts[2])
	}
	return nil
}

// LoadFromEnvironment loads credentials from the standard AWS environment
// variables.
func (c *Credentials) LoadFromEnvironment() error {
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if accessKey == "" || secretKey == "" {
		return fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
	}
	c.AccessKeyID = accessKey
	c.SecretAccessKey = secretKey
	c.SessionToken = os.Getenv("AWS_SESSION_TOKEN")
	return nil
}

// Resolve walks the credential sources in order: the explicit passwd path,
// the OBJSTREAM_PASSWD_FILE variable, the default passwd file in the user's
// home directory, then the environment. It returns nil with ok=false when
// no source yields a key pair, which is not an error: the SDK default chain
// takes over.
func Resolve(passwdPath string) (*Credentials, bool, error) {
	c := &Credentials{}

	if passwdPath != "" {
		if err := c.LoadFromPasswdFile(passwdPath); err != nil {
			return nil, false, err
		}
		return c, true, nil
	}

	if path := os.Getenv("OBJSTREAM_PASSWD_FILE"); path != "" {
		if err := c.LoadFromPasswdFile(path); err != nil {
			return nil, false, err
		}
		return c, true, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		err := c.LoadFromPasswdFile(filepath.Join(home, DefaultPasswdFile))
		switch {
		case err == nil:
			return c, true, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, false, err
		}
	}

	if err := c.LoadFromEnvironment(); err == nil {
		return c, true, nil
	}
	return nil, false, nil
}
