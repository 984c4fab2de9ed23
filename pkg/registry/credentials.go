package registry

import (
	"fmt"
	"os"
)

// Credentials holds the registry authentication pair.
// Values are only ever read from the execution environment and must never
// appear in logs or serialized output.
type Credentials struct {
	Username string // The registry account or token name
	Password string // The registry account password or token value
}

// String implements fmt.Stringer to keep the secret out of accidental log output.
func (c Credentials) String() string {
	return fmt.Sprintf("%s:*******", c.Username)
}

// ResolveCredentials reads the registry credentials from the environment
// variables with the given names. Both variables must be set and non-empty,
// otherwise an error naming the missing variable (never its value) is returned.
func ResolveCredentials(usernameEnv, passwordEnv string) (creds Credentials, err error) {
	creds.Username = os.Getenv(usernameEnv)
	if creds.Username == "" {
		return Credentials{}, fmt.Errorf("registry username is not defined, %s environment variable is empty", usernameEnv)
	}

	creds.Password = os.Getenv(passwordEnv)
	if creds.Password == "" {
		return Credentials{}, fmt.Errorf("registry password is not defined, %s environment variable is empty", passwordEnv)
	}

	return
}
