// Package account keeps the signed-in user: the saved credentials file,
// login and daily check-in, and the set of liked tracks.
package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/llehouerou/cloudwaves/internal/catalog"
)

const (
	appName         = "cloudwaves"
	accountFileName = "account.json"
)

// File stores credentials on disk for automatic sign-in.
type File struct {
	path string
}

// DefaultFile returns the account file under the XDG config directory:
// ~/.config/cloudwaves/account.json
func DefaultFile() (*File, error) {
	path, err := xdg.ConfigFile(filepath.Join(appName, accountFileName))
	if err != nil {
		return nil, fmt.Errorf("resolve account file: %w", err)
	}
	return &File{path: path}, nil
}

// NewFile creates a File with a custom path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Load reads the saved credentials.
// Returns (nil, nil) if the file does not exist.
func (f *File) Load() (*catalog.Credentials, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil //nolint:nilnil // no file means not signed in
		}
		return nil, fmt.Errorf("read account file: %w", err)
	}

	var creds catalog.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse account file: %w", err)
	}
	if creds.Account == "" {
		return nil, errors.New("parse account file: no account")
	}
	return &creds, nil
}

// Save writes the credentials, creating the parent directory if needed.
func (f *File) Save(creds catalog.Credentials) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write account file: %w", err)
	}
	return nil
}

// Delete removes the file. A missing file is not an error.
func (f *File) Delete() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove account file: %w", err)
	}
	return nil
}
