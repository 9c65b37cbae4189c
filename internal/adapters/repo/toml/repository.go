package toml

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bnema/atm-server/internal/domain"
	"github.com/bnema/atm-server/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	CredentialsPathKey = "credentials.path"

	credentialsFileMode   = 0o600
	credentialsDirMode    = 0o700
	credentialsConfigDir  = ".atmd"
	credentialsConfigFile = "credentials.toml"
	tempFilePattern       = ".credentials-*.toml.tmp"
)

// Repository stores user credential hashes in a TOML file.
type Repository struct {
	path string
	mu   *sync.RWMutex
	now  func() time.Time
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.CredentialRepository = (*Repository)(nil)

// NewRepository reads the file location from credentials.path, falling back
// to ~/.atmd/credentials.toml.
func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	path := cfg.GetString(CredentialsPathKey)
	if path == "" {
		defaultPath, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	path, err := normalizePath(path)
	if err != nil {
		return nil, err
	}

	return &Repository{path: path, mu: lockForPath(path), now: time.Now}, nil
}

func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(homeDir, credentialsConfigDir, credentialsConfigFile), nil
}

func (r *Repository) Path() string {
	return r.path
}

// Exists reports whether the credentials file has been written.
func (r *Repository) Exists() (bool, error) {
	_, err := os.Stat(r.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat credentials file: %w", err)
}

func (r *Repository) Save(ctx context.Context, userID string, hash []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if userID == "" || len(hash) == 0 {
		return errors.New("user id and credential hash are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	encoded := userSchema{
		ID:        userID,
		Hash:      hex.EncodeToString(hash),
		UpdatedAt: r.now().UTC().Format(time.RFC3339),
	}
	updated := false
	for i := range file.Users {
		if file.Users[i].ID == userID {
			file.Users[i] = encoded
			updated = true
			break
		}
	}
	if !updated {
		file.Users = append(file.Users, encoded)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

func (r *Repository) GetHash(ctx context.Context, userID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	for _, entry := range file.Users {
		if entry.ID != userID {
			continue
		}
		hash, err := hex.DecodeString(entry.Hash)
		if err != nil {
			return nil, fmt.Errorf("decode credential hash for %q: %w", userID, err)
		}
		return hash, nil
	}

	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownUser, userID)
}

func (r *Repository) Delete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	kept := file.Users[:0]
	for _, entry := range file.Users {
		if entry.ID != userID {
			kept = append(kept, entry)
		}
	}
	if len(kept) == len(file.Users) {
		return fmt.Errorf("%w: %q", domain.ErrUnknownUser, userID)
	}
	file.Users = kept

	return r.writeSchema(file)
}

// Users lists the stored user ids in order.
func (r *Repository) Users(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	users := make([]string, 0, len(file.Users))
	for _, entry := range file.Users {
		users = append(users, entry.ID)
	}
	sort.Strings(users)

	return users, nil
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			file := fileSchema{}
			file.applyDefaults()
			return file, nil
		}
		return fileSchema{}, fmt.Errorf("read credentials file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode credentials file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve credentials path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

// writeSchema replaces the file atomically through a temp file in the same
// directory.
func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.path), credentialsDirMode); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode credentials file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp credentials file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp credentials file: %w", err)
	}

	if err := tempFile.Chmod(credentialsFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp credentials file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp credentials file: %w", err)
	}

	if err := os.Rename(tempName, r.path); err != nil {
		return fmt.Errorf("replace credentials file: %w", err)
	}
	cleanup = false

	return nil
}
