package operations

import (
	"context"
	"fmt"

	"github.com/kebairia/restic-health/internal/config"
	"github.com/kebairia/restic-health/internal/logger"
	"github.com/kebairia/restic-health/internal/restic"
	"github.com/kebairia/restic-health/internal/state"
	"github.com/kebairia/restic-health/internal/vault"
)

// Backend is the capability surface this tool needs from the backup
// engine. restic.Client is the one real implementation; tests substitute
// scripted fakes.
type Backend interface {
	// Snapshots lists all snapshots, returning the engine's raw JSON
	// output verbatim alongside the decoded, oldest-to-newest list.
	Snapshots(ctx context.Context) ([]byte, []restic.Snapshot, error)
	// Stats computes repository statistics for the given mode, optionally
	// scoped to one snapshot.
	Stats(ctx context.Context, mode, snapshot string) ([]byte, error)
	// Diff returns the summary of comparing the given snapshots.
	Diff(ctx context.Context, ids ...string) ([]byte, error)
	// Check verifies repository integrity, re-reading all object content
	// when readData is set.
	Check(ctx context.Context, readData bool) error
}

// BackendFactory builds a Backend for one location.
type BackendFactory func(ctx context.Context, loc config.Location) (Backend, error)

// Operator runs audit operations over every configured location,
// strictly sequentially. The state directory is exclusively owned for
// the duration of a run.
type Operator struct {
	ctx         context.Context
	cfg         config.Config
	store       *state.Store
	log         logger.Logger
	newBackend  BackendFactory
	vaultClient *vault.Client
}

// NewOperator loads and validates the YAML config at configPath and
// prepares the state store rooted at its state_dir.
func NewOperator(configPath string) (*Operator, error) {
	var cfg config.Config
	if err := cfg.Load(configPath); err != nil {
		return nil, err
	}

	op := &Operator{
		ctx:   context.Background(),
		cfg:   cfg,
		store: state.NewStore(cfg.StateDir),
		log:   logger.Global(),
	}
	op.newBackend = op.resticBackend
	return op, nil
}

// resticBackend is the default BackendFactory, building a restic client
// with the location's repository and password source.
func (op *Operator) resticBackend(ctx context.Context, loc config.Location) (Backend, error) {
	opts := []restic.Option{
		restic.WithCacheDir(loc.CacheDir),
		restic.WithBinary(op.cfg.Defaults.Binary),
		restic.WithTimeout(op.cfg.Defaults.Timeout),
	}

	if loc.VaultPath != "" {
		vc, err := op.connectVault(ctx)
		if err != nil {
			return nil, err
		}
		password, err := vc.RepositoryPassword(ctx, loc.VaultPath)
		if err != nil {
			return nil, fmt.Errorf("repository password for %s: %w", loc.Name(), err)
		}
		opts = append(opts, restic.WithPassword(password))
	} else {
		opts = append(opts, restic.WithPasswordFile(loc.PasswordFile))
	}

	return restic.NewClient(loc.Repository, opts...), nil
}

// connectVault lazily initializes the shared Vault client; locations using
// password files never trigger a Vault connection.
func (op *Operator) connectVault(ctx context.Context) (*vault.Client, error) {
	if op.vaultClient != nil {
		return op.vaultClient, nil
	}
	vc, err := vault.NewClient(ctx,
		vault.WithAddress(op.cfg.Vault.Address),
		vault.WithAppRole(op.cfg.Vault.RoleID, op.cfg.Vault.ApproleName),
	)
	if err != nil {
		return nil, fmt.Errorf("vault client init: %w", err)
	}
	op.vaultClient = vc
	return vc, nil
}
