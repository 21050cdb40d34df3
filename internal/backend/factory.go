package backend

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"yesan/internal/config"
	"yesan/internal/core"
	"yesan/internal/csvtable"
	applog "yesan/internal/log"
	"yesan/internal/sheets"
	"yesan/internal/sheets/appscript"
	"yesan/internal/sheets/export"
	gsheet "yesan/internal/sheets/google"
	"yesan/internal/sheets/memory"
	"yesan/internal/storage"
)

// Factory builds adapters from config. The Google client is created at most
// once and shared by the directory source and the mirror.
type Factory struct {
	logger *applog.Logger

	once      sync.Once
	google    *gsheet.Client
	googleErr error
}

func NewFactory(logger *applog.Logger) *Factory {
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	return &Factory{logger: logger.WithComponent(applog.ComponentBackend)}
}

// Build creates every component. On failure anything already opened is
// closed again.
func (f *Factory) Build(ctx context.Context, cfg *config.Config) (*Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app config is nil")
	}
	b := &Backend{}

	budget, err := f.Budget(cfg)
	if err != nil {
		return nil, err
	}
	b.Budget = budget

	repo, err := f.Repository(cfg)
	if err != nil {
		return nil, err
	}
	b.Repository = repo
	b.cleanups = append(b.cleanups, repo.Close)

	if b.Directory, err = f.Directory(ctx, cfg); err != nil {
		b.Close()
		return nil, err
	}
	if b.Mirror, err = f.Mirror(ctx, cfg); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// Budget loads BUDGET_FILE, or returns the built-in table.
func (f *Factory) Budget(cfg *config.Config) (core.Budget, error) {
	if cfg.BudgetFile == "" {
		return core.DefaultBudget(), nil
	}
	b, err := core.LoadBudget(cfg.BudgetFile)
	if err != nil {
		return core.Budget{}, fmt.Errorf("load budget: %w", err)
	}
	f.logger.Info("Loaded budget table", "path", cfg.BudgetFile, "year", b.Year, "categories", len(b.Items))
	return b, nil
}

func (f *Factory) Repository(cfg *config.Config) (storage.Repository, error) {
	switch cfg.DataBackend {
	case config.BackendSQLite:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return repo, nil
	case config.BackendMemory:
		f.logger.Info("Initialized memory backend")
		return storage.NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported data backend: %s", cfg.DataBackend)
	}
}

func (f *Factory) Directory(ctx context.Context, cfg *config.Config) (DirectorySources, error) {
	switch cfg.DirectorySource {
	case config.SourceExport:
		hc := export.NewHTTPClient(cfg.HTTPTimeout)
		data := export.New(cfg.DirectorySpreadsheetID, cfg.DirectoryDataGID, export.WithHTTPClient(hc))
		secret := export.New(cfg.DirectorySpreadsheetID, cfg.DirectoryPasswordGID, export.WithHTTPClient(hc))
		return DirectorySources{Data: data, Title: data, Secret: secret}, nil

	case config.SourceSheets:
		cli, err := f.googleClient(ctx, cfg)
		if err != nil {
			return DirectorySources{}, err
		}
		data := cli.TableSource(cfg.DirectorySpreadsheetID, cfg.DirectoryDataRange)
		secret := cli.TableSource(cfg.DirectorySpreadsheetID, cfg.DirectoryPasswordRange)
		return DirectorySources{Data: data, Title: data, Secret: secret}, nil

	case config.SourceMemory:
		table := csvtable.Table{}
		if cfg.DirectoryCSVFile != "" {
			fh, err := os.Open(cfg.DirectoryCSVFile)
			if err != nil {
				return DirectorySources{}, fmt.Errorf("open directory csv: %w", err)
			}
			defer fh.Close()
			if table, err = csvtable.Parse(fh); err != nil {
				return DirectorySources{}, fmt.Errorf("parse directory csv: %w", err)
			}
		}
		data := memory.NewTable(table, "")
		secret := memory.NewTable(csvtable.Table{Header: []string{cfg.DirectoryPassword}}, "")
		f.logger.Info("Using in-memory directory", "rows", len(table.Rows))
		return DirectorySources{Data: data, Title: data, Secret: secret}, nil

	default:
		return DirectorySources{}, fmt.Errorf("unsupported directory source: %s", cfg.DirectorySource)
	}
}

// Mirror returns the configured remote store, or nil for MIRROR_BACKEND=none.
func (f *Factory) Mirror(ctx context.Context, cfg *config.Config) (sheets.MirrorStore, error) {
	switch cfg.MirrorBackend {
	case config.MirrorNone, "":
		return nil, nil
	case config.MirrorAppScript:
		cli, err := appscript.NewFromConfig(cfg.AppScriptURL, cfg.AppScriptToken, cfg.HTTPTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Apps Script mirror: %w", err)
		}
		f.logger.Info("Initialized Apps Script mirror")
		return cli, nil
	case config.MirrorSheets:
		cli, err := f.googleClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		f.logger.Info("Initialized Google Sheets mirror", "sheet", cfg.MirrorSheetName)
		return cli.Mirror(cfg.MirrorSpreadsheetID, cfg.MirrorSheetName, cfg.DriveFolderID), nil
	case config.MirrorMemory:
		f.logger.Warn("Using in-memory mirror, remote data is lost on restart")
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported mirror backend: %s", cfg.MirrorBackend)
	}
}

func (f *Factory) googleClient(ctx context.Context, cfg *config.Config) (*gsheet.Client, error) {
	f.once.Do(func() {
		creds, err := credentials(ctx, cfg)
		if err != nil {
			f.googleErr = err
			return
		}
		f.google, f.googleErr = gsheet.NewClient(ctx, creds)
		if f.googleErr == nil {
			f.logger.Info("Initialized Google API client")
		}
	})
	if f.googleErr != nil {
		return nil, fmt.Errorf("failed to initialize Google client: %w", f.googleErr)
	}
	return f.google, nil
}

// credentials prefers the configured values and falls back to the
// service account environment variables.
func credentials(ctx context.Context, cfg *config.Config) ([]byte, error) {
	if js := strings.TrimSpace(cfg.GoogleCredentialsJSON); js != "" {
		return []byte(js), nil
	}
	if cfg.GoogleCredentialsFile != "" {
		data, err := os.ReadFile(cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	}
	return gsheet.CredentialsFromEnv(ctx)
}
