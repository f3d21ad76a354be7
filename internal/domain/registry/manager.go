package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/modhost/internal/domain/module"
	"github.com/GriffinCanCode/modhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modhost/internal/providers/http/client"
	"github.com/GriffinCanCode/modhost/internal/shared/id"
	"github.com/GriffinCanCode/modhost/internal/shared/utils"
	"github.com/bytedance/sonic"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// Downloader fetches a remote document and requires a 2xx status
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Option configures a Manager
type Option func(*Manager)

// WithMetrics records registry operations
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithHasher overrides the checksum algorithm
func WithHasher(hasher *utils.Hasher) Option {
	return func(m *Manager) { m.hasher = hasher }
}

// Manager is the single authority over installed module records
type Manager struct {
	storage    *Storage
	downloader Downloader
	logger     *zap.Logger
	metrics    *monitoring.Metrics
	hasher     *utils.Hasher
	sanitizer  *bluemonday.Policy
	observers  observers

	mu       sync.Mutex // guards records, pending, inflight and catalog writes
	records  []module.Record
	pending  map[string]struct{} // catalog URLs being registered
	inflight map[string]struct{} // script filenames written ahead of their record

	background sync.WaitGroup
}

// NewManager creates a registry manager over storage
func NewManager(storage *Storage, downloader Downloader, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		storage:    storage,
		downloader: downloader,
		logger:     logger,
		hasher:     utils.DefaultHasher(),
		sanitizer:  bluemonday.StrictPolicy(),
		pending:    make(map[string]struct{}),
		inflight:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize ensures the catalog exists, loads it, and revalidates every
// record in the background. An undecodable catalog is moved aside and the
// registry starts empty.
func (m *Manager) Initialize(ctx context.Context) error {
	created, err := m.storage.EnsureCatalog()
	if err != nil {
		return err
	}
	if created {
		m.logger.Info("Created empty module catalog", zap.String("path", m.storage.CatalogPath()))
	}

	records, err := m.storage.ReadCatalog()
	if errors.Is(err, module.ErrDecode) {
		m.logger.Error("Module catalog is corrupt, starting empty", zap.Error(err))
		if moved, qerr := m.storage.QuarantineCatalog(); qerr == nil {
			m.logger.Warn("Moved corrupt catalog aside", zap.String("path", moved))
		}
		records = nil
		if werr := m.storage.WriteCatalog(nil); werr != nil {
			return werr
		}
	} else if err != nil {
		return err
	}

	m.mu.Lock()
	m.records = records
	m.mu.Unlock()
	m.updateGauge()

	m.logger.Info("Module catalog loaded", zap.Int("modules", len(records)))

	for _, rec := range records {
		rec := rec
		m.Revalidate(ctx, rec.ID, func(err error) {
			if err != nil {
				m.logger.Warn("Module revalidation failed",
					zap.String("module", rec.Descriptor.Name),
					zap.String("id", rec.ID.String()),
					zap.Error(err))
			}
		})
	}
	return nil
}

// Wait blocks until background revalidations finish
func (m *Manager) Wait() {
	m.background.Wait()
}

// Register downloads the descriptor's script, caches it and appends a new
// record. At most one registration per catalog URL can be in flight.
func (m *Manager) Register(ctx context.Context, catalogURL string, desc module.Descriptor) (module.Record, error) {
	rec, err := m.register(ctx, catalogURL, desc)
	m.record("register", err)
	return rec, err
}

func (m *Manager) register(ctx context.Context, catalogURL string, desc module.Descriptor) (module.Record, error) {
	if _, err := utils.ValidateRemoteURL(catalogURL); err != nil {
		return module.Record{}, fmt.Errorf("%w: %v", module.ErrInvalidCatalogURL, err)
	}
	if err := utils.ValidateName(desc.Name); err != nil {
		return module.Record{}, fmt.Errorf("%w: %v", module.ErrInvalidName, err)
	}
	if strings.TrimSpace(desc.ScriptURL) == "" {
		return module.Record{}, module.ErrMissingScriptPath
	}
	if _, err := utils.ValidateRemoteURL(desc.ScriptURL); err != nil {
		return module.Record{}, fmt.Errorf("%w: %v", module.ErrMissingScriptPath, err)
	}

	filename := id.NewScriptFilename()

	// Reserve the catalog URL so racing registrations fail fast
	m.mu.Lock()
	if m.indexByURL(catalogURL) >= 0 {
		m.mu.Unlock()
		return module.Record{}, module.ErrAlreadyExists
	}
	if _, busy := m.pending[catalogURL]; busy {
		m.mu.Unlock()
		return module.Record{}, module.ErrAlreadyExists
	}
	m.pending[catalogURL] = struct{}{}
	m.inflight[filename] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.pending, catalogURL)
		delete(m.inflight, filename)
		m.mu.Unlock()
	}()

	body, err := m.fetchScript(ctx, desc.ScriptURL)
	if err != nil {
		return module.Record{}, err
	}

	if err := m.storage.WriteScript(filename, body); err != nil {
		return module.Record{}, fmt.Errorf("failed to cache script: %w", err)
	}

	rec := module.Record{
		ID:         id.NewModuleID(),
		Descriptor: desc,
		LocalPath:  filename,
		CatalogURL: catalogURL,
		Checksum:   m.hasher.Checksum(body),
		AddedAt:    time.Now().UTC(),
	}

	m.mu.Lock()
	m.records = append(m.records, rec)
	if err := m.storage.WriteCatalog(m.records); err != nil {
		m.records = m.records[:len(m.records)-1]
		m.mu.Unlock()
		_ = m.storage.DeleteScript(filename)
		return module.Record{}, err
	}
	m.mu.Unlock()

	m.updateGauge()
	m.logger.Info("Module registered",
		zap.String("module", desc.Name),
		zap.String("id", rec.ID.String()),
		zap.String("catalog_url", catalogURL))
	m.observers.publish(Event{Type: EventAdded, Record: rec})
	return rec, nil
}

// Install fetches the descriptor served at catalogURL and registers it
func (m *Manager) Install(ctx context.Context, catalogURL string) (module.Record, error) {
	if _, err := utils.ValidateRemoteURL(catalogURL); err != nil {
		m.record("install", err)
		return module.Record{}, fmt.Errorf("%w: %v", module.ErrInvalidCatalogURL, err)
	}
	if m.Exists(catalogURL) {
		m.record("install", module.ErrAlreadyExists)
		return module.Record{}, module.ErrAlreadyExists
	}

	data, err := m.download(ctx, catalogURL)
	if err != nil {
		m.record("install", err)
		return module.Record{}, err
	}

	var desc module.Descriptor
	if err := sonic.Unmarshal(data, &desc); err != nil {
		err = fmt.Errorf("%w: descriptor at %s: %v", module.ErrDecode, catalogURL, err)
		m.record("install", err)
		return module.Record{}, err
	}

	return m.Register(ctx, catalogURL, m.sanitize(desc))
}

// sanitize strips markup from descriptor display fields
func (m *Manager) sanitize(desc module.Descriptor) module.Descriptor {
	clean := func(s string) string {
		return strings.TrimSpace(m.sanitizer.Sanitize(s))
	}
	desc.Name = clean(desc.Name)
	desc.Author.Name = clean(desc.Author.Name)
	desc.Version = clean(desc.Version)
	desc.Language = clean(desc.Language)
	desc.ScriptURL = strings.TrimSpace(desc.ScriptURL)
	desc.IconURL = strings.TrimSpace(desc.IconURL)
	desc.Author.Icon = strings.TrimSpace(desc.Author.Icon)
	return desc
}

// Remove deletes a record and its cached script. The catalog document
// itself is rewritten, never deleted.
func (m *Manager) Remove(ctx context.Context, moduleID id.ModuleID) error {
	m.mu.Lock()
	idx := m.indexByID(moduleID)
	if idx < 0 {
		m.mu.Unlock()
		m.record("remove", module.ErrNotFound)
		return module.ErrNotFound
	}
	rec := m.records[idx]

	next := make([]module.Record, 0, len(m.records)-1)
	next = append(next, m.records[:idx]...)
	next = append(next, m.records[idx+1:]...)
	if err := m.storage.WriteCatalog(next); err != nil {
		m.mu.Unlock()
		m.record("remove", err)
		return err
	}
	m.records = next
	m.mu.Unlock()

	if rec.LocalPath != "" {
		if err := m.storage.DeleteScript(rec.LocalPath); err != nil {
			m.logger.Warn("Failed to delete cached script",
				zap.String("path", rec.LocalPath), zap.Error(err))
		}
	}

	m.updateGauge()
	m.record("remove", nil)
	m.logger.Info("Module removed", zap.String("module", rec.Descriptor.Name), zap.String("id", rec.ID.String()))
	m.observers.publish(Event{Type: EventRemoved, Record: rec})
	return nil
}

// Revalidate re-downloads the cached script in the background when it is
// missing, empty or fails its checksum. done receives nil on success and
// is called exactly once.
func (m *Manager) Revalidate(ctx context.Context, moduleID id.ModuleID, done func(error)) {
	m.background.Add(1)
	go func() {
		defer m.background.Done()
		err := m.RevalidateSync(ctx, moduleID)
		if done != nil {
			done(err)
		}
	}()
}

// RevalidateSync is the blocking form of Revalidate
func (m *Manager) RevalidateSync(ctx context.Context, moduleID id.ModuleID) error {
	err := m.revalidate(ctx, moduleID)
	m.record("revalidate", err)
	return err
}

func (m *Manager) revalidate(ctx context.Context, moduleID id.ModuleID) error {
	rec, err := m.Get(moduleID)
	if err != nil {
		return err
	}
	if m.storage.ScriptValid(rec.LocalPath, rec.Checksum) {
		return nil
	}

	m.logger.Info("Refreshing cached script",
		zap.String("module", rec.Descriptor.Name), zap.String("id", rec.ID.String()))

	if strings.TrimSpace(rec.Descriptor.ScriptURL) == "" {
		return module.ErrMissingScriptPath
	}

	filename := rec.LocalPath
	if filename == "" {
		// unreferenced until the catalog is rewritten; keep Prune off it
		filename = id.NewScriptFilename()
		m.mu.Lock()
		m.inflight[filename] = struct{}{}
		m.mu.Unlock()
		defer func() {
			m.mu.Lock()
			delete(m.inflight, filename)
			m.mu.Unlock()
		}()
	}

	body, err := m.fetchScript(ctx, rec.Descriptor.ScriptURL)
	if err != nil {
		return err
	}
	if err := m.storage.WriteScript(filename, body); err != nil {
		return fmt.Errorf("failed to cache script: %w", err)
	}

	m.mu.Lock()
	idx := m.indexByID(moduleID)
	if idx < 0 {
		// Removed while downloading
		m.mu.Unlock()
		_ = m.storage.DeleteScript(filename)
		return module.ErrNotFound
	}
	updated := m.records[idx]
	updated.LocalPath = filename
	updated.Checksum = m.hasher.Checksum(body)
	m.records[idx] = updated
	err = m.storage.WriteCatalog(m.records)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	m.observers.publish(Event{Type: EventUpdated, Record: updated})
	return nil
}

// ScriptBody returns the cached script of a record
func (m *Manager) ScriptBody(moduleID id.ModuleID) (string, error) {
	rec, err := m.Get(moduleID)
	if err != nil {
		return "", err
	}
	if rec.LocalPath == "" {
		return "", module.ErrMissingScriptPath
	}
	data, err := m.storage.ReadScript(rec.LocalPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", module.ErrMissingScriptPath, err)
	}
	return string(data), nil
}

// Get returns a copy of the record with the given identifier
func (m *Manager) Get(moduleID id.ModuleID) (module.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexByID(moduleID)
	if idx < 0 {
		return module.Record{}, module.ErrNotFound
	}
	return m.records[idx], nil
}

// List returns a snapshot of every record in insertion order
func (m *Manager) List() []module.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]module.Record, len(m.records))
	copy(out, m.records)
	return out
}

// Exists reports whether catalogURL is already registered
func (m *Manager) Exists(catalogURL string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexByURL(catalogURL) >= 0
}

// SetActive marks one record active and clears the flag on all others
func (m *Manager) SetActive(moduleID id.ModuleID) (module.Record, error) {
	m.mu.Lock()
	idx := m.indexByID(moduleID)
	if idx < 0 {
		m.mu.Unlock()
		m.record("activate", module.ErrNotFound)
		return module.Record{}, module.ErrNotFound
	}

	next := make([]module.Record, len(m.records))
	copy(next, m.records)
	for i := range next {
		next[i].Active = i == idx
	}
	if err := m.storage.WriteCatalog(next); err != nil {
		m.mu.Unlock()
		m.record("activate", err)
		return module.Record{}, err
	}
	m.records = next
	rec := next[idx]
	m.mu.Unlock()

	m.record("activate", nil)
	m.observers.publish(Event{Type: EventActivated, Record: rec})
	return rec, nil
}

// Active returns the active record, if any
func (m *Manager) Active() (module.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.Active {
			return rec, true
		}
	}
	return module.Record{}, false
}

// Prune deletes cached scripts no record references and returns how many
// were removed
func (m *Manager) Prune() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	files, err := m.storage.ListScripts()
	if err != nil {
		return 0, fmt.Errorf("failed to list scripts: %w", err)
	}

	referenced := make(map[string]struct{}, len(m.records))
	for _, rec := range m.records {
		referenced[rec.LocalPath] = struct{}{}
	}

	removed := 0
	for _, name := range files {
		if _, ok := referenced[name]; ok {
			continue
		}
		if _, ok := m.inflight[name]; ok {
			continue
		}
		if err := m.storage.DeleteScript(name); err != nil {
			m.logger.Warn("Failed to prune script", zap.String("path", name), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info("Pruned orphaned scripts", zap.Int("count", removed))
	}
	return removed, nil
}

// Subscribe registers fn for catalog events and returns its cancel func
func (m *Manager) Subscribe(fn func(Event)) func() {
	return m.observers.subscribe(fn)
}

// fetchScript downloads a script body and requires it to be text
func (m *Manager) fetchScript(ctx context.Context, scriptURL string) ([]byte, error) {
	body, err := m.download(ctx, scriptURL)
	if err != nil {
		return nil, err
	}
	if len(body) > utils.MaxScriptSize {
		return nil, fmt.Errorf("%w: script exceeds %d bytes", module.ErrInvalidScriptFormat, utils.MaxScriptSize)
	}
	if !utils.IsText(body) {
		return nil, module.ErrInvalidScriptFormat
	}
	return body, nil
}

func (m *Manager) download(ctx context.Context, url string) ([]byte, error) {
	data, err := m.downloader.Download(ctx, url)
	if err == nil {
		return data, nil
	}
	var statusErr *client.StatusError
	if errors.As(err, &statusErr) {
		return nil, &module.DownloadError{URL: url, Status: statusErr.Status, Err: err}
	}
	return nil, &module.DownloadError{URL: url, Err: err}
}

// indexByID and indexByURL require m.mu
func (m *Manager) indexByID(moduleID id.ModuleID) int {
	for i := range m.records {
		if m.records[i].ID == moduleID {
			return i
		}
	}
	return -1
}

func (m *Manager) indexByURL(catalogURL string) int {
	for i := range m.records {
		if m.records[i].CatalogURL == catalogURL {
			return i
		}
	}
	return -1
}

func (m *Manager) record(op string, err error) {
	if m.metrics != nil {
		m.metrics.RecordRegistryOp(op, err == nil)
	}
}

func (m *Manager) updateGauge() {
	if m.metrics == nil {
		return
	}
	m.mu.Lock()
	n := len(m.records)
	m.mu.Unlock()
	m.metrics.SetRegistryModules(n)
}
