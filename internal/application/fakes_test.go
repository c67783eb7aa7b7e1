package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/bnema/tenantctl/internal/domain"
	"github.com/bnema/tenantctl/internal/ports"
	"github.com/stretchr/testify/mock"
)

func mockAnyContext() interface{} {
	return mock.Anything
}

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time {
	return f.now
}

type inMemoryTenantRepo struct {
	mu            sync.Mutex
	tenants       map[domain.TenantID]domain.Tenant
	reads         int
	sessionWrites int
	upsertErr     error
}

var _ ports.TenantRepository = (*inMemoryTenantRepo)(nil)

func newInMemoryTenantRepo(tenants ...domain.Tenant) *inMemoryTenantRepo {
	repo := &inMemoryTenantRepo{tenants: map[domain.TenantID]domain.Tenant{}}
	for _, tenant := range tenants {
		repo.tenants[tenant.ID] = tenant
	}
	return repo
}

func (r *inMemoryTenantRepo) GetByID(_ context.Context, id domain.TenantID) (domain.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reads++
	tenant, ok := r.tenants[id]
	if !ok {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return tenant, nil
}

func (r *inMemoryTenantRepo) List(_ context.Context) ([]domain.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tenants := make([]domain.Tenant, 0, len(r.tenants))
	for _, tenant := range r.tenants {
		tenants = append(tenants, tenant)
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].ID < tenants[j].ID })
	return tenants, nil
}

func (r *inMemoryTenantRepo) Create(_ context.Context, tenant domain.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tenants[tenant.ID]; ok {
		return domain.ErrTenantExists
	}
	r.tenants[tenant.ID] = tenant
	return nil
}

func (r *inMemoryTenantRepo) Update(_ context.Context, tenant domain.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tenants[tenant.ID]
	if !ok {
		return domain.ErrTenantNotFound
	}
	tenant.Session = stored.Session
	r.tenants[tenant.ID] = tenant
	return nil
}

func (r *inMemoryTenantRepo) Delete(_ context.Context, id domain.TenantID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tenants[id]; !ok {
		return domain.ErrTenantNotFound
	}
	delete(r.tenants, id)
	return nil
}

func (r *inMemoryTenantRepo) UpsertSession(_ context.Context, id domain.TenantID, session domain.SessionState, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessionWrites++
	if r.upsertErr != nil {
		return r.upsertErr
	}
	tenant, ok := r.tenants[id]
	if !ok {
		return domain.ErrTenantNotFound
	}
	tenant.Session = session
	tenant.UpdatedAt = updatedAt
	r.tenants[id] = tenant
	return nil
}

func (r *inMemoryTenantRepo) snapshot(id domain.TenantID) domain.Tenant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tenants[id]
}

func (r *inMemoryTenantRepo) counts() (reads, sessionWrites int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads, r.sessionWrites
}

type inMemorySecretStore struct {
	mu      sync.Mutex
	secrets map[string]string
}

func newInMemorySecretStore(pairs ...string) *inMemorySecretStore {
	store := &inMemorySecretStore{secrets: map[string]string{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		store.secrets[pairs[i]] = pairs[i+1]
	}
	return store
}

func (s *inMemorySecretStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.secrets[key]
	if !ok {
		return "", domain.ErrSecretNotFound
	}
	return value, nil
}

func (s *inMemorySecretStore) Put(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[key] = value
	return nil
}

func (s *inMemorySecretStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, key)
	return nil
}

// fakeDriver models a page as a set of present markers. Waiting for an
// absent marker fails immediately with ports.ErrWaitTimeout unless the
// marker is listed in hang, in which case it blocks until ctx ends.
type fakeDriver struct {
	mu         sync.Mutex
	present    map[string]bool
	hang       map[string]bool
	onClick    map[string]func(d *fakeDriver)
	navErr     error
	navDelay   time.Duration
	cookies    []domain.Cookie
	readErr    error
	readPanic  any
	closePanic any
	restored   []domain.Cookie
	typed      map[string]string
	uploaded   map[string]string
	visited    []string
	clicked    []string
	panicOn    string
	closed     int
	onClose    func()
}

var _ ports.Driver = (*fakeDriver)(nil)

func newFakeDriver(markers ...string) *fakeDriver {
	d := &fakeDriver{
		present:  map[string]bool{},
		hang:     map[string]bool{},
		onClick:  map[string]func(d *fakeDriver){},
		typed:    map[string]string{},
		uploaded: map[string]string{},
		cookies:  []domain.Cookie{{Name: "sessionid", Value: "fresh", Domain: ".example.com", Path: "/"}},
	}
	for _, marker := range markers {
		d.present[marker] = true
	}
	return d
}

func (d *fakeDriver) show(markers ...string) {
	for _, marker := range markers {
		d.present[marker] = true
	}
}

func (d *fakeDriver) hide(markers ...string) {
	for _, marker := range markers {
		delete(d.present, marker)
	}
}

func (d *fakeDriver) Navigate(ctx context.Context, target string, _ time.Duration) error {
	if d.navDelay > 0 {
		time.Sleep(d.navDelay)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	d.visited = append(d.visited, target)
	return d.navErr
}

func (d *fakeDriver) WaitFor(ctx context.Context, marker string, _ time.Duration) error {
	d.mu.Lock()
	if d.panicOn == marker {
		d.mu.Unlock()
		panic("driver exploded")
	}
	present := d.present[marker]
	hang := d.hang[marker]
	d.mu.Unlock()

	if present {
		return nil
	}
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return ports.ErrWaitTimeout
}

func (d *fakeDriver) Exists(_ context.Context, marker string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.present[marker], nil
}

func (d *fakeDriver) Type(_ context.Context, field, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.present[field] {
		return ports.ErrElementMissing
	}
	d.typed[field] = text
	return nil
}

func (d *fakeDriver) Click(_ context.Context, control string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.present[control] {
		return ports.ErrElementMissing
	}
	d.clicked = append(d.clicked, control)
	if fn, ok := d.onClick[control]; ok {
		fn(d)
	}
	return nil
}

func (d *fakeDriver) Upload(_ context.Context, field, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.present[field] {
		return ports.ErrElementMissing
	}
	d.uploaded[field] = path
	return nil
}

func (d *fakeDriver) ReadCookies(_ context.Context) ([]domain.Cookie, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.readPanic != nil {
		panic(d.readPanic)
	}
	if d.readErr != nil {
		return nil, d.readErr
	}
	return append([]domain.Cookie(nil), d.cookies...), nil
}

func (d *fakeDriver) RestoreCookies(_ context.Context, cookies []domain.Cookie) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.restored = append([]domain.Cookie(nil), cookies...)
	return nil
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	d.closed++
	onClose := d.onClose
	closePanic := d.closePanic
	d.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	if closePanic != nil {
		panic(closePanic)
	}
	return nil
}

func (d *fakeDriver) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type fakeLauncher struct {
	mu        sync.Mutex
	newDriver func(cfg domain.LaunchConfig) *fakeDriver
	launchErr error
	hold      time.Duration
	launches  int
	live      int
	maxLive   int
	configs   []domain.LaunchConfig
	drivers   []*fakeDriver
}

var _ ports.DriverLauncher = (*fakeLauncher)(nil)

func (l *fakeLauncher) Launch(ctx context.Context, cfg domain.LaunchConfig) (ports.Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.launches++
	l.configs = append(l.configs, cfg)
	if l.launchErr != nil {
		return nil, l.launchErr
	}

	var driver *fakeDriver
	if l.newDriver != nil {
		driver = l.newDriver(cfg)
	} else {
		driver = newFakeDriver()
	}
	driver.onClose = func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.live--
	}
	l.live++
	if l.live > l.maxLive {
		l.maxLive = l.live
	}
	l.drivers = append(l.drivers, driver)

	return driver, nil
}

func (l *fakeLauncher) stats() (launches, live, maxLive int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches, l.live, l.maxLive
}

func (l *fakeLauncher) lastDriver() *fakeDriver {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.drivers) == 0 {
		return nil
	}
	return l.drivers[len(l.drivers)-1]
}

var errBoom = errors.New("boom")
