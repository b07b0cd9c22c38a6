package intervention

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oxycare/oxycare/internal/domain/directory"
	"github.com/oxycare/oxycare/internal/domain/settings"
	"github.com/oxycare/oxycare/internal/platform/apperror"
	"github.com/oxycare/oxycare/internal/platform/auth"
	"github.com/oxycare/oxycare/internal/platform/events"
)

// -- Directory --

type fakeDirectory struct {
	patients    map[uuid.UUID]*directory.Patient
	devices     map[uuid.UUID]*directory.Device
	technicians map[uuid.UUID]*directory.Technician
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		patients:    make(map[uuid.UUID]*directory.Patient),
		devices:     make(map[uuid.UUID]*directory.Device),
		technicians: make(map[uuid.UUID]*directory.Technician),
	}
}

func strPtr(s string) *string { return &s }

func (d *fakeDirectory) addPatient(first, last string) uuid.UUID {
	id := uuid.New()
	d.patients[id] = &directory.Patient{ID: id, FirstName: strPtr(first), LastName: strPtr(last)}
	return id
}

func (d *fakeDirectory) addDevice(designation string) uuid.UUID {
	id := uuid.New()
	d.devices[id] = &directory.Device{ID: id, Designation: strPtr(designation), Status: "active"}
	return id
}

func (d *fakeDirectory) addTechnician(username string) uuid.UUID {
	id := uuid.New()
	d.technicians[id] = &directory.Technician{ID: id, Username: username, Role: "technician", Active: true}
	return id
}

func (d *fakeDirectory) Patient(_ context.Context, id uuid.UUID) (*directory.Patient, error) {
	if p, ok := d.patients[id]; ok {
		return p, nil
	}
	return nil, apperror.NotFound("patient", id)
}

func (d *fakeDirectory) Device(_ context.Context, id uuid.UUID) (*directory.Device, error) {
	if v, ok := d.devices[id]; ok {
		return v, nil
	}
	return nil, apperror.NotFound("device", id)
}

func (d *fakeDirectory) Technician(_ context.Context, id uuid.UUID) (*directory.Technician, error) {
	if t, ok := d.technicians[id]; ok {
		return t, nil
	}
	return nil, apperror.NotFound("technician", id)
}

// -- Settings repository --

type memSettingsRepo struct {
	records map[uuid.UUID]*settings.Record
}

func newMemSettingsRepo() *memSettingsRepo {
	return &memSettingsRepo{records: make(map[uuid.UUID]*settings.Record)}
}

func (m *memSettingsRepo) Create(_ context.Context, r *settings.Record) error {
	r.ID = uuid.New()
	cp := *r
	m.records[r.ID] = &cp
	return nil
}

func (m *memSettingsRepo) GetByID(_ context.Context, id uuid.UUID) (*settings.Record, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, apperror.NotFound("settings record", id)
	}
	cp := *r
	return &cp, nil
}

func (m *memSettingsRepo) Update(_ context.Context, r *settings.Record) error {
	if _, ok := m.records[r.ID]; !ok {
		return apperror.NotFound("settings record", r.ID)
	}
	cp := *r
	m.records[r.ID] = &cp
	return nil
}

func (m *memSettingsRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.records[id]; !ok {
		return apperror.NotFound("settings record", id)
	}
	delete(m.records, id)
	return nil
}

// -- Intervention repository --

type memRepo struct {
	store    map[uuid.UUID]*Intervention
	dir      *fakeDirectory
	settings *memSettingsRepo
	clock    func() time.Time
}

func newMemRepo(dir *fakeDirectory, sr *memSettingsRepo, clock func() time.Time) *memRepo {
	return &memRepo{store: make(map[uuid.UUID]*Intervention), dir: dir, settings: sr, clock: clock}
}

func (m *memRepo) Create(_ context.Context, iv *Intervention) error {
	if iv.ID == uuid.Nil {
		iv.ID = uuid.New()
	}
	iv.VersionID = 1
	iv.CreatedAt = m.clock()
	iv.UpdatedAt = iv.CreatedAt
	m.store[iv.ID] = iv.Clone()
	return nil
}

func (m *memRepo) Get(_ context.Context, id uuid.UUID) (*Intervention, error) {
	iv, ok := m.store[id]
	if !ok {
		return nil, apperror.NotFound("intervention", id)
	}
	return iv.Clone(), nil
}

func (m *memRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Intervention, error) {
	return m.Get(ctx, id)
}

func (m *memRepo) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	iv, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.detail(iv), nil
}

func (m *memRepo) detail(iv *Intervention) *Detail {
	d := &Detail{
		Intervention: iv,
		Patient:      m.dir.patients[iv.PatientID],
		Device:       m.dir.devices[iv.DeviceID],
		Technician:   m.dir.technicians[iv.TechnicianID],
	}
	if iv.SettingsID != nil {
		d.Settings = m.settings.records[*iv.SettingsID]
	}
	return d
}

func (m *memRepo) Update(_ context.Context, iv *Intervention) error {
	cur, ok := m.store[iv.ID]
	if !ok {
		return apperror.NotFound("intervention", iv.ID)
	}
	if cur.VersionID != iv.VersionID {
		return apperror.Conflict("intervention was modified by another request", nil)
	}
	iv.VersionID++
	iv.UpdatedAt = m.clock()
	m.store[iv.ID] = iv.Clone()
	return nil
}

func (m *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return apperror.NotFound("intervention", id)
	}
	delete(m.store, id)
	return nil
}

func (m *memRepo) matches(iv *Intervention, f Filter) bool {
	switch {
	case f.TechnicianID != nil && iv.TechnicianID != *f.TechnicianID,
		f.Status != nil && iv.Status != *f.Status,
		f.Type != nil && iv.InterventionType != *f.Type,
		f.Treatment != nil && iv.Treatment != *f.Treatment,
		f.PatientID != nil && iv.PatientID != *f.PatientID,
		f.DeviceID != nil && iv.DeviceID != *f.DeviceID,
		f.From != nil && iv.ScheduledAt.Before(*f.From),
		f.To != nil && iv.ScheduledAt.After(*f.To):
		return false
	}
	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(f.Search)
	var hay []string
	if p := m.dir.patients[iv.PatientID]; p != nil {
		hay = append(hay, p.FullName())
	}
	if d := m.dir.devices[iv.DeviceID]; d != nil && d.Designation != nil {
		hay = append(hay, *d.Designation)
	}
	if t := m.dir.technicians[iv.TechnicianID]; t != nil {
		hay = append(hay, t.FullName())
	}
	return strings.Contains(strings.ToLower(strings.Join(hay, " ")), needle)
}

func (m *memRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Detail, int, error) {
	var all []*Intervention
	for _, iv := range m.store {
		if m.matches(iv, f) {
			all = append(all, iv.Clone())
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].ScheduledAt.Equal(all[j].ScheduledAt) {
			return all[i].ScheduledAt.After(all[j].ScheduledAt)
		}
		return all[i].ID.String() > all[j].ID.String()
	})
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	var out []*Detail
	for _, iv := range all[offset:end] {
		out = append(out, m.detail(iv))
	}
	return out, total, nil
}

func (m *memRepo) Stats(_ context.Context, f Filter) (*Stats, error) {
	st := newStats()
	for _, iv := range m.store {
		if m.matches(iv, f) {
			st.add(iv.Status, iv.Treatment, iv.InterventionType, 1)
		}
	}
	return st, nil
}

// -- Transactions --

// fakeTx restores the repository snapshots when the unit of work fails.
type fakeTx struct {
	repo     *memRepo
	settings *memSettingsRepo
	reads    int
	writes   int
}

func (t *fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.writes++
	store := make(map[uuid.UUID]*Intervention, len(t.repo.store))
	for k, v := range t.repo.store {
		store[k] = v.Clone()
	}
	records := make(map[uuid.UUID]*settings.Record, len(t.settings.records))
	for k, v := range t.settings.records {
		cp := *v
		records[k] = &cp
	}
	if err := fn(ctx); err != nil {
		t.repo.store = store
		t.settings.records = records
		return err
	}
	return nil
}

func (t *fakeTx) WithReadTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.reads++
	return fn(ctx)
}

// -- Events --

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) statusChanges() []events.StatusChanged {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.StatusChanged
	for _, e := range p.events {
		if sc, ok := e.Payload.(events.StatusChanged); ok {
			out = append(out, sc)
		}
	}
	return out
}

var errBroker = errors.New("broker unavailable")

// -- Fixture --

var testNow = time.Date(2025, 1, 10, 10, 30, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	repo      *memRepo
	settings  *memSettingsRepo
	dir       *fakeDirectory
	tx        *fakeTx
	pub       *recordingPublisher
	adminID   uuid.UUID
	techID    uuid.UUID
	otherTech uuid.UUID
	patientID uuid.UUID
	deviceID  uuid.UUID
}

func newFixture() *fixture {
	clock := func() time.Time { return testNow }
	dir := newFakeDirectory()
	sr := newMemSettingsRepo()
	repo := newMemRepo(dir, sr, clock)
	tx := &fakeTx{repo: repo, settings: sr}
	pub := &recordingPublisher{}

	svc := NewService(repo, dir, settings.NewManager(sr), tx, pub, zerolog.Nop())
	svc.SetClock(clock)

	return &fixture{
		svc:       svc,
		repo:      repo,
		settings:  sr,
		dir:       dir,
		tx:        tx,
		pub:       pub,
		adminID:   uuid.New(),
		techID:    dir.addTechnician("jdupont"),
		otherTech: dir.addTechnician("mmartin"),
		patientID: dir.addPatient("Alice", "Bernard"),
		deviceID:  dir.addDevice("ResMed AirSense 10"),
	}
}

func (f *fixture) admin() context.Context {
	return auth.WithPrincipal(context.Background(), auth.Principal{UserID: f.adminID, Role: auth.RoleAdmin})
}

func (f *fixture) tech() context.Context {
	return auth.WithPrincipal(context.Background(), auth.Principal{UserID: f.techID, Role: auth.RoleTechnician})
}

func (f *fixture) other() context.Context {
	return auth.WithPrincipal(context.Background(), auth.Principal{UserID: f.otherTech, Role: auth.RoleTechnician})
}

// cpapPayload is a valid CPAP mask adjustment scheduled before testNow.
func (f *fixture) cpapPayload() Payload {
	return Payload{
		PatientID:        Some(f.patientID),
		DeviceID:         Some(f.deviceID),
		TechnicianID:     Some(f.techID),
		Treatment:        Some(CPAP),
		InterventionType: Some(AdjustMask),
		MaskType:         Some(MaskNasal),
		ScheduledAt:      Some(DateTime{time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}),
	}
}

func (f *fixture) create(ctx context.Context, p Payload) *Detail {
	d, err := f.svc.Create(ctx, p)
	if err != nil {
		panic(err)
	}
	return d
}
