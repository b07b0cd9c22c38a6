package intervention

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/internal/domain/settings"
	"github.com/oxycare/oxycare/internal/platform/apperror"
	"github.com/oxycare/oxycare/pkg/pagination"
)

func expectKind(t *testing.T, err error, kind apperror.Kind) *apperror.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", kind)
	}
	if !apperror.IsKind(err, kind) {
		t.Fatalf("expected %v error, got %v", kind, err)
	}
	return apperror.As(err)
}

func expectViolation(t *testing.T, err error, field, code string) {
	t.Helper()
	appErr := expectKind(t, err, apperror.KindValidation)
	if !hasViolation(appErr.Violations, field, code) {
		t.Fatalf("expected violation %s/%s, got %v", field, code, appErr.Violations)
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestService_CreateThenComplete(t *testing.T) {
	f := newFixture()

	d, err := f.svc.Create(f.admin(), f.cpapPayload())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.Status != StatusScheduled {
		t.Errorf("expected Scheduled, got %s", d.Status)
	}
	if d.ActualAt != nil {
		t.Errorf("expected no actual_at, got %v", d.ActualAt)
	}

	done, err := f.svc.Update(f.admin(), d.ID, Payload{Status: Some(StatusCompleted)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Errorf("expected Completed, got %s", done.Status)
	}
	if done.ActualAt == nil || !done.ActualAt.Equal(testNow) {
		t.Errorf("expected actual_at %v, got %v", testNow, done.ActualAt)
	}
}

func TestService_CompleteKeepsSuppliedActualAt(t *testing.T) {
	f := newFixture()
	d := f.create(f.admin(), f.cpapPayload())

	at := time.Date(2025, 1, 10, 9, 45, 0, 0, time.UTC)
	done, err := f.svc.Update(f.admin(), d.ID, Payload{
		Status:   Some(StatusCompleted),
		ActualAt: Some(DateTime{at}),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !done.ActualAt.Equal(at) {
		t.Errorf("expected actual_at %v, got %v", at, done.ActualAt)
	}
}

func TestService_CreateRoundTrip(t *testing.T) {
	f := newFixture()
	p := f.cpapPayload()
	p.Location = Some("  12 rue des Lilas ")
	p.SafetyChecks = Some(map[SafetyCheck]bool{CheckAlarms: true, CheckCircuits: false})
	p.ConsumablesUsed = Some(map[Consumable]bool{ConsumableMasks: true})
	p.Parameters = Some(map[string]float64{"pressure": 9.5})
	p.PreventiveMaintenance = Some(true)

	created, err := f.svc.Create(f.admin(), p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := f.svc.Get(f.admin(), created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(created.Intervention, got.Intervention) {
		t.Errorf("round trip mismatch:\ncreated %+v\ngot     %+v", created.Intervention, got.Intervention)
	}
	if got.Location == nil || *got.Location != "12 rue des Lilas" {
		t.Errorf("expected trimmed location, got %v", got.Location)
	}
	if got.Patient == nil || got.Device == nil || got.Technician == nil {
		t.Error("expected related records to be resolved")
	}
	if !got.ScheduledAt.Equal(p.ScheduledAt.Value.Time) || got.MaskType == nil || *got.MaskType != MaskNasal {
		t.Errorf("unexpected fields: %+v", got.Intervention)
	}
}

func TestService_CreateAsTechnicianDefaultsToCaller(t *testing.T) {
	f := newFixture()
	p := f.cpapPayload()
	p.TechnicianID = Field[uuid.UUID]{}

	d, err := f.svc.Create(f.tech(), p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.TechnicianID != f.techID {
		t.Errorf("expected technician %s, got %s", f.techID, d.TechnicianID)
	}
}

func TestService_CreateForAnotherTechnicianForbidden(t *testing.T) {
	f := newFixture()
	p := f.cpapPayload()
	p.TechnicianID = Some(f.otherTech)
	_, err := f.svc.Create(f.tech(), p)
	expectKind(t, err, apperror.KindAuthorization)
}

func TestService_CreateAsAdminRequiresTechnician(t *testing.T) {
	f := newFixture()
	p := f.cpapPayload()
	p.TechnicianID = Field[uuid.UUID]{}
	_, err := f.svc.Create(f.admin(), p)
	expectViolation(t, err, "technician_id", CodeRequired)
}

func TestService_CreateRejectsVentilationFieldsForOxygen(t *testing.T) {
	f := newFixture()
	p := f.cpapPayload()
	p.Treatment = Some(Oxygenotherapy)
	p.InterventionType = Some(Install)
	p.MaskType = Field[MaskType]{}
	p.VentilationMode = Some(VentilationAuto)

	_, err := f.svc.Create(f.admin(), p)
	expectViolation(t, err, "ventilation_mode", CodeNotAllowed)
	if len(f.repo.store) != 0 {
		t.Error("rejected create must not be stored")
	}
}

func TestService_CreateCollectsAllViolations(t *testing.T) {
	f := newFixture()
	p := f.cpapPayload()
	p.InterventionType = Some(Uninstall)
	p.ConcentratorType = Some(ConcentratorPortable)
	p.Settings = &settings.Params{Humidity: floatPtr(9)}

	_, err := f.svc.Create(f.admin(), p)
	appErr := expectKind(t, err, apperror.KindValidation)
	for _, want := range []struct{ field, code string }{
		{"intervention_type", CodeNotAllowed},
		{"concentrator_type", CodeNotAllowed},
		{"settings.humidity", "out_of_range"},
	} {
		if !hasViolation(appErr.Violations, want.field, want.code) {
			t.Errorf("missing %s/%s in %v", want.field, want.code, appErr.Violations)
		}
	}
}

func TestService_CreateUnknownReferences(t *testing.T) {
	f := newFixture()
	p := f.cpapPayload()
	p.DeviceID = Some(uuid.New())
	_, err := f.svc.Create(f.admin(), p)
	expectKind(t, err, apperror.KindNotFound)
	if len(f.repo.store) != 0 {
		t.Error("nothing should be stored")
	}
}

func TestService_CreateWithSettings(t *testing.T) {
	f := newFixture()
	p := f.cpapPayload()
	p.Settings = &settings.Params{MaxPressure: floatPtr(12), Humidity: floatPtr(3)}

	d, err := f.svc.Create(f.admin(), p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.SettingsID == nil || d.Settings == nil {
		t.Fatal("expected settings record attached")
	}
	if d.Settings.DeviceID != f.deviceID || *d.Settings.MaxPressure != 12 {
		t.Errorf("unexpected settings record: %+v", d.Settings)
	}
}

func TestService_CreateWithEmptySettingsAttachesNothing(t *testing.T) {
	f := newFixture()
	p := f.cpapPayload()
	p.Settings = &settings.Params{}
	d, err := f.svc.Create(f.admin(), p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.SettingsID != nil || len(f.settings.records) != 0 {
		t.Error("expected no settings record")
	}
}

func TestService_TechnicianCannotTouchOthersRecords(t *testing.T) {
	f := newFixture()
	d := f.create(f.admin(), f.cpapPayload())

	// Invalid payload: ownership is checked first.
	_, err := f.svc.Update(f.other(), d.ID, Payload{Treatment: Some(Treatment("Nope"))})
	expectKind(t, err, apperror.KindAuthorization)

	_, err = f.svc.Update(f.other(), d.ID, Payload{Remarks: Some("ok")})
	expectKind(t, err, apperror.KindAuthorization)

	err = f.svc.Delete(f.other(), d.ID)
	expectKind(t, err, apperror.KindAuthorization)

	_, err = f.svc.Get(f.other(), d.ID)
	expectKind(t, err, apperror.KindAuthorization)

	_, err = f.svc.ChangeStatus(f.other(), d.ID, StatusPayload{Status: Some(StatusInProgress)})
	expectKind(t, err, apperror.KindAuthorization)

	_, err = f.svc.UpsertSettings(f.other(), d.ID, settings.Params{Humidity: floatPtr(1)})
	expectKind(t, err, apperror.KindAuthorization)

	if _, ok := f.repo.store[d.ID]; !ok {
		t.Fatal("record must survive")
	}
}

func TestService_TechnicianUpdatesOwnRecord(t *testing.T) {
	f := newFixture()
	d := f.create(f.tech(), f.cpapPayload())

	got, err := f.svc.Update(f.tech(), d.ID, Payload{Remarks: Some("mask replaced")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Remarks == nil || *got.Remarks != "mask replaced" {
		t.Errorf("remarks: %v", got.Remarks)
	}

	_, err = f.svc.Update(f.tech(), d.ID, Payload{TechnicianID: Some(f.otherTech)})
	expectKind(t, err, apperror.KindAuthorization)
}

func TestService_UpdateLeavesAbsentFieldsUntouched(t *testing.T) {
	f := newFixture()
	p := f.cpapPayload()
	p.Remarks = Some("first visit")
	d := f.create(f.admin(), p)

	got, err := f.svc.Update(f.admin(), d.ID, Payload{Location: Some("Clinique")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Remarks == nil || *got.Remarks != "first visit" {
		t.Errorf("remarks changed: %v", got.Remarks)
	}

	got, err = f.svc.Update(f.admin(), d.ID, Payload{Remarks: Null[string]()})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Remarks != nil {
		t.Errorf("expected remarks cleared, got %v", *got.Remarks)
	}
}

func TestService_Reschedule(t *testing.T) {
	f := newFixture()
	d := f.create(f.admin(), f.cpapPayload())

	_, err := f.svc.ChangeStatus(f.admin(), d.ID, StatusPayload{Status: Some(StatusRescheduled)})
	expectViolation(t, err, "rescheduled_at", CodeRequired)

	past := DateTime{testNow.Add(-time.Minute)}
	_, err = f.svc.ChangeStatus(f.admin(), d.ID, StatusPayload{Status: Some(StatusRescheduled), RescheduledAt: Some(past)})
	expectViolation(t, err, "rescheduled_at", CodeNotInFuture)

	if f.repo.store[d.ID].Status != StatusScheduled {
		t.Fatal("failed transition must not change the stored status")
	}

	at := testNow.Add(7 * 24 * time.Hour)
	got, err := f.svc.ChangeStatus(f.admin(), d.ID, StatusPayload{Status: Some(StatusRescheduled), RescheduledAt: Some(DateTime{at})})
	if err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if !got.ScheduledAt.Equal(at) || got.RescheduledAt == nil || !got.RescheduledAt.Equal(at) {
		t.Errorf("scheduled_at=%v rescheduled_at=%v", got.ScheduledAt, got.RescheduledAt)
	}

	back, err := f.svc.ChangeStatus(f.admin(), d.ID, StatusPayload{Status: Some(StatusInProgress)})
	if err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if back.RescheduledAt != nil {
		t.Errorf("expected rescheduled_at cleared, got %v", back.RescheduledAt)
	}
	if !back.ScheduledAt.Equal(at) {
		t.Errorf("scheduled_at should stay on the new date, got %v", back.ScheduledAt)
	}
}

func TestService_RescheduledKeepsScheduledAtEdits(t *testing.T) {
	f := newFixture()
	d := f.create(f.admin(), f.cpapPayload())

	at := testNow.Add(7 * 24 * time.Hour)
	if _, err := f.svc.ChangeStatus(f.admin(), d.ID, StatusPayload{Status: Some(StatusRescheduled), RescheduledAt: Some(DateTime{at})}); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}

	moved := testNow.Add(9 * 24 * time.Hour)
	got, err := f.svc.Update(f.admin(), d.ID, Payload{ScheduledAt: Some(DateTime{moved})})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !got.ScheduledAt.Equal(moved) {
		t.Errorf("scheduled_at: got %v want %v", got.ScheduledAt, moved)
	}
	if got.RescheduledAt == nil || !got.RescheduledAt.Equal(at) {
		t.Errorf("rescheduled_at should be untouched, got %v", got.RescheduledAt)
	}
	if got.Status != StatusRescheduled {
		t.Errorf("expected Rescheduled, got %s", got.Status)
	}
}

func TestService_RescheduledDateChangeMovesScheduledAt(t *testing.T) {
	f := newFixture()
	d := f.create(f.admin(), f.cpapPayload())

	at := testNow.Add(7 * 24 * time.Hour)
	if _, err := f.svc.ChangeStatus(f.admin(), d.ID, StatusPayload{Status: Some(StatusRescheduled), RescheduledAt: Some(DateTime{at})}); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}

	later := testNow.Add(14 * 24 * time.Hour)
	got, err := f.svc.Update(f.admin(), d.ID, Payload{RescheduledAt: Some(DateTime{later})})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !got.ScheduledAt.Equal(later) || got.RescheduledAt == nil || !got.RescheduledAt.Equal(later) {
		t.Errorf("scheduled_at=%v rescheduled_at=%v, want both %v", got.ScheduledAt, got.RescheduledAt, later)
	}
}

func TestService_Cancel(t *testing.T) {
	f := newFixture()
	d := f.create(f.admin(), f.cpapPayload())

	_, err := f.svc.ChangeStatus(f.admin(), d.ID, StatusPayload{Status: Some(StatusCancelled)})
	expectViolation(t, err, "cancellation_reason", CodeRequired)

	_, err = f.svc.ChangeStatus(f.admin(), d.ID, StatusPayload{Status: Some(StatusCancelled), CancellationReason: Some("  ")})
	expectViolation(t, err, "cancellation_reason", CodeRequired)

	got, err := f.svc.ChangeStatus(f.admin(), d.ID, StatusPayload{Status: Some(StatusCancelled), CancellationReason: Some("patient moved")})
	if err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if got.CancellationReason == nil || *got.CancellationReason != "patient moved" {
		t.Errorf("reason: %v", got.CancellationReason)
	}

	_, err = f.svc.Update(f.admin(), d.ID, Payload{Status: Some(StatusScheduled), CancellationReason: Some("still here")})
	expectViolation(t, err, "cancellation_reason", CodeNotAllowed)

	got, err = f.svc.Update(f.admin(), d.ID, Payload{Status: Some(StatusScheduled)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.CancellationReason != nil {
		t.Errorf("expected reason cleared, got %v", *got.CancellationReason)
	}
}

func TestService_ChangeStatusRequiresStatus(t *testing.T) {
	f := newFixture()
	d := f.create(f.admin(), f.cpapPayload())
	_, err := f.svc.ChangeStatus(f.admin(), d.ID, StatusPayload{})
	expectViolation(t, err, "status", CodeRequired)
}

func TestService_PermissiveTransitions(t *testing.T) {
	f := newFixture()
	d := f.create(f.admin(), f.cpapPayload())
	for _, st := range []Status{StatusCompleted, StatusScheduled, StatusPartial, StatusPatientAbsent, StatusInProgress} {
		if _, err := f.svc.ChangeStatus(f.admin(), d.ID, StatusPayload{Status: Some(st)}); err != nil {
			t.Fatalf("-> %s: %v", st, err)
		}
	}
}

func TestService_VersionConflict(t *testing.T) {
	f := newFixture()
	d := f.create(f.admin(), f.cpapPayload())

	stale := d.VersionID
	if _, err := f.svc.Update(f.admin(), d.ID, Payload{Remarks: Some("a"), VersionID: &stale}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	_, err := f.svc.Update(f.admin(), d.ID, Payload{Remarks: Some("b"), VersionID: &stale})
	expectKind(t, err, apperror.KindConflict)

	if got := f.repo.store[d.ID]; *got.Remarks != "a" || got.VersionID != stale+1 {
		t.Errorf("unexpected stored record: remarks=%v version=%d", *got.Remarks, got.VersionID)
	}
}

func TestService_DeleteCascadesToSettings(t *testing.T) {
	f := newFixture()
	p := f.cpapPayload()
	p.Settings = &settings.Params{MinPressure: floatPtr(4)}
	d := f.create(f.tech(), p)

	if err := f.svc.Delete(f.tech(), d.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(f.repo.store) != 0 || len(f.settings.records) != 0 {
		t.Errorf("expected intervention and settings deleted, got %d/%d", len(f.repo.store), len(f.settings.records))
	}
	_, err := f.svc.Get(f.tech(), d.ID)
	expectKind(t, err, apperror.KindNotFound)
}

func TestService_SettingsLifecycle(t *testing.T) {
	f := newFixture()
	d := f.create(f.admin(), f.cpapPayload())

	_, err := f.svc.UpsertSettings(f.admin(), d.ID, settings.Params{})
	expectViolation(t, err, "settings", CodeRequired)

	rec, err := f.svc.UpsertSettings(f.admin(), d.ID, settings.Params{MaxPressure: floatPtr(15), Humidity: floatPtr(2)})
	if err != nil {
		t.Fatalf("UpsertSettings: %v", err)
	}
	again, err := f.svc.UpsertSettings(f.admin(), d.ID, settings.Params{Humidity: floatPtr(4)})
	if err != nil {
		t.Fatalf("UpsertSettings: %v", err)
	}
	if again.ID != rec.ID || *again.MaxPressure != 15 || *again.Humidity != 4 {
		t.Errorf("expected merge into same record, got %+v", again)
	}

	_, err = f.svc.UpsertSettings(f.admin(), d.ID, settings.Params{ExpiratoryReserve: floatPtr(3.5)})
	expectKind(t, err, apperror.KindValidation)

	if err := f.svc.ClearSettings(f.admin(), d.ID); err != nil {
		t.Fatalf("ClearSettings: %v", err)
	}
	if f.repo.store[d.ID].SettingsID != nil || len(f.settings.records) != 0 {
		t.Error("expected settings detached and deleted")
	}
	err = f.svc.ClearSettings(f.admin(), d.ID)
	expectKind(t, err, apperror.KindNotFound)
}

func TestService_SettingsFollowDevice(t *testing.T) {
	f := newFixture()
	p := f.cpapPayload()
	p.Settings = &settings.Params{RampPressure: floatPtr(4)}
	d := f.create(f.admin(), p)

	newDevice := f.dir.addDevice("Philips DreamStation")
	got, err := f.svc.Update(f.admin(), d.ID, Payload{DeviceID: Some(newDevice)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Settings == nil || got.Settings.DeviceID != newDevice {
		t.Errorf("expected settings moved to %s, got %+v", newDevice, got.Settings)
	}
}

func TestService_AddPhotos(t *testing.T) {
	f := newFixture()
	d := f.create(f.tech(), f.cpapPayload())

	got, err := f.svc.AddPhotos(f.tech(), d.ID, []string{"photos/1.jpg", "photos/2.jpg"})
	if err != nil {
		t.Fatalf("AddPhotos: %v", err)
	}
	got, err = f.svc.AddPhotos(f.tech(), got.ID, []string{"photos/2.jpg", "photos/3.jpg"})
	if err != nil {
		t.Fatalf("AddPhotos: %v", err)
	}
	if want := []string{"photos/1.jpg", "photos/2.jpg", "photos/3.jpg"}; !reflect.DeepEqual(got.Photos, want) {
		t.Errorf("photos: got %v want %v", got.Photos, want)
	}

	_, err = f.svc.AddPhotos(f.tech(), d.ID, nil)
	expectViolation(t, err, "photos", CodeRequired)
}

func TestService_SignatureRequiresCompleted(t *testing.T) {
	f := newFixture()
	d := f.create(f.tech(), f.cpapPayload())

	_, err := f.svc.SetSignature(f.tech(), d.ID, "signatures/tech.png")
	expectViolation(t, err, "status", "invalid_state")

	if _, err := f.svc.ChangeStatus(f.tech(), d.ID, StatusPayload{Status: Some(StatusCompleted)}); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	got, err := f.svc.SetSignature(f.tech(), d.ID, "signatures/tech.png")
	if err != nil {
		t.Fatalf("SetSignature: %v", err)
	}
	if got.TechnicianSignature == nil || *got.TechnicianSignature != "signatures/tech.png" {
		t.Errorf("signature: %v", got.TechnicianSignature)
	}
}

func TestService_ListScopesTechnicians(t *testing.T) {
	f := newFixture()
	for i := 0; i < 3; i++ {
		f.create(f.tech(), f.cpapPayload())
	}
	p := f.cpapPayload()
	p.TechnicianID = Some(f.otherTech)
	f.create(f.admin(), p)

	page, err := f.svc.List(f.tech(), Filter{TechnicianID: &f.otherTech}, pagination.Parse("1", "2"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 || page.TotalPages != 2 {
		t.Errorf("technician page: total=%d items=%d pages=%d", page.Total, len(page.Items), page.TotalPages)
	}
	for _, d := range page.Items {
		if d.TechnicianID != f.techID {
			t.Errorf("leaked intervention of %s", d.TechnicianID)
		}
	}

	all, err := f.svc.List(f.admin(), Filter{}, pagination.Parse("", ""))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if all.Total != 4 || all.PerPage != pagination.DefaultPerPage {
		t.Errorf("admin page: total=%d per_page=%d", all.Total, all.PerPage)
	}
}

func TestService_ListOrderAndSearch(t *testing.T) {
	f := newFixture()
	early := f.cpapPayload()
	late := f.cpapPayload()
	late.ScheduledAt = Some(DateTime{testNow.Add(48 * time.Hour)})
	other := f.dir.addPatient("Claude", "Moreau")
	late.PatientID = Some(other)
	f.create(f.admin(), early)
	lateD := f.create(f.admin(), late)

	page, err := f.svc.List(f.admin(), Filter{}, pagination.Parse("1", "10"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Items[0].ID != lateD.ID {
		t.Error("expected most recently scheduled first")
	}

	page, err = f.svc.List(f.admin(), Filter{Search: "moreau"}, pagination.Parse("1", "10"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 1 || page.Items[0].PatientID != other {
		t.Errorf("search: got %d items", page.Total)
	}
}

func TestService_EmptyList(t *testing.T) {
	f := newFixture()
	page, err := f.svc.List(f.tech(), Filter{}, pagination.Parse("3", "10"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Items == nil || len(page.Items) != 0 || page.TotalPages != 0 {
		t.Errorf("unexpected empty page: %+v", page)
	}
}

func TestService_Stats(t *testing.T) {
	f := newFixture()
	d := f.create(f.tech(), f.cpapPayload())
	f.create(f.tech(), f.cpapPayload())
	p := f.cpapPayload()
	p.TechnicianID = Some(f.otherTech)
	f.create(f.admin(), p)
	if _, err := f.svc.ChangeStatus(f.tech(), d.ID, StatusPayload{Status: Some(StatusCompleted)}); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}

	st, err := f.svc.Stats(f.tech(), Filter{})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Total != 2 || st.ByStatus[StatusCompleted] != 1 || st.ByStatus[StatusScheduled] != 1 || st.ByTreatment[CPAP] != 2 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestService_PublishesStatusChanges(t *testing.T) {
	f := newFixture()
	d := f.create(f.tech(), f.cpapPayload())
	if _, err := f.svc.Update(f.tech(), d.ID, Payload{Remarks: Some("no status change")}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := f.svc.ChangeStatus(f.tech(), d.ID, StatusPayload{Status: Some(StatusInProgress)}); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}

	changes := f.pub.statusChanges()
	if len(changes) != 2 {
		t.Fatalf("expected 2 events, got %d", len(changes))
	}
	if changes[0].From != "" || changes[0].To != string(StatusScheduled) {
		t.Errorf("create event: %+v", changes[0])
	}
	if changes[1].From != string(StatusScheduled) || changes[1].To != string(StatusInProgress) || changes[1].ChangedBy != f.techID {
		t.Errorf("transition event: %+v", changes[1])
	}
}

func TestService_PublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture()
	f.pub.err = errBroker
	d, err := f.svc.Create(f.tech(), f.cpapPayload())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := f.repo.store[d.ID]; !ok {
		t.Error("expected intervention stored")
	}
}

func TestService_RecordReport(t *testing.T) {
	f := newFixture()
	d := f.create(f.tech(), f.cpapPayload())

	err := f.svc.RecordReport(f.tech(), d.ID, "https://reports.example/r.xlsx")
	expectViolation(t, err, "status", "invalid_state")
	if f.repo.store[d.ID].ReportURL != nil {
		t.Fatal("report_url must not be recorded before completion")
	}

	if _, err := f.svc.ChangeStatus(f.tech(), d.ID, StatusPayload{Status: Some(StatusCompleted)}); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if err := f.svc.RecordReport(f.tech(), d.ID, "https://reports.example/r.xlsx"); err != nil {
		t.Fatalf("RecordReport: %v", err)
	}
	if got := f.repo.store[d.ID].ReportURL; got == nil || *got != "https://reports.example/r.xlsx" {
		t.Errorf("report_url: %v", got)
	}
}

func TestService_RequiresPrincipal(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), f.cpapPayload())
	expectKind(t, err, apperror.KindAuthentication)
}
