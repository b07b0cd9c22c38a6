// Package report compiles a completed intervention into its "Fiche Contrôle"
// compliance document and stores the rendered workbook.
package report

import (
	"strconv"
	"strings"
	"time"

	"github.com/oxycare/oxycare/internal/domain/directory"
	"github.com/oxycare/oxycare/internal/domain/intervention"
	"github.com/oxycare/oxycare/internal/domain/settings"
)

// Fixed header metadata of the control sheet.
const (
	Title       = "Fiche Contrôle"
	FormCode    = "R02-F101-FI"
	FormVersion = "01"
	PageLabel   = "1/1"
)

// SectionKind identifies a block of the document.
type SectionKind string

const (
	SectionHeader      SectionKind = "header"
	SectionPatient     SectionKind = "patient"
	SectionTreatment   SectionKind = "treatment"
	SectionDevice      SectionKind = "device"
	SectionSettings    SectionKind = "settings"
	SectionConsumables SectionKind = "consumables"
	SectionChecks      SectionKind = "checks"
	SectionRemarks     SectionKind = "remarks"
	SectionSignature   SectionKind = "signature"
)

// Field is one labelled value.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Section is one block of the document. Fields carry label/value pairs;
// Columns and Rows carry tabular content such as the checklist columns.
type Section struct {
	Kind    SectionKind `json:"kind"`
	Title   string      `json:"title,omitempty"`
	Fields  []Field     `json:"fields,omitempty"`
	Columns []string    `json:"columns,omitempty"`
	Rows    [][]string  `json:"rows,omitempty"`
	Text    string      `json:"text,omitempty"`
}

// Document is the ordered compliance document.
type Document struct {
	InterventionID string    `json:"intervention_id"`
	GeneratedAt    time.Time `json:"generated_at"`
	Sections       []Section `json:"sections"`
}

// Section returns the first section of the given kind.
func (d Document) Section(kind SectionKind) (Section, bool) {
	for _, s := range d.Sections {
		if s.Kind == kind {
			return s, true
		}
	}
	return Section{}, false
}

// Compile assembles the document for d. It does not validate: d is expected
// to satisfy the intervention invariants already. Sections without a
// populated value are left out; the header and signature block are always
// present.
func Compile(d *intervention.Detail, now time.Time) Document {
	doc := Document{
		InterventionID: d.ID.String(),
		GeneratedAt:    now,
	}
	doc.Sections = append(doc.Sections, header(now))

	for _, s := range []Section{
		patientSection(d.Patient, d.Technician),
		treatmentSection(d.Intervention),
		deviceSection(d.Device),
		settingsSection(d.Settings),
		consumablesSection(d.Intervention),
		checksSection(d.Intervention),
		remarksSection(d.Remarks),
	} {
		if populated(s) {
			doc.Sections = append(doc.Sections, s)
		}
	}

	doc.Sections = append(doc.Sections, Section{
		Kind:    SectionSignature,
		Columns: []string{"Signature Technicien", "Signature Patient"},
	})
	return doc
}

func populated(s Section) bool {
	return len(s.Fields) > 0 || len(s.Rows) > 0 || s.Text != ""
}

func header(now time.Time) Section {
	return Section{
		Kind:  SectionHeader,
		Title: Title,
		Fields: []Field{
			{Label: "Code", Value: FormCode},
			{Label: "Version", Value: FormVersion},
			{Label: "Date", Value: now.Format("02/01/2006")},
			{Label: "Page", Value: PageLabel},
		},
	}
}

// fields collects label/value pairs, dropping blank values.
type fields []Field

func (f *fields) add(label, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*f = append(*f, Field{Label: label, Value: value})
	}
}

func (f *fields) addPtr(label string, value *string) {
	if value != nil {
		f.add(label, *value)
	}
}

func (f *fields) addNumber(label string, value *float64) {
	if value != nil {
		f.add(label, formatNumber(*value))
	}
}

func patientSection(p *directory.Patient, t *directory.Technician) Section {
	var f fields
	if p != nil {
		f.addPtr("Nom", p.LastName)
		f.addPtr("Prénom", p.FirstName)
		if p.BirthDate != nil {
			f.add("Date de naissance", p.BirthDate.Format("02/01/2006"))
		}
		f.add("Adresse", joinNonEmpty(", ", p.Address, p.City))
		f.addPtr("Téléphone", p.Phone)
		f.addPtr("Mutuelle", p.Insurer)
	}
	if t != nil {
		f.add("Technicien", t.FullName())
	}
	return Section{Kind: SectionPatient, Title: "INFORMATION SUR LE PATIENT", Fields: f}
}

func treatmentSection(iv *intervention.Intervention) Section {
	var f fields
	f.add("Traitement prescrit", treatmentLabels[iv.Treatment])
	f.add("Type d'intervention", typeLabels[iv.InterventionType])

	switch {
	case iv.Treatment.UsesConcentrator():
		if flow, ok := iv.Parameters[intervention.ParamOxygenFlow]; ok {
			f.add("Débit d'oxygène (L/min)", formatNumber(flow))
		}
		if iv.ConcentratorType != nil {
			f.add("Type de concentrateur", concentratorLabels[*iv.ConcentratorType])
		}
	case iv.Treatment.UsesVentilation():
		if iv.VentilationMode != nil {
			f.add("Mode de ventilation", ventilationLabels[*iv.VentilationMode])
		}
		if iv.MaskType != nil {
			f.add("Type de masque", maskLabels[*iv.MaskType])
		}
	}
	if iv.EquipmentState != nil {
		f.add("État de l'équipement", equipmentLabels[*iv.EquipmentState])
	}
	return Section{Kind: SectionTreatment, Title: "INFORMATION SUR LE TRAITEMENT PRESCRIT", Fields: f}
}

func deviceSection(d *directory.Device) Section {
	var f fields
	if d != nil {
		f.addPtr("Désignation", d.Designation)
		f.addPtr("Référence", d.Reference)
		f.addPtr("Numéro de série", d.SerialNumber)
	}
	return Section{Kind: SectionDevice, Title: "INFORMATION SUR LE DISPOSITIF", Fields: f}
}

func settingsSection(r *settings.Record) Section {
	var f fields
	if r != nil {
		f.addNumber("Pression maximale (Pmax)", r.MaxPressure)
		f.addNumber("Pression minimale (Pmin)", r.MinPressure)
		f.addNumber("Pression de rampe (P ramp)", r.RampPressure)
		f.addNumber("Humidification (HU)", r.Humidity)
		f.addNumber("Réserve expiratoire (RE)", r.ExpiratoryReserve)
		f.addPtr("Commentaire", r.Comment)
	}
	return Section{Kind: SectionSettings, Title: "RÉGLAGES DE L'APPAREIL", Fields: f}
}

func consumablesSection(iv *intervention.Intervention) Section {
	var rows [][]string
	for _, c := range intervention.Consumables {
		if iv.ConsumablesUsed[c] {
			rows = append(rows, []string{consumableLabels[c]})
		}
	}
	return Section{Kind: SectionConsumables, Title: "CONSOMMABLES UTILISÉS", Rows: rows}
}

// checksSection lays the safety checks and the tests performed out side by
// side, one ticked entry per cell.
func checksSection(iv *intervention.Intervention) Section {
	var left, right []string
	for _, c := range intervention.SafetyChecksFor(iv.Treatment) {
		if iv.SafetyChecks[c] {
			left = append(left, "☑ "+checkLabels[c])
		}
	}
	for _, t := range intervention.DeviceTestsFor(iv.Treatment) {
		if iv.TestsPerformed[t] {
			right = append(right, "☑ "+testLabels[t])
		}
	}

	n := max(len(left), len(right))
	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, []string{at(left, i), at(right, i)})
	}
	return Section{
		Kind:    SectionChecks,
		Title:   "VÉRIFICATIONS ET TESTS EFFECTUÉS",
		Columns: []string{"Vérifications de sécurité", "Tests effectués"},
		Rows:    rows,
	}
}

func remarksSection(remarks *string) Section {
	s := Section{Kind: SectionRemarks, Title: "REMARQUES"}
	if remarks != nil {
		s.Text = strings.TrimSpace(*remarks)
	}
	return s
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

func joinNonEmpty(sep string, parts ...*string) string {
	var out []string
	for _, p := range parts {
		if p != nil && strings.TrimSpace(*p) != "" {
			out = append(out, strings.TrimSpace(*p))
		}
	}
	return strings.Join(out, sep)
}

// formatNumber renders v with a decimal comma and no trailing zeros.
func formatNumber(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', -1, 64), ".", ",", 1)
}
