package intervention

import (
	"encoding/json"
	"strings"
)

// Enumerations are stored and emitted with their canonical English values.
// On input, the legacy French codes are accepted and normalized; anything
// unrecognised is kept verbatim so validation can reject it as a field
// violation rather than a decoding failure.

type Treatment string

const (
	Oxygenotherapy  Treatment = "Oxygenotherapy"
	Ventilation     Treatment = "Ventilation"
	CPAP            Treatment = "CPAP"
	Polygraphy      Treatment = "Polygraphy"
	Polysomnography Treatment = "Polysomnography"
)

var Treatments = []Treatment{Oxygenotherapy, Ventilation, CPAP, Polygraphy, Polysomnography}

var treatmentAliases = aliases(Treatments, map[string]string{
	"oxygénothérapie":  string(Oxygenotherapy),
	"oxygenotherapie":  string(Oxygenotherapy),
	"ppc":              string(CPAP),
	"polygraphie":      string(Polygraphy),
	"polysomnographie": string(Polysomnography),
})

func (t Treatment) Valid() bool { return member(Treatments, t) }

func (t *Treatment) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, (*string)(t), treatmentAliases)
}

type InterventionType string

const (
	Install          InterventionType = "Install"
	Uninstall        InterventionType = "Uninstall"
	Adjust           InterventionType = "Adjust"
	Maintain         InterventionType = "Maintain"
	Replace          InterventionType = "Replace"
	Inspect          InterventionType = "Inspect"
	ChangeParameters InterventionType = "ChangeParameters"
	AdjustMask       InterventionType = "AdjustMask"
	PrintReport      InterventionType = "PrintReport"
)

var InterventionTypes = []InterventionType{
	Install, Uninstall, Adjust, Maintain, Replace, Inspect, ChangeParameters, AdjustMask, PrintReport,
}

var interventionTypeAliases = aliases(InterventionTypes, map[string]string{
	"installation":             string(Install),
	"désinstallation":          string(Uninstall),
	"desinstallation":          string(Uninstall),
	"réglage":                  string(Adjust),
	"reglage":                  string(Adjust),
	"entretien":                string(Maintain),
	"remplacement":             string(Replace),
	"contrôle":                 string(Inspect),
	"controle":                 string(Inspect),
	"changement de paramètres": string(ChangeParameters),
	"changement de parametres": string(ChangeParameters),
	"ajustement masque":        string(AdjustMask),
	"tirage de rapport":        string(PrintReport),
})

func (t InterventionType) Valid() bool { return member(InterventionTypes, t) }

func (t *InterventionType) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, (*string)(t), interventionTypeAliases)
}

// allowedTypes lists, per treatment, the intervention types that may be
// recorded against it.
var allowedTypes = map[Treatment][]InterventionType{
	Oxygenotherapy:  {Install, Adjust, Maintain, Replace, Inspect, ChangeParameters, AdjustMask, PrintReport},
	Ventilation:     {Install, Adjust, Maintain, Inspect, ChangeParameters, AdjustMask, PrintReport},
	CPAP:            {Install, Adjust, Replace, Maintain, Inspect, ChangeParameters, AdjustMask, PrintReport},
	Polygraphy:      {Install, Uninstall},
	Polysomnography: {Install, Uninstall},
}

// AllowedTypes returns the intervention types permitted for t.
func AllowedTypes(t Treatment) []InterventionType {
	return allowedTypes[t]
}

// UsesConcentrator reports whether concentrator_type applies to t.
func (t Treatment) UsesConcentrator() bool { return t == Oxygenotherapy }

// UsesVentilation reports whether ventilation_mode and mask_type apply to t.
func (t Treatment) UsesVentilation() bool { return t == Ventilation || t == CPAP }

type Status string

const (
	StatusScheduled     Status = "Scheduled"
	StatusInProgress    Status = "InProgress"
	StatusCompleted     Status = "Completed"
	StatusPatientAbsent Status = "PatientAbsent"
	StatusCancelled     Status = "Cancelled"
	StatusRescheduled   Status = "Rescheduled"
	StatusPartial       Status = "Partial"
)

var Statuses = []Status{
	StatusScheduled, StatusInProgress, StatusCompleted, StatusPatientAbsent,
	StatusCancelled, StatusRescheduled, StatusPartial,
}

var statusAliases = aliases(Statuses, map[string]string{
	"planifiee":      string(StatusScheduled),
	"en_cours":       string(StatusInProgress),
	"terminee":       string(StatusCompleted),
	"patient_absent": string(StatusPatientAbsent),
	"annulee":        string(StatusCancelled),
	"reportee":       string(StatusRescheduled),
	"partielle":      string(StatusPartial),
})

func (s Status) Valid() bool { return member(Statuses, s) }

func (s *Status) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, (*string)(s), statusAliases)
}

// ParseStatus normalizes a status from a query string.
func ParseStatus(s string) (Status, bool) {
	st := Status(normalize(s, statusAliases))
	return st, st.Valid()
}

// ParseTreatment normalizes a treatment from a query string.
func ParseTreatment(s string) (Treatment, bool) {
	t := Treatment(normalize(s, treatmentAliases))
	return t, t.Valid()
}

// ParseInterventionType normalizes an intervention type from a query string.
func ParseInterventionType(s string) (InterventionType, bool) {
	t := InterventionType(normalize(s, interventionTypeAliases))
	return t, t.Valid()
}

type EquipmentState string

const (
	EquipmentFunctional EquipmentState = "Functional"
	EquipmentDefective  EquipmentState = "Defective"
	EquipmentToReplace  EquipmentState = "ToReplace"
)

var EquipmentStates = []EquipmentState{EquipmentFunctional, EquipmentDefective, EquipmentToReplace}

var equipmentStateAliases = aliases(EquipmentStates, map[string]string{
	"fonctionnel": string(EquipmentFunctional),
	"défaut":      string(EquipmentDefective),
	"defaut":      string(EquipmentDefective),
	"à remplacer": string(EquipmentToReplace),
	"a remplacer": string(EquipmentToReplace),
})

func (e EquipmentState) Valid() bool { return member(EquipmentStates, e) }

func (e *EquipmentState) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, (*string)(e), equipmentStateAliases)
}

type ConcentratorType string

const (
	ConcentratorFixed    ConcentratorType = "Fixed"
	ConcentratorPortable ConcentratorType = "Portable"
)

var ConcentratorTypes = []ConcentratorType{ConcentratorFixed, ConcentratorPortable}

var concentratorAliases = aliases(ConcentratorTypes, map[string]string{
	"fixe": string(ConcentratorFixed),
})

func (c ConcentratorType) Valid() bool { return member(ConcentratorTypes, c) }

func (c *ConcentratorType) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, (*string)(c), concentratorAliases)
}

type VentilationMode string

const (
	VentilationAuto   VentilationMode = "Auto"
	VentilationManual VentilationMode = "Manual"
)

var VentilationModes = []VentilationMode{VentilationAuto, VentilationManual}

var ventilationModeAliases = aliases(VentilationModes, map[string]string{
	"manuel": string(VentilationManual),
})

func (v VentilationMode) Valid() bool { return member(VentilationModes, v) }

func (v *VentilationMode) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, (*string)(v), ventilationModeAliases)
}

type MaskType string

const (
	MaskNasal       MaskType = "Nasal"
	MaskFacial      MaskType = "Facial"
	MaskNasalPillow MaskType = "NasalPillow"
)

var MaskTypes = []MaskType{MaskNasal, MaskFacial, MaskNasalPillow}

var maskTypeAliases = aliases(MaskTypes, map[string]string{
	"narinaire":    string(MaskNasalPillow),
	"nasal-pillow": string(MaskNasalPillow),
	"nasal pillow": string(MaskNasalPillow),
})

func (m MaskType) Valid() bool { return member(MaskTypes, m) }

func (m *MaskType) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, (*string)(m), maskTypeAliases)
}

func member[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// aliases builds a lowercase lookup covering the canonical values and the
// given legacy spellings.
func aliases[T ~string](canonical []T, legacy map[string]string) map[string]string {
	out := make(map[string]string, len(canonical)+len(legacy))
	for _, c := range canonical {
		out[strings.ToLower(string(c))] = string(c)
	}
	for k, v := range legacy {
		out[strings.ToLower(k)] = v
	}
	return out
}

func normalize(s string, lookup map[string]string) string {
	s = strings.TrimSpace(s)
	if v, ok := lookup[strings.ToLower(s)]; ok {
		return v
	}
	return s
}

func unmarshalEnum(b []byte, dst *string, lookup map[string]string) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*dst = normalize(s, lookup)
	return nil
}
