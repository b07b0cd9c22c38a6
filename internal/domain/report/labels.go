package report

import iv "github.com/oxycare/oxycare/internal/domain/intervention"

// Display labels used on the printed sheet.

var treatmentLabels = map[iv.Treatment]string{
	iv.Oxygenotherapy:  "Oxygénothérapie",
	iv.Ventilation:     "Ventilation",
	iv.CPAP:            "PPC",
	iv.Polygraphy:      "Polygraphie",
	iv.Polysomnography: "Polysomnographie",
}

var typeLabels = map[iv.InterventionType]string{
	iv.Install:          "Installation",
	iv.Uninstall:        "Désinstallation",
	iv.Adjust:           "Réglage",
	iv.Maintain:         "Entretien",
	iv.Replace:          "Remplacement",
	iv.Inspect:          "Contrôle",
	iv.ChangeParameters: "Changement de paramètres",
	iv.AdjustMask:       "Ajustement masque",
	iv.PrintReport:      "Tirage de rapport",
}

var equipmentLabels = map[iv.EquipmentState]string{
	iv.EquipmentFunctional: "Fonctionnel",
	iv.EquipmentDefective:  "Défaut",
	iv.EquipmentToReplace:  "À remplacer",
}

var concentratorLabels = map[iv.ConcentratorType]string{
	iv.ConcentratorFixed:    "Fixe",
	iv.ConcentratorPortable: "Portable",
}

var ventilationLabels = map[iv.VentilationMode]string{
	iv.VentilationAuto:   "Auto",
	iv.VentilationManual: "Manuel",
}

var maskLabels = map[iv.MaskType]string{
	iv.MaskNasal:       "Nasal",
	iv.MaskFacial:      "Facial",
	iv.MaskNasalPillow: "Narinaire",
}

var consumableLabels = map[iv.Consumable]string{
	iv.ConsumableFilters:     "Filtres",
	iv.ConsumableTubing:      "Tubulures",
	iv.ConsumableMasks:       "Masques",
	iv.ConsumableHumidifiers: "Humidificateurs",
	iv.ConsumableBatteries:   "Batteries",
	iv.ConsumableSensors:     "Capteurs",
}

var checkLabels = map[iv.SafetyCheck]string{
	iv.CheckConnections:    "Connexions",
	iv.CheckAlarms:         "Alarmes",
	iv.CheckFilters:        "Filtres",
	iv.CheckFlow:           "Débit",
	iv.CheckHumidification: "Humidification",
	iv.CheckCircuits:       "Circuits",
	iv.CheckPressures:      "Pressions",
	iv.CheckSensors:        "Capteurs",
	iv.CheckBatteries:      "Batteries",
	iv.CheckBattery:        "Batterie",
	iv.CheckRecording:      "Enregistrement",
	iv.CheckChannels:       "Canaux",
}

var testLabels = map[iv.DeviceTest]string{
	iv.TestFlow:            "Débit",
	iv.TestAlarms:          "Alarmes",
	iv.TestHumidification:  "Humidification",
	iv.TestBattery:         "Batterie",
	iv.TestConcentration:   "Concentration",
	iv.TestPressures:       "Pressions",
	iv.TestVolumes:         "Volumes",
	iv.TestSynchronization: "Synchronisation",
	iv.TestLeaks:           "Fuites",
	iv.TestSignal:          "Signal",
	iv.TestRecording:       "Enregistrement",
	iv.TestChannels:        "Canaux",
}
