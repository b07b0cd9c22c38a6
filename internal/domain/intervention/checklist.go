package intervention

// Consumable is a key of consumables_used.
type Consumable string

const (
	ConsumableFilters     Consumable = "Filters"
	ConsumableTubing      Consumable = "Tubing"
	ConsumableMasks       Consumable = "Masks"
	ConsumableHumidifiers Consumable = "Humidifiers"
	ConsumableBatteries   Consumable = "Batteries"
	ConsumableSensors     Consumable = "Sensors"
)

// Consumables is the display order of consumables_used keys.
var Consumables = []Consumable{
	ConsumableFilters, ConsumableTubing, ConsumableMasks,
	ConsumableHumidifiers, ConsumableBatteries, ConsumableSensors,
}

// SafetyCheck is a key of safety_checks.
type SafetyCheck string

const (
	CheckConnections    SafetyCheck = "Connections"
	CheckAlarms         SafetyCheck = "Alarms"
	CheckFilters        SafetyCheck = "Filters"
	CheckFlow           SafetyCheck = "Flow"
	CheckHumidification SafetyCheck = "Humidification"
	CheckCircuits       SafetyCheck = "Circuits"
	CheckPressures      SafetyCheck = "Pressures"
	CheckSensors        SafetyCheck = "Sensors"
	CheckBatteries      SafetyCheck = "Batteries"
	CheckBattery        SafetyCheck = "Battery"
	CheckRecording      SafetyCheck = "Recording"
	CheckChannels       SafetyCheck = "Channels"
)

// DeviceTest is a key of tests_performed.
type DeviceTest string

const (
	TestFlow            DeviceTest = "Flow"
	TestAlarms          DeviceTest = "Alarms"
	TestHumidification  DeviceTest = "Humidification"
	TestBattery         DeviceTest = "Battery"
	TestConcentration   DeviceTest = "Concentration"
	TestPressures       DeviceTest = "Pressures"
	TestVolumes         DeviceTest = "Volumes"
	TestSynchronization DeviceTest = "Synchronization"
	TestLeaks           DeviceTest = "Leaks"
	TestSignal          DeviceTest = "Signal"
	TestRecording       DeviceTest = "Recording"
	TestChannels        DeviceTest = "Channels"
)

var safetyChecks = map[Treatment][]SafetyCheck{
	Oxygenotherapy:  {CheckConnections, CheckAlarms, CheckFilters, CheckFlow, CheckHumidification},
	Ventilation:     {CheckAlarms, CheckCircuits, CheckPressures, CheckSensors, CheckBatteries},
	CPAP:            {CheckAlarms, CheckCircuits, CheckPressures, CheckSensors, CheckBatteries},
	Polygraphy:      {CheckConnections, CheckSensors, CheckBattery, CheckRecording},
	Polysomnography: {CheckConnections, CheckSensors, CheckBattery, CheckRecording, CheckChannels},
}

var deviceTests = map[Treatment][]DeviceTest{
	Oxygenotherapy:  {TestFlow, TestAlarms, TestHumidification, TestBattery, TestConcentration},
	Ventilation:     {TestPressures, TestVolumes, TestAlarms, TestSynchronization, TestLeaks},
	CPAP:            {TestPressures, TestLeaks, TestAlarms, TestHumidification, TestSynchronization},
	Polygraphy:      {TestSignal, TestRecording, TestBattery, TestSynchronization},
	Polysomnography: {TestSignal, TestRecording, TestBattery, TestSynchronization, TestChannels},
}

// SafetyChecksFor returns the safety check keys recorded for t, in display order.
func SafetyChecksFor(t Treatment) []SafetyCheck { return safetyChecks[t] }

// DeviceTestsFor returns the test keys recorded for t, in display order.
func DeviceTestsFor(t Treatment) []DeviceTest { return deviceTests[t] }

// ParamOxygenFlow is the parameters key holding the prescribed flow in L/min.
const ParamOxygenFlow = "oxygen_flow"
