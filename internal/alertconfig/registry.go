// Package alertconfig is the static alert taxonomy: for every alert type it
// declares the severity, category, delivery channels, escalation ladder, and
// required action. The table is fixed at build time; Validate runs at startup
// to catch a type added to models without a matching entry here.
package alertconfig

import (
	"fmt"
	"time"

	"mill-alert-service/internal/models"
)

// EscalationLevel is one rung of an alert's response ladder.
type EscalationLevel struct {
	Level          int
	Roles          []string
	TimeoutMinutes int
	RequiresAck    bool
}

// Timeout returns the level's timeout as a duration.
func (l EscalationLevel) Timeout() time.Duration {
	return time.Duration(l.TimeoutMinutes) * time.Minute
}

// AlertConfig is the immutable configuration for one alert type.
type AlertConfig struct {
	Type              models.AlertType
	Severity          models.Severity
	Category          models.Category
	Channels          []models.Channel
	Levels            []EscalationLevel
	ActionRequired    string
	ResponseTimeHours int
}

// MaxLevel returns the number of the last escalation level.
func (c AlertConfig) MaxLevel() int {
	return len(c.Levels)
}

var configs = map[models.AlertType]AlertConfig{
	models.AlertQCFailure: {
		Type:     models.AlertQCFailure,
		Severity: models.SeverityCritical,
		Category: models.CategoryQualitySafety,
		Channels: []models.Channel{models.ChannelPush, models.ChannelSMS, models.ChannelEmail, models.ChannelInApp},
		Levels: []EscalationLevel{
			{Level: 1, Roles: []string{models.RoleMillOperator}, TimeoutMinutes: 30, RequiresAck: true},
			{Level: 2, Roles: []string{models.RoleMillManager}, TimeoutMinutes: 120, RequiresAck: true},
			{Level: 3, Roles: []string{models.RoleFWGAInspector}, TimeoutMinutes: 1440, RequiresAck: true},
		},
		ActionRequired:    "Quarantine the failing batch and re-run fortification QC before release",
		ResponseTimeHours: 2,
	},
	models.AlertBatchContamination: {
		Type:     models.AlertBatchContamination,
		Severity: models.SeverityCritical,
		Category: models.CategoryQualitySafety,
		Channels: []models.Channel{models.ChannelPush, models.ChannelSMS, models.ChannelEmail, models.ChannelInApp},
		Levels: []EscalationLevel{
			{Level: 1, Roles: []string{models.RoleQCTechnician, models.RoleMillManager}, TimeoutMinutes: 15, RequiresAck: true},
			{Level: 2, Roles: []string{models.RoleFWGAInspector}, TimeoutMinutes: 60, RequiresAck: true},
		},
		ActionRequired:    "Halt production, isolate affected batches, and open a contamination report",
		ResponseTimeHours: 1,
	},
	models.AlertComplianceBreach: {
		Type:     models.AlertComplianceBreach,
		Severity: models.SeverityHigh,
		Category: models.CategoryCompliance,
		Channels: []models.Channel{models.ChannelPush, models.ChannelEmail, models.ChannelInApp},
		Levels: []EscalationLevel{
			{Level: 1, Roles: []string{models.RoleComplianceOfficer}, TimeoutMinutes: 120, RequiresAck: true},
			{Level: 2, Roles: []string{models.RoleMillManager}, TimeoutMinutes: 480, RequiresAck: true},
			{Level: 3, Roles: []string{models.RoleFWGAInspector}, TimeoutMinutes: 1440, RequiresAck: true},
		},
		ActionRequired:    "Review the compliance finding and file a corrective action plan",
		ResponseTimeHours: 8,
	},
	models.AlertLicenseExpiring: {
		Type:     models.AlertLicenseExpiring,
		Severity: models.SeverityMedium,
		Category: models.CategoryCompliance,
		Channels: []models.Channel{models.ChannelEmail, models.ChannelInApp},
		Levels: []EscalationLevel{
			{Level: 1, Roles: []string{models.RoleComplianceOfficer}, TimeoutMinutes: 2880, RequiresAck: false},
			{Level: 2, Roles: []string{models.RoleMillManager}, TimeoutMinutes: 4320, RequiresAck: true},
		},
		ActionRequired:    "Submit the license renewal application before the expiry date",
		ResponseTimeHours: 72,
	},
	models.AlertCalibrationOverdue: {
		Type:     models.AlertCalibrationOverdue,
		Severity: models.SeverityHigh,
		Category: models.CategoryMaintenance,
		Channels: []models.Channel{models.ChannelPush, models.ChannelEmail, models.ChannelInApp},
		Levels: []EscalationLevel{
			{Level: 1, Roles: []string{models.RoleMaintenanceLead}, TimeoutMinutes: 240, RequiresAck: true},
			{Level: 2, Roles: []string{models.RoleMillManager}, TimeoutMinutes: 1440, RequiresAck: true},
		},
		ActionRequired:    "Schedule calibration of the overdue instrument and log the certificate",
		ResponseTimeHours: 24,
	},
	models.AlertEquipmentFailure: {
		Type:     models.AlertEquipmentFailure,
		Severity: models.SeverityHigh,
		Category: models.CategoryMaintenance,
		Channels: []models.Channel{models.ChannelPush, models.ChannelSMS, models.ChannelInApp},
		Levels: []EscalationLevel{
			{Level: 1, Roles: []string{models.RoleMaintenanceLead}, TimeoutMinutes: 60, RequiresAck: true},
			{Level: 2, Roles: []string{models.RoleMillManager}, TimeoutMinutes: 240, RequiresAck: true},
		},
		ActionRequired:    "Dispatch maintenance to the failed equipment and record downtime",
		ResponseTimeHours: 4,
	},
	models.AlertPremixStockLow: {
		Type:     models.AlertPremixStockLow,
		Severity: models.SeverityMedium,
		Category: models.CategoryProduction,
		Channels: []models.Channel{models.ChannelPush, models.ChannelEmail, models.ChannelInApp},
		Levels: []EscalationLevel{
			{Level: 1, Roles: []string{models.RoleMillOperator}, TimeoutMinutes: 480, RequiresAck: false},
			{Level: 2, Roles: []string{models.RoleProcurementOfficer}, TimeoutMinutes: 1440, RequiresAck: true},
		},
		ActionRequired:    "Raise a premix purchase requisition before stock runs out",
		ResponseTimeHours: 24,
	},
	models.AlertProductionShortfall: {
		Type:     models.AlertProductionShortfall,
		Severity: models.SeverityLow,
		Category: models.CategoryProduction,
		Channels: []models.Channel{models.ChannelEmail, models.ChannelInApp},
		Levels: []EscalationLevel{
			{Level: 1, Roles: []string{models.RoleMillManager}, TimeoutMinutes: 1440, RequiresAck: false},
		},
		ActionRequired:    "Review the production plan against the monthly fortified output target",
	},
	models.AlertRFPDeadline: {
		Type:     models.AlertRFPDeadline,
		Severity: models.SeverityMedium,
		Category: models.CategoryProcurement,
		Channels: []models.Channel{models.ChannelEmail, models.ChannelInApp},
		Levels: []EscalationLevel{
			{Level: 1, Roles: []string{models.RoleProcurementOfficer}, TimeoutMinutes: 720, RequiresAck: true},
			{Level: 2, Roles: []string{models.RoleMillManager}, TimeoutMinutes: 1440, RequiresAck: true},
		},
		ActionRequired:    "Finalize and submit the bid before the RFP closing time",
		ResponseTimeHours: 24,
	},
	models.AlertTrainingExpired: {
		Type:     models.AlertTrainingExpired,
		Severity: models.SeverityLow,
		Category: models.CategoryTraining,
		Channels: []models.Channel{models.ChannelEmail, models.ChannelInApp},
		Levels: []EscalationLevel{
			{Level: 1, Roles: []string{models.RoleTrainingCoordinator}, TimeoutMinutes: 2880, RequiresAck: false},
			{Level: 2, Roles: []string{models.RoleMillManager}, TimeoutMinutes: 10080, RequiresAck: false},
		},
		ActionRequired:    "Schedule a refresher session for staff with lapsed certification",
	},
}

// ErrUnknownAlertType is returned for a type outside the configured taxonomy.
var ErrUnknownAlertType = fmt.Errorf("unknown alert type")

// Config returns the configuration for an alert type.
func Config(t models.AlertType) (AlertConfig, error) {
	cfg, ok := configs[t]
	if !ok {
		return AlertConfig{}, fmt.Errorf("%w: %s", ErrUnknownAlertType, t)
	}
	return cfg, nil
}

// All returns the configurations for every alert type.
func All() []AlertConfig {
	out := make([]AlertConfig, 0, len(configs))
	for _, t := range models.AllAlertTypes() {
		if cfg, ok := configs[t]; ok {
			out = append(out, cfg)
		}
	}
	return out
}

// Validate checks the table against the closed type set: every type has
// exactly one config, every config has a non-empty ladder numbered 1..N
// contiguously with positive timeouts, and at least one channel. Called once
// at startup so a bad table fails the process, not a runtime request.
func Validate() error {
	for _, t := range models.AllAlertTypes() {
		cfg, ok := configs[t]
		if !ok {
			return fmt.Errorf("alert type %s has no configuration", t)
		}
		if len(cfg.Channels) == 0 {
			return fmt.Errorf("alert type %s has no channels", t)
		}
		if len(cfg.Levels) == 0 {
			return fmt.Errorf("alert type %s has no escalation levels", t)
		}
		for i, lvl := range cfg.Levels {
			if lvl.Level != i+1 {
				return fmt.Errorf("alert type %s: level %d at position %d, want %d", t, lvl.Level, i, i+1)
			}
			if lvl.TimeoutMinutes <= 0 {
				return fmt.Errorf("alert type %s level %d: timeout must be positive", t, lvl.Level)
			}
			if len(lvl.Roles) == 0 {
				return fmt.Errorf("alert type %s level %d: no roles", t, lvl.Level)
			}
		}
	}
	if len(configs) != len(models.AllAlertTypes()) {
		return fmt.Errorf("config table has %d entries for %d alert types", len(configs), len(models.AllAlertTypes()))
	}
	return nil
}
