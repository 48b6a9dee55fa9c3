package models

import (
	"strings"
	"time"
)

// AlertType identifies one kind of mill operations alert. The set is closed:
// every type listed here has exactly one entry in the alertconfig table, and
// startup validation plus the config completeness test keep the two in sync.
type AlertType string

const (
	AlertQCFailure           AlertType = "QC_FAILURE"
	AlertBatchContamination  AlertType = "BATCH_CONTAMINATION"
	AlertComplianceBreach    AlertType = "COMPLIANCE_BREACH"
	AlertLicenseExpiring     AlertType = "LICENSE_EXPIRING"
	AlertCalibrationOverdue  AlertType = "CALIBRATION_OVERDUE"
	AlertEquipmentFailure    AlertType = "EQUIPMENT_FAILURE"
	AlertPremixStockLow      AlertType = "PREMIX_STOCK_LOW"
	AlertProductionShortfall AlertType = "PRODUCTION_SHORTFALL"
	AlertRFPDeadline         AlertType = "RFP_DEADLINE"
	AlertTrainingExpired     AlertType = "TRAINING_EXPIRED"
)

// AllAlertTypes returns every known alert type.
func AllAlertTypes() []AlertType {
	return []AlertType{
		AlertQCFailure,
		AlertBatchContamination,
		AlertComplianceBreach,
		AlertLicenseExpiring,
		AlertCalibrationOverdue,
		AlertEquipmentFailure,
		AlertPremixStockLow,
		AlertProductionShortfall,
		AlertRFPDeadline,
		AlertTrainingExpired,
	}
}

var acronyms = map[string]bool{"QC": true, "RFP": true}

// Humanize turns QC_FAILURE into "QC Failure" for message fallbacks.
func (t AlertType) Humanize() string {
	words := strings.Split(string(t), "_")
	for i, w := range words {
		if acronyms[w] {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Rank orders severities for sorting, highest first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

type Category string

const (
	CategoryQualitySafety Category = "QUALITY_SAFETY"
	CategoryCompliance    Category = "COMPLIANCE"
	CategoryMaintenance   Category = "MAINTENANCE"
	CategoryProduction    Category = "PRODUCTION"
	CategoryProcurement   Category = "PROCUREMENT"
	CategoryTraining      Category = "TRAINING"
)

// Channel is a notification delivery medium.
type Channel string

const (
	ChannelPush  Channel = "PUSH"
	ChannelSMS   Channel = "SMS"
	ChannelEmail Channel = "EMAIL"
	ChannelInApp Channel = "IN_APP"
)

type AlertStatus string

const (
	AlertPending      AlertStatus = "PENDING"
	AlertAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertInProgress   AlertStatus = "IN_PROGRESS"
	AlertResolved     AlertStatus = "RESOLVED"
	AlertEscalated    AlertStatus = "ESCALATED"
)

// Open reports whether the alert is still subject to timeout escalation.
func (s AlertStatus) Open() bool {
	return s == AlertPending || s == AlertEscalated
}

// Role names resolvable through the identity directory.
const (
	RoleMillOperator        = "MILL_OPERATOR"
	RoleQCTechnician        = "QC_TECHNICIAN"
	RoleMillManager         = "MILL_MANAGER"
	RoleMaintenanceLead     = "MAINTENANCE_LEAD"
	RoleComplianceOfficer   = "COMPLIANCE_OFFICER"
	RoleProcurementOfficer  = "PROCUREMENT_OFFICER"
	RoleTrainingCoordinator = "TRAINING_COORDINATOR"
	RoleFWGAInspector       = "FWGA_INSPECTOR"
)

// AlertContext carries the domain payload attached to one raised alert.
type AlertContext struct {
	MillID   int64             `json:"mill_id,omitempty"`
	BatchID  string            `json:"batch_id,omitempty"`
	Message  string            `json:"message,omitempty"`
	Summary  string            `json:"summary,omitempty"`
	Link     string            `json:"link,omitempty"`
	Deadline *time.Time        `json:"deadline,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// EscalationRecord is one append-only entry of an alert's escalation history.
type EscalationRecord struct {
	Level      int       `json:"level"`
	NotifiedAt time.Time `json:"notified_at"`
	Roles      []string  `json:"roles"`
}

// Alert is a persisted record of a detected condition requiring attention.
// Alerts are never deleted; resolution closes them but keeps them for audit.
type Alert struct {
	ID                  string             `json:"id"`
	Type                AlertType          `json:"type"`
	Severity            Severity           `json:"severity"`
	Category            Category           `json:"category"`
	Status              AlertStatus        `json:"status"`
	CurrentLevel        int                `json:"current_level"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
	LastLevelNotifiedAt time.Time          `json:"last_level_notified_at"`
	AcknowledgedAt      *time.Time         `json:"acknowledged_at,omitempty"`
	AcknowledgedBy      string             `json:"acknowledged_by,omitempty"`
	ResolvedAt          *time.Time         `json:"resolved_at,omitempty"`
	ResolvedBy          string             `json:"resolved_by,omitempty"`
	Context             AlertContext       `json:"context"`
	History             []EscalationRecord `json:"escalation_history"`
}
