package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActionType string

const (
	ActionCreate         ActionType = "create"
	ActionUpdate         ActionType = "update"
	ActionDelete         ActionType = "delete"
	ActionStatusChange   ActionType = "status_change"
	ActionPayment        ActionType = "payment"
	ActionDocumentUpload ActionType = "document_upload"
)

type EntityType string

const (
	EntityPolicy           EntityType = "policy"
	EntityClaim            EntityType = "claim"
	EntityInvoice          EntityType = "invoice"
	EntityAsset            EntityType = "asset"
	EntitySettlement       EntityType = "settlement"
	EntityCoverage         EntityType = "coverage"
	EntityUser             EntityType = "user"
	EntityInsuranceCompany EntityType = "insurance_company"
	EntityBroker           EntityType = "broker"
	EntityNotification     EntityType = "notification"
	EntityEmissionRight    EntityType = "emission_right"
	EntityRetentionType    EntityType = "retention_type"
)

const (
	ActorTypeUser   = "user"
	ActorTypeSystem = "system"
)

type AuditLog struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorType   string            `gorm:"type:varchar(16);not null" json:"actor_type"`
	ActorID     *snowflake.ID     `gorm:"index" json:"actor_id,omitempty"`
	ActionType  ActionType        `gorm:"type:varchar(32);not null;index" json:"action_type"`
	EntityType  EntityType        `gorm:"type:varchar(32);not null;index:idx_audit_entity" json:"entity_type"`
	EntityID    snowflake.ID      `gorm:"not null;index:idx_audit_entity" json:"entity_id"`
	Description string            `gorm:"type:text" json:"description"`
	OldValues   datatypes.JSONMap `json:"old_values,omitempty"`
	NewValues   datatypes.JSONMap `json:"new_values,omitempty"`
	RequestID   *string           `json:"request_id,omitempty"`
	IPAddress   *string           `json:"ip_address,omitempty"`
	UserAgent   *string           `json:"user_agent,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// Entry is one mutation to record. ActorID zero means the system acted.
type Entry struct {
	ActorID     snowflake.ID
	ActionType  ActionType
	EntityType  EntityType
	EntityID    snowflake.ID
	Description string
	OldValues   map[string]any
	NewValues   map[string]any
}

// Snapshot flattens v into its JSON object form.
func Snapshot(v any) map[string]any {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

// Changes keeps only the keys whose values differ between old and new.
func Changes(old, new map[string]any) (map[string]any, map[string]any) {
	before := map[string]any{}
	after := map[string]any{}
	for k, nv := range new {
		ov, ok := old[k]
		if ok && equalJSON(ov, nv) {
			continue
		}
		before[k] = ov
		after[k] = nv
	}
	return before, after
}

func equalJSON(a, b any) bool {
	ab, err1 := json.Marshal(a)
	bb, err2 := json.Marshal(b)
	return err1 == nil && err2 == nil && string(ab) == string(bb)
}
