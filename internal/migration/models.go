package migration

import (
	"fmt"

	assetdomain "github.com/smallbiznis/coverdesk/internal/asset/domain"
	auditdomain "github.com/smallbiznis/coverdesk/internal/audit/domain"
	brokerdomain "github.com/smallbiznis/coverdesk/internal/broker/domain"
	claimdomain "github.com/smallbiznis/coverdesk/internal/claim/domain"
	companydomain "github.com/smallbiznis/coverdesk/internal/company/domain"
	coveragedomain "github.com/smallbiznis/coverdesk/internal/coverage/domain"
	"github.com/smallbiznis/coverdesk/internal/identifier"
	invoicedomain "github.com/smallbiznis/coverdesk/internal/invoice/domain"
	notificationdomain "github.com/smallbiznis/coverdesk/internal/notification/domain"
	policydomain "github.com/smallbiznis/coverdesk/internal/policy/domain"
	settlementdomain "github.com/smallbiznis/coverdesk/internal/settlement/domain"
	userdomain "github.com/smallbiznis/coverdesk/internal/user/domain"
	"gorm.io/gorm"
)

// Models lists every persisted entity in dependency order.
func Models() []any {
	return []any{
		&userdomain.User{},
		&companydomain.InsuranceCompany{},
		&brokerdomain.Broker{},
		&companydomain.EmissionRight{},
		&companydomain.RetentionType{},
		&policydomain.Policy{},
		&companydomain.PolicyRetention{},
		&coveragedomain.Coverage{},
		&assetdomain.Asset{},
		&claimdomain.Claim{},
		&claimdomain.TimelineEntry{},
		&claimdomain.Document{},
		&settlementdomain.Settlement{},
		&invoicedomain.Invoice{},
		&notificationdomain.Notification{},
		&auditdomain.AuditLog{},
		&identifier.Counter{},
	}
}

// AutoMigrate builds the schema from the models. It backs sqlite and mysql
// deployments and tests; postgres runs the versioned SQL instead.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
