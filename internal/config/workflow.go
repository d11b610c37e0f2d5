package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// WorkflowConfig carries the tunable claim and billing thresholds.
type WorkflowConfig struct {
	SLA        SLAConfig        `mapstructure:"sla"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Invoice    InvoiceConfig    `mapstructure:"invoice"`
	Alerts     AlertConfig      `mapstructure:"alerts"`
}

type SLAConfig struct {
	DocumentDeadlineDays        int `mapstructure:"documentDeadlineDays"`
	MaxDays                     int `mapstructure:"maxDays"`
	InsurerResponseBusinessDays int `mapstructure:"insurerResponseBusinessDays"`
}

type SettlementConfig struct {
	PaymentWindowHours int `mapstructure:"paymentWindowHours"`
}

// PaymentWindow is the time allowed between signature and payment.
func (c SettlementConfig) PaymentWindow() time.Duration {
	return time.Duration(c.PaymentWindowHours) * time.Hour
}

type InvoiceConfig struct {
	DefaultDueDays int `mapstructure:"defaultDueDays"`
}

type AlertConfig struct {
	PolicyExpiringDays int `mapstructure:"policyExpiringDays"`
	PaymentDueDays     int `mapstructure:"paymentDueDays"`
}

func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		SLA: SLAConfig{
			DocumentDeadlineDays:        8,
			MaxDays:                     30,
			InsurerResponseBusinessDays: 8,
		},
		Settlement: SettlementConfig{PaymentWindowHours: 72},
		Invoice:    InvoiceConfig{DefaultDueDays: 30},
		Alerts: AlertConfig{
			PolicyExpiringDays: 30,
			PaymentDueDays:     7,
		},
	}
}

type WorkflowConfigHolder struct {
	current atomic.Value // holds WorkflowConfig
}

// NewStaticWorkflowConfig returns a holder that never reloads.
func NewStaticWorkflowConfig(cfg WorkflowConfig) *WorkflowConfigHolder {
	holder := &WorkflowConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewWorkflowConfigHolder() (*WorkflowConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("workflow")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/coverdesk")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COVERDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultWorkflowConfig()
	v.SetDefault("workflow.sla.documentDeadlineDays", defaults.SLA.DocumentDeadlineDays)
	v.SetDefault("workflow.sla.maxDays", defaults.SLA.MaxDays)
	v.SetDefault("workflow.sla.insurerResponseBusinessDays", defaults.SLA.InsurerResponseBusinessDays)
	v.SetDefault("workflow.settlement.paymentWindowHours", defaults.Settlement.PaymentWindowHours)
	v.SetDefault("workflow.invoice.defaultDueDays", defaults.Invoice.DefaultDueDays)
	v.SetDefault("workflow.alerts.policyExpiringDays", defaults.Alerts.PolicyExpiringDays)
	v.SetDefault("workflow.alerts.paymentDueDays", defaults.Alerts.PaymentDueDays)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg WorkflowConfig
	if err := v.UnmarshalKey("workflow", &cfg); err != nil {
		return nil, err
	}
	if err := validateWorkflowConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticWorkflowConfig(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated WorkflowConfig
		if err := v.UnmarshalKey("workflow", &updated); err != nil {
			log.Printf("[workflow-config] reload failed: %v", err)
			return
		}
		if err := validateWorkflowConfig(updated); err != nil {
			log.Printf("[workflow-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[workflow-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *WorkflowConfigHolder) Get() WorkflowConfig {
	return h.current.Load().(WorkflowConfig)
}

func validateWorkflowConfig(cfg WorkflowConfig) error {
	if cfg.SLA.DocumentDeadlineDays <= 0 {
		return errors.New("workflow.sla.documentDeadlineDays must be positive")
	}
	if cfg.SLA.MaxDays < cfg.SLA.DocumentDeadlineDays {
		return errors.New("workflow.sla.maxDays must not be shorter than the document deadline")
	}
	if cfg.SLA.InsurerResponseBusinessDays <= 0 {
		return errors.New("workflow.sla.insurerResponseBusinessDays must be positive")
	}
	if cfg.Settlement.PaymentWindowHours <= 0 {
		return errors.New("workflow.settlement.paymentWindowHours must be positive")
	}
	if cfg.Invoice.DefaultDueDays <= 0 {
		return errors.New("workflow.invoice.defaultDueDays must be positive")
	}
	if cfg.Alerts.PolicyExpiringDays < 0 || cfg.Alerts.PaymentDueDays < 0 {
		return errors.New("workflow.alerts windows cannot be negative")
	}
	return nil
}
