package bootstrap

import (
	"github.com/kbukum/notify/config"
)

// Config is satisfied by any struct that embeds config.ServiceConfig and
// overrides ApplyDefaults/Validate as needed.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
