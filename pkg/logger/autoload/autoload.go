// Package autoload initializes the global logger from the LOG_* environment
// variables as an import side effect.
package autoload

import (
	configx "github.com/loomlabs/loom-assistant/pkg/config"
	logx "github.com/loomlabs/loom-assistant/pkg/logger"
)

func init() {
	conf, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*conf)
}
