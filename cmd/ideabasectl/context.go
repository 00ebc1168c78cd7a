package main

import (
	"os"
	"strings"
	"sync"

	"github.com/alimgiray/ideabase/internal/app"
	"github.com/alimgiray/ideabase/pkg/config"
	"github.com/alimgiray/ideabase/pkg/logger"
	"github.com/joho/godotenv"
)

type commandContext struct {
	envFlag *string
	dbFlag  *string

	appOnce sync.Once
	app     *app.App
	appErr  error
}

func newCommandContext(envFlag, dbFlag *string) *commandContext {
	return &commandContext{
		envFlag: envFlag,
		dbFlag:  dbFlag,
	}
}

// ensureApp loads configuration and opens the database once per invocation
func (c *commandContext) ensureApp() (*app.App, error) {
	c.appOnce.Do(func() {
		if path := strings.TrimSpace(*c.envFlag); path != "" {
			if err := godotenv.Load(path); err != nil {
				c.appErr = err
				return
			}
		} else {
			_ = godotenv.Load()
		}

		cfg := config.FromEnv()
		if path := strings.TrimSpace(*c.dbFlag); path != "" {
			cfg.Database.Path = path
		}
		if err := cfg.Validate(); err != nil {
			c.appErr = err
			return
		}

		// keep stdout for command output
		logger.Configure(cfg.Log.Level, "text")
		logger.SetOutput(os.Stderr)

		c.app, c.appErr = app.New(cfg)
	})
	return c.app, c.appErr
}

func (c *commandContext) close() {
	if c.app != nil {
		c.app.Close()
	}
}
