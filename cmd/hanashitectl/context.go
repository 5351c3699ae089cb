package main

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"hanashite/internal/config"
	"hanashite/internal/database"
	"hanashite/internal/logging"
	"hanashite/internal/metrics"
	"hanashite/internal/models"
	"hanashite/internal/service"
)

// commandContext lazily opens what a command needs and releases it on exit
type commandContext struct {
	jsonOutput *bool

	once   sync.Once
	cfg    *config.Config
	logger *zap.Logger
	db     *database.DB
	err    error
}

func newCommandContext(jsonOutput *bool) *commandContext {
	return &commandContext{jsonOutput: jsonOutput}
}

func (c *commandContext) open() error {
	c.once.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.err = err
			return
		}
		// the CLI only logs warnings so tables stay readable
		logger, err := logging.New("warn", cfg.LogFormat)
		if err != nil {
			c.err = err
			return
		}
		db, err := database.Open(cfg)
		if err != nil {
			c.err = err
			return
		}
		c.cfg, c.logger, c.db = cfg, logger, db
	})
	return c.err
}

func (c *commandContext) close() {
	if c.db != nil {
		c.db.Close()
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

func (c *commandContext) json() bool {
	return c.jsonOutput != nil && *c.jsonOutput
}

func (c *commandContext) streaks() *service.StreakService {
	return service.NewStreakService(c.db, c.cfg.Timezone, metrics.New(), c.logger)
}

func (c *commandContext) teachers() *service.TeacherService {
	return service.NewTeacherService(c.db, c.cfg.Timezone)
}

// teacher resolves the teacher record of a user ID given on the command line
func (c *commandContext) teacher(ctx context.Context, userID string) (*models.Teacher, error) {
	return c.teachers().CurrentTeacher(ctx, userID)
}
