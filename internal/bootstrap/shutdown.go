package bootstrap

import (
	"errors"
	"time"

	"go-antiraid/internal/database"
	"go-antiraid/internal/logging"
)

const drainTimeout = 10 * time.Second

// Shutdown stops intake first, drains accepted events through the router,
// then stops enforcement and closes storage.
func Shutdown(c *Components) error {
	if c == nil {
		return nil
	}
	logging.Info("Starting graceful shutdown...")

	var errs []error

	if c.Session != nil {
		logging.Info("Closing Discord session...")
		if err := c.Session.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.pipelineCancel != nil {
		logging.Info("Draining ingest pipeline (%d queued)...", c.Pipeline.Depth())
		c.pipelineCancel()
		select {
		case <-c.pipelineDone:
		case <-time.After(drainTimeout):
			logging.Warn("Ingest pipeline did not drain within %v", drainTimeout)
		}
	}

	if c.cancel != nil {
		logging.Info("Stopping watchdog, config watcher and metrics exporter...")
		c.cancel()
		c.Watchdog.Wait()
		c.background.Wait()
	}

	if c.Dispatcher != nil {
		logging.Info("Stopping dispatcher...")
		c.Dispatcher.Stop()
	}

	if c.Journal != nil {
		if err := c.Journal.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.BanCache != nil {
		if err := c.BanCache.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Database != nil {
		logging.Info("Closing database...")
		if err := c.Database.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Pipeline != nil && c.Pipeline.Dropped() > 0 {
		logging.Warn("%d events were dropped during this run", c.Pipeline.Dropped())
	}

	logging.Info("Graceful shutdown complete")
	return errors.Join(errs...)
}

// EmergencyShutdown closes what it can without draining.
func EmergencyShutdown(c *Components) {
	logging.Critical("Emergency shutdown initiated")

	if c != nil {
		if c.Session != nil {
			c.Session.Close()
		}
		if c.cancel != nil {
			c.cancel()
		}
		if c.pipelineCancel != nil {
			c.pipelineCancel()
		}
		if c.Dispatcher != nil {
			c.Dispatcher.Stop()
		}
		if c.Journal != nil {
			c.Journal.Close()
		}
	}
	if db := database.GetDB(); db != nil {
		db.Close()
	}

	logging.Critical("Emergency shutdown complete")
}
