// Package dashboard periodically collects extension dashboard metrics and
// keeps the latest snapshot for the admin API.
//
//	c, err := dashboard.NewCollector(manager, "@every 30s", log)
//	go c.Run(ctx)
//	snap := c.Snapshot()
package dashboard
