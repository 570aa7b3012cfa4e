// Package async runs background work with panic recovery and timeouts.
//
// SafeGo fires and forgets a task, logging its error or panic:
//
//	async.SafeGo(ctx, 10*time.Second, "registry sync", manager.SyncRegistry)
//
// WorkerPool and Batch run many tasks on a bounded number of goroutines.
// The plugin manager unloads extensions concurrently with Batch:
//
//	errs := async.Batch(ctx, entries, 4, "plugin unload", 30*time.Second, unload)
//
// Failures are logged through logrus; SetLogger swaps the logger.
package async
