// Package shutdown coordinates graceful process shutdown.
//
// Components register named hooks as they start; on SIGINT, SIGTERM, a
// cancelled context or an explicit Trigger, the hooks run in reverse
// registration order under a shared timeout:
//
//	h := shutdown.NewHandler(15*time.Second, logger)
//	h.OnShutdown("frame server", srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
