// FILE: notify.go
package linelog

// logNotifier reports destinations through the diagnostics logger
type logNotifier struct {
	logger Logger
}

func (n logNotifier) NotifyLocation(buffer, path string) {
	n.logger.Info("log destination resolved", "buffer", buffer, "path", path)
}

func (n logNotifier) NotifyFailure(buffer string, err error) {
	n.logger.Warn("log destination failure", "buffer", buffer, "error", err)
}
