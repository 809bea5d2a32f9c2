package util

import "go.uber.org/zap"

// NewLogger builds zap's production config for env "production" and the
// development config otherwise. Entries are named after the app.
func NewLogger(env string) *zap.SugaredLogger {
	build := zap.NewDevelopment
	if env == "production" {
		build = zap.NewProduction
	}

	logger := zap.Must(build()).Named(GetAppName()).Sugar()
	defer logger.Sync()

	return logger
}
