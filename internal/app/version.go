package app

// Service metadata
const ServiceName = "e-learning-lessons"

// Build-time injection variables
// These are set via -ldflags during build:
//
//	go build -ldflags="-X 'github.com/rewan24/E-Learning-Lessons-Platform/internal/app.Version=1.0.0'"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
