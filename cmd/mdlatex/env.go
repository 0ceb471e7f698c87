package main

import (
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	mdlatex "github.com/alnah/go-mdlatex"
)

// Environment holds injectable dependencies for testability.
type Environment struct {
	Now    func() time.Time
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// SurfaceFactory replaces the headless Chrome surface when set.
	SurfaceFactory mdlatex.SurfaceFactory

	// Registry receives the renderer metrics exposed by serve.
	Registry *prometheus.Registry
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Now:      time.Now,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Registry: prometheus.NewRegistry(),
	}
}
