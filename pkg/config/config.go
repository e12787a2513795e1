package config

import "time"

// Config is the resolved configuration of a run.
type Config struct {
	Project   Project   `koanf:"project"`
	Pipeline  Pipeline  `koanf:"pipeline"`
	Progress  Progress  `koanf:"progress"`
	Registry  Registry  `koanf:"registry"`
	Lifecycle Lifecycle `koanf:"lifecycle"`
}

// Project holds settings about the project being reconciled.
type Project struct {
	// Root is the project directory; it is never read from files
	Root       string `koanf:"-"`
	Production bool   `koanf:"production"`
}

// Pipeline tunes the operation executor.
type Pipeline struct {
	Concurrency int  `koanf:"concurrency"`
	DryRun      bool `koanf:"dry_run"`
}

// Progress selects the progress emitters.
type Progress struct {
	Log   bool `koanf:"log"`
	Trace bool `koanf:"trace"`
}

// Registry locates the package registry.
type Registry struct {
	Path string `koanf:"path"`
}

// Lifecycle controls package scripts.
type Lifecycle struct {
	IgnoreScripts bool          `koanf:"ignore_scripts"`
	Shell         string        `koanf:"shell"`
	Timeout       time.Duration `koanf:"timeout"`
}
