package engine

// ApplicationConfig holds the command line overrides applied on top of the
// config file.
type ApplicationConfig struct {
	ConfigPath string
	// Forces the headless backend regardless of the config file.
	Headless bool
	// Stop after this many rendered frames; zero runs until quit.
	Frames uint64
	// Write the last presented headless frame as a TIFF here on shutdown.
	DumpPath string
	// Watch ConfigPath and apply edits while running.
	HotReload bool
}
