package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config         *Config
	fix            bool
	failOnFindings bool
	exportPath     string
	verbose        bool
	version        string
	out            io.Writer
	logOut         io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithFix makes runs apply repairs instead of only reporting them.
func WithFix(fix bool) Option {
	return func(a *application) {
		a.fix = fix
	}
}

// WithFailOnFindings turns any finding into a non-zero exit.
func WithFailOnFindings(fail bool) Option {
	return func(a *application) {
		a.failOnFindings = fail
	}
}

// WithExportPath overrides index.export_path.
func WithExportPath(path string) Option {
	return func(a *application) {
		a.exportPath = path
	}
}

// WithVerbose forces debug logging.
func WithVerbose(verbose bool) Option {
	return func(a *application) {
		a.verbose = verbose
	}
}

// WithVersion sets the version reported to MCP clients.
func WithVersion(version string) Option {
	return func(a *application) {
		a.version = version
	}
}

// WithOutput sets where reports are written.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}

// WithLogOutput sets where structured logs are written.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}
