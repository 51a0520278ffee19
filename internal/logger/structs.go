package logger

// Console implements a console based logger.
type Console struct {
	Enabled          bool `toml:"enabled"          mapstructure:"enabled"`
	UseConsoleWriter bool `toml:"useConsoleWriter" mapstructure:"useConsoleWriter"`
}

// RollingFile configures one lumberjack target.
type RollingFile struct {
	Name       string `toml:"name"       mapstructure:"name"`
	MaxSize    int    `toml:"maxSize"    mapstructure:"maxSize"`
	MaxBackups int    `toml:"maxBackups" mapstructure:"maxBackups"`
	MaxAge     int    `toml:"maxAge"     mapstructure:"maxAge"`
}

// LogFile implements a file based logger split by level.
type LogFile struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Path    string `toml:"path"    mapstructure:"path"`

	Access RollingFile `toml:"access" mapstructure:"access"`
	Error  RollingFile `toml:"error"  mapstructure:"error"`
	Info   RollingFile `toml:"info"   mapstructure:"info"`
	Trace  RollingFile `toml:"trace"  mapstructure:"trace"`
	Warn   RollingFile `toml:"warn"   mapstructure:"warn"`
}

// Log implements the logger config.
type Log struct {
	LogLevel string `toml:"logLevel" mapstructure:"logLevel"` // trace, debug, info, warn, error, fatal.
	LogEnv   string `toml:"logEnv"   mapstructure:"logEnv"`

	// EnableAccessLogToConsole writes the access log to the console as well.
	// Console.Enabled still has to be true.
	EnableAccessLogToConsole bool `toml:"enableAccessLogToConsole" mapstructure:"enableAccessLogToConsole"`
	ReportCaller             bool `toml:"reportCaller"             mapstructure:"reportCaller"`
	DisableCheckAlive        bool `toml:"disableCheckAlive"        mapstructure:"disableCheckAlive"` // do not log /healthcheck calls

	AppName     string `toml:"appName"     mapstructure:"appName"`
	ServiceName string `toml:"serviceName" mapstructure:"serviceName"`

	// Console used mainly for docker and dev.
	Console Console `toml:"console" mapstructure:"console"`

	File LogFile `toml:"file" mapstructure:"file"`
}
