package models

// MConfig Structure
type MConfig struct {
	Name     string          `yaml:"name"`
	Host     string          `yaml:"host"`
	Port     int             `yaml:"port"`
	LogLevel string          `yaml:"log_level"`
	GrpcHost string          `yaml:"grpc_host"`
	GrpcPort int             `yaml:"grpc_port"`
	Replay   MReplayConfig   `yaml:"replay"`
	Storage  MStorageConfig  `yaml:"storage"`
	Network  MNetworkConfig  `yaml:"network"`
	Provider MProviderConfig `yaml:"provider"`
}

type MReplayConfig struct {
	DefaultSpeed float64 `yaml:"default_speed"`
	MaxSpeed     float64 `yaml:"max_speed"` // 0 = unbounded
	DataDir      string  `yaml:"data_dir"`
	DefaultFile  string  `yaml:"default_file"`
	SendBuffer   int     `yaml:"send_buffer"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"` // none | sqlite | postgres
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	LedgerPath         string `yaml:"ledger_path"`
}

type MNetworkConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Proxies        []string `yaml:"proxies,omitempty"`
	RequestTimeout int      `yaml:"timeout"`
	MaxRetries     int      `yaml:"retries"`
	UserAgent      string   `yaml:"user_agent"`
}

type MProviderConfig struct {
	Name     string `yaml:"name"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"` // Optional, requests may carry their own
	Interval string `yaml:"interval"`
}
