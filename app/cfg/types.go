package cfg

type Cfg struct {
	// Storage
	DBPath string

	// Application configuration
	FeedsDir     string
	Port         string
	BaseUrl      string
	WorkerCount  int
	APIAccessKey string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	LogFormat string
	Version   string
}
