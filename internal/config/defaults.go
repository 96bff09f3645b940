package config

// DefaultAPIBaseURL is the hosted membership API.
const DefaultAPIBaseURL = "https://adminweb-apps.vercel.app"

// Default file names inside the home directory.
const (
	DefaultCacheFile = "auth_tokens.dat"
	DefaultKeyFile   = "auth.key"
)

// DefaultSessionMaxAgeHours keeps a persisted session for six days, one day
// short of the server's refresh token lifetime.
const DefaultSessionMaxAgeHours = 6 * 24

// DefaultDesa is the full desa catalog.
//
//nolint:gochecknoglobals // Reference data, copied into Defaults
var DefaultDesa = []string{
	"BANDARA", "CENGKARENG", "CIPONDOH", "JELAMBAR",
	"KALIDERES", "KEBON JAHE", "TAMAN KOTA", "KAPUK MELATI",
}

// DefaultKelompok is the full kelompok catalog.
//
//nolint:gochecknoglobals // Reference data, copied into Defaults
var DefaultKelompok = []string{
	"TEGAL ALUR A", "TEGAL ALUR B", "PREPEDAN A", "PREPEDAN B", "KEBON KELAPA",
	"PRIMA", "RAWA LELE", "KAMPUNG DURI", "FAJAR A", "FAJAR B", "FAJAR C",
	"DAMAI", "JAYA", "INDAH", "PEJAGALAN", "BGN", "MELATI A", "MELATI B",
	"GRIYA PERMATA", "SEMANAN A", "SEMANAN B", "PONDOK BAHAR",
	"KEBON JAHE A", "KEBON JAHE B", "GARIKAS", "TANIWAN",
	"TAMAN KOTA A", "TAMAN KOTA B", "RAWA BUAYA A", "RAWA BUAYA B",
}

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.mmdesk",
		API: APIConfig{
			BaseURL:        DefaultAPIBaseURL,
			TimeoutSeconds: 10,
			DeviceType:     "desktop",
			DeviceInfo:     "mmdesk CLI",
			RatePerSecond:  5,
			RateBurst:      5,
			Limits: map[string]RateLimit{
				"login": {PerSecond: 1, Burst: 2},
			},
		},
		Session: SessionConfig{
			CacheFile:   DefaultCacheFile,
			KeyFile:     DefaultKeyFile,
			MaxAgeHours: DefaultSessionMaxAgeHours,
		},
		Catalog: CatalogConfig{
			Desa:     append([]string(nil), DefaultDesa...),
			Kelompok: append([]string(nil), DefaultKelompok...),
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "mmdesk.log",
		},
	}
}
