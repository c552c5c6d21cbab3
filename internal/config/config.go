package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	API struct {
		Key            string
		BaseURL        string
		AdminDomain    string
		MaxConcurrent  int
		MaxRetries     int
		InitialDelay   time.Duration
		BackoffFactor  float64
		PerPage        int
		RequestTimeout time.Duration
	}
	Download struct {
		OutputDir          string
		MaxConcurrent      int
		RestoreAfter       int
		MaxRetries         int
		InitialDelay       time.Duration
		BackoffFactor      float64
		SmallFileThreshold int64
		ResumeMargin       int64
		ChunkSize          int64
		ProgressInterval   int64
		ConnectTimeout     time.Duration
		TransferTimeout    time.Duration
	}
	Database struct {
		Path string
	}
	Status struct {
		Addr string
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("TEACHABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api.key", "")
	v.SetDefault("api.baseurl", "https://developers.teachable.com/v1")
	v.SetDefault("api.admindomain", "")
	v.SetDefault("api.maxconcurrent", 2)
	v.SetDefault("api.maxretries", 5)
	v.SetDefault("api.initialdelay", 20*time.Second)
	v.SetDefault("api.backofffactor", 3.0)
	v.SetDefault("api.perpage", 20)
	v.SetDefault("api.requesttimeout", 60*time.Second)

	v.SetDefault("download.outputdir", ".")
	v.SetDefault("download.maxconcurrent", 3)
	v.SetDefault("download.restoreafter", 2)
	v.SetDefault("download.maxretries", 3)
	v.SetDefault("download.initialdelay", 2*time.Second)
	v.SetDefault("download.backofffactor", 2.0)
	v.SetDefault("download.smallfilethreshold", int64(1<<20))
	v.SetDefault("download.resumemargin", int64(1<<20))
	v.SetDefault("download.chunksize", int64(4<<20))
	v.SetDefault("download.progressinterval", int64(32<<20))
	v.SetDefault("download.connecttimeout", 15*time.Second)
	v.SetDefault("download.transfertimeout", time.Hour)

	v.SetDefault("database.path", "data/teachable.db")
	v.SetDefault("status.addr", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "courses")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")

	// legacy env var name kept from earlier versions of the tool
	if key := os.Getenv("TEACHABLE_API_KEY"); key != "" {
		v.SetDefault("api.key", key)
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
