package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable of the detection node. Values come from the
// environment with sensible defaults; a .env file is honored when present.
type Config struct {
	// Detection
	Threshold      float64 // minimum class probability
	NMSOverlap     float64 // suppression overlap threshold
	AvgWindow      int     // temporal averaging window W
	MinBoxFraction float64 // minimum box width/height as a fraction of the frame
	DepthGridSize  int     // depth sampling grid dimension
	DepthEnabled   bool    // depth-assisted mode

	// Engine
	EngineKind     string // "http" or "dnn"
	EngineEndpoint string // http engine base URL
	EngineTimeout  time.Duration
	WeightsPath    string // dnn engine model files
	ModelConfig    string
	NamesPath      string
	InputWidth     int
	InputHeight    int
	UseCUDA        bool
	SwapRB         bool // engine expects BGR input

	// Input channels
	CameraDevice    string // color stream source (device path or URL)
	DepthDevice     string // depth stream source
	CameraFPS       int
	CameraWidth     int
	CameraHeight    int
	CameraQueueSize int           // per-subscriber frame buffer depth
	PairTolerance   time.Duration // approximate-time pairing window

	// Output
	ListenAddr     string
	DisplayEnabled bool   // render the local preview every iteration
	StorePath      string // sqlite detection history; empty disables
	StoreRetention time.Duration
	JPEGQuality    int

	// Auth
	AuthEnabled  bool
	AuthUsername string
	AuthPassword string // plaintext or bcrypt hash
	JWTSecret    string
	JWTExpiry    time.Duration

	// Alerts
	TelegramEnabled  bool
	TelegramToken    string
	TelegramChatID   string
	TelegramCooldown time.Duration
	AlertClasses     []string // empty alerts on every class
}

// Load reads configuration from a .env file (if path exists) and the
// process environment.
func Load(envPath string) *Config {
	if envPath != "" {
		// Missing files are fine; explicit settings win over .env entries.
		_ = godotenv.Load(envPath)
	}

	return &Config{
		Threshold:      getEnvAsFloat("DETECT_THRESHOLD", 0.3),
		NMSOverlap:     getEnvAsFloat("NMS_OVERLAP", 0.4),
		AvgWindow:      getEnvAsInt("AVG_WINDOW", 3),
		MinBoxFraction: getEnvAsFloat("MIN_BOX_FRACTION", 0.01),
		DepthGridSize:  getEnvAsInt("DEPTH_GRID_SIZE", 3),
		DepthEnabled:   getEnvAsBool("DEPTH_ENABLED", false),

		EngineKind:     getEnv("ENGINE", "http"),
		EngineEndpoint: getEnv("ENGINE_ENDPOINT", "http://127.0.0.1:9001"),
		EngineTimeout:  getEnvAsDuration("ENGINE_TIMEOUT", 30*time.Second),
		WeightsPath:    getEnv("WEIGHTS_PATH", "models/yolov3-tiny.weights"),
		ModelConfig:    getEnv("MODEL_CONFIG", "models/yolov3-tiny.cfg"),
		NamesPath:      getEnv("NAMES_PATH", "models/coco.names"),
		InputWidth:     getEnvAsInt("INPUT_WIDTH", 416),
		InputHeight:    getEnvAsInt("INPUT_HEIGHT", 416),
		UseCUDA:        getEnvAsBool("USE_CUDA", false),
		SwapRB:         getEnvAsBool("SWAP_RB", true),

		CameraDevice:    getEnv("CAMERA_DEVICE", "/dev/video0"),
		DepthDevice:     getEnv("DEPTH_DEVICE", ""),
		CameraFPS:       getEnvAsInt("CAMERA_FPS", 15),
		CameraWidth:     getEnvAsInt("CAMERA_WIDTH", 640),
		CameraHeight:    getEnvAsInt("CAMERA_HEIGHT", 480),
		CameraQueueSize: getEnvAsInt("CAMERA_QUEUE_SIZE", 1),
		PairTolerance:   getEnvAsDuration("PAIR_TOLERANCE", 50*time.Millisecond),

		ListenAddr:     getEnv("LISTEN_ADDR", ":8080"),
		DisplayEnabled: getEnvAsBool("DISPLAY_ENABLED", false),
		StorePath:      getEnv("STORE_PATH", "kestrel.db"),
		StoreRetention: getEnvAsDuration("STORE_RETENTION", 7*24*time.Hour),
		JPEGQuality:    getEnvAsInt("JPEG_QUALITY", 80),

		AuthEnabled:  getEnvAsBool("AUTH_ENABLED", false),
		AuthUsername: getEnv("AUTH_USERNAME", "admin"),
		AuthPassword: getEnv("AUTH_PASSWORD", ""),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTExpiry:    getEnvAsDuration("JWT_EXPIRY", 24*time.Hour),

		TelegramEnabled:  getEnvAsBool("TELEGRAM_ENABLED", false),
		TelegramToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		TelegramCooldown: getEnvAsDuration("TELEGRAM_COOLDOWN", 30*time.Second),
		AlertClasses:     getEnvAsList("ALERT_CLASSES"),
	}
}

// Validate rejects configurations the pipeline cannot start with.
func (c *Config) Validate() error {
	if c.AvgWindow <= 0 {
		return fmt.Errorf("AVG_WINDOW must be positive, got %d", c.AvgWindow)
	}
	if c.Threshold <= 0 || c.Threshold >= 1 {
		return fmt.Errorf("DETECT_THRESHOLD must be in (0,1), got %g", c.Threshold)
	}
	if c.NMSOverlap <= 0 || c.NMSOverlap >= 1 {
		return fmt.Errorf("NMS_OVERLAP must be in (0,1), got %g", c.NMSOverlap)
	}
	if c.DepthGridSize <= 0 {
		return fmt.Errorf("DEPTH_GRID_SIZE must be positive, got %d", c.DepthGridSize)
	}
	switch c.EngineKind {
	case "http", "dnn":
	default:
		return fmt.Errorf("ENGINE must be http or dnn, got %q", c.EngineKind)
	}
	if c.DepthEnabled && c.DepthDevice == "" {
		return fmt.Errorf("DEPTH_ENABLED requires DEPTH_DEVICE")
	}
	if c.AuthEnabled && c.AuthPassword == "" {
		return fmt.Errorf("AUTH_ENABLED requires AUTH_PASSWORD")
	}
	if c.TelegramEnabled && (c.TelegramToken == "" || c.TelegramChatID == "") {
		return fmt.Errorf("TELEGRAM_ENABLED requires TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
