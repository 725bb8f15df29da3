// Package config reads the settings of the example programs from the
// environment, with an optional .env file in the working directory.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Solver
	VelocityIterations int
	PositionIterations int
	TimeStep           float64
	Steps              int

	// World
	Workers         int
	AllowSleep      bool
	WarmStarting    bool
	Continuous      bool
	SubStepping     bool
	GravityY        float64
	PyramidRows     int
	BoxHalfSize     float64
	CompareChipmunk bool

	// Profiling
	CPUProfile bool
	LogLevel   string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Solver
		VelocityIterations: getEnvInt("FEATHER2D_VELOCITY_ITERATIONS", 8),
		PositionIterations: getEnvInt("FEATHER2D_POSITION_ITERATIONS", 3),
		TimeStep:           getEnvFloat("FEATHER2D_TIME_STEP", 1.0/60.0),
		Steps:              getEnvInt("FEATHER2D_STEPS", 600),

		// World
		Workers:         getEnvInt("FEATHER2D_WORKERS", 1),
		AllowSleep:      getEnvBool("FEATHER2D_ALLOW_SLEEP", true),
		WarmStarting:    getEnvBool("FEATHER2D_WARM_STARTING", true),
		Continuous:      getEnvBool("FEATHER2D_CONTINUOUS", true),
		SubStepping:     getEnvBool("FEATHER2D_SUB_STEPPING", false),
		GravityY:        getEnvFloat("FEATHER2D_GRAVITY_Y", -10),
		PyramidRows:     getEnvInt("FEATHER2D_PYRAMID_ROWS", 20),
		BoxHalfSize:     getEnvFloat("FEATHER2D_BOX_HALF_SIZE", 0.5),
		CompareChipmunk: getEnvBool("FEATHER2D_COMPARE_CHIPMUNK", false),

		// Profiling
		CPUProfile: getEnvBool("FEATHER2D_CPU_PROFILE", false),
		LogLevel:   getEnv("FEATHER2D_LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
