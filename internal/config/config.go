// Package config provides functionality for managing configuration options
// for the application using command-line flags, a JSON config file, and
// environment variables.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/caarlos0/env/v11"
)

// Options holds the configuration values for the application.
type Options struct {
	// Addr defines the server's listening address (ip:port).
	Addr string `json:"address" env:"SERVER_ADDRESS"`

	// DatabaseDSN holds the PostgreSQL connection string for the
	// credential store.
	DatabaseDSN string `json:"database_dsn" env:"DATABASE_DSN"`

	// Neo4jURI is the bolt URI of the memory graph store.
	Neo4jURI string `json:"neo4j_uri" env:"NEO4J_URI"`

	// Neo4jUser is the graph store username.
	Neo4jUser string `json:"neo4j_user" env:"NEO4J_USER"`

	// Neo4jPassword is the graph store password.
	Neo4jPassword string `json:"neo4j_password" env:"NEO4J_PASSWORD"`

	// LLMProvider selects the gateway mode: "gemini" performs a free-text
	// answer call plus a separate extraction call, "groq" performs a single
	// structured call returning answer and candidates together.
	LLMProvider string `json:"llm_provider" env:"LLM_PROVIDER"`

	// GeminiAPIKey authenticates calls to the Gemini API.
	GeminiAPIKey string `json:"gemini_api_key" env:"GEMINI_API_KEY"`

	// GroqAPIKey authenticates calls to the Groq API.
	GroqAPIKey string `json:"groq_api_key" env:"GROQ_API_KEY"`

	// GroqModel is the model identifier for structured calls.
	GroqModel string `json:"groq_model" env:"GROQ_MODEL"`

	// MemoryLimit caps how many recent memories are retrieved per chat turn.
	MemoryLimit int `json:"memory_limit" env:"MEMORY_LIMIT"`

	// Config is the path to the config file.
	Config string `json:"-" env:"CONFIG"`
}

// options holds the current configuration values.
var options = &Options{}

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.Addr, "a", "localhost:8080", "run on ip:port server")
	flag.StringVar(&options.DatabaseDSN, "d", "", "postgres dsn for the credential store")
	flag.StringVar(&options.Neo4jURI, "neo4j-uri", "bolt://localhost:7687", "neo4j bolt uri")
	flag.StringVar(&options.Neo4jUser, "neo4j-user", "neo4j", "neo4j username")
	flag.StringVar(&options.Neo4jPassword, "neo4j-password", "", "neo4j password")
	flag.StringVar(&options.LLMProvider, "provider", "gemini", "llm provider: gemini or groq")
	flag.StringVar(&options.GroqModel, "groq-model", "llama-3.3-70b-versatile", "groq model identifier")
	flag.IntVar(&options.MemoryLimit, "memory-limit", 12, "max memories retrieved per chat turn")
	flag.StringVar(&options.Config, "config", "config.json", "path to config file")
	flag.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
}

// Parse parses the command-line flags, the optional config file, and
// environment variables to set configuration values. Environment variables
// take precedence over the file, which takes precedence over flags. It
// returns a pointer to the Options struct containing the parsed values.
func Parse() *Options {
	flag.Parse()

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				log.Fatalf("error while reading config file: %v", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				log.Fatalf("error while parsing config file: %v", err)
			}
		}
	}

	// Override file and flag values with environment variables if set.
	if err := env.Parse(options); err != nil {
		log.Fatalf("error while parsing environment: %v", err)
	}

	return options
}
