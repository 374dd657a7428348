package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"IRIS-Agents/internal/config"
	"IRIS-Agents/sdk/go/iris"
)

var (
	configPath string
	serverURL  string
)

var rootCmd = &cobra.Command{
	Use:           "iris",
	Short:         "Submit requests to the IRIS agent network and browse the marketplace",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	defaultConfig := os.Getenv("IRIS_CONFIG")
	if defaultConfig == "" {
		defaultConfig = filepath.Join("configs", "iris.json")
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "config file path")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "irisd REST endpoint")
}

// loadConfig 读取配置文件，文件不存在时使用默认配置。
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config.Default("."), nil
	}
	return config.Load(configPath)
}

func apiClient() (*iris.Client, error) {
	return iris.NewClient(serverURL, nil)
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}
