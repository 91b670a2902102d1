package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mhsanaei/3x-ui-usage/config"
	"github.com/mhsanaei/3x-ui-usage/database"
	"github.com/mhsanaei/3x-ui-usage/logger"
	"github.com/mhsanaei/3x-ui-usage/web"

	"github.com/joho/godotenv"
	"github.com/op/go-logging"
	"github.com/spf13/cobra"
)

func logLevel(level config.LogLevel) logging.Level {
	switch level {
	case config.Debug:
		return logging.DEBUG
	case config.Info:
		return logging.INFO
	case config.Notice:
		return logging.NOTICE
	case config.Warn:
		return logging.WARNING
	case config.Error:
		return logging.ERROR
	default:
		log.Fatal("unknown log level:", level)
		return logging.INFO
	}
}

func runWebServer(configPath string) {
	log.Printf("%v %v", config.GetName(), config.GetVersion())

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	logger.InitLogger(logLevel(cfg.LogLevel), cfg.LogFolder)
	defer logger.CloseLogger()

	err = database.InitDB(cfg.DBPath, cfg.Debug)
	if err != nil {
		log.Fatal(err)
	}
	defer database.CloseDB()

	server := web.NewServer(cfg, database.GetDB())
	if err = server.Start(); err != nil {
		logger.Error("start server err:", err)
		return
	}

	sigCh := make(chan os.Signal, 1)
	// Trap shutdown signals
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	for {
		sig := <-sigCh

		switch sig {
		case syscall.SIGHUP:
			logger.Info("received SIGHUP, restarting web server")
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			server = web.NewServer(cfg, database.GetDB())
			if err := server.Start(); err != nil {
				logger.Error("restart server err:", err)
				return
			}
		default:
			logger.Infof("received %v, shutting down", sig)
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			return
		}
	}
}

func createMockDB(dbPath string, extra int, overwrite bool, writeEnv bool) {
	err := database.CreateMockDB(dbPath, database.MockOptions{Extra: extra, Overwrite: overwrite})
	if err != nil {
		fmt.Println("create mock database failed:", err)
		os.Exit(1)
	}
	fmt.Println("Mock database created at", dbPath)
	fmt.Println("Sample users:")
	for _, u := range database.MockUsers {
		if u.Note != "" {
			fmt.Printf("  %s  %s (%s)\n", u.UUID, u.Email, u.Note)
		} else {
			fmt.Printf("  %s  %s\n", u.UUID, u.Email)
		}
	}

	if writeEnv {
		if err := writeDevEnv(".env", dbPath); err != nil {
			fmt.Println("write .env failed:", err)
			os.Exit(1)
		}
	}
}

// writeDevEnv points an existing or new .env file at dbPath, keeping the other keys.
func writeDevEnv(filename, dbPath string) error {
	env, err := godotenv.Read(filename)
	if errors.Is(err, fs.ErrNotExist) {
		env = map[string]string{}
	} else if err != nil {
		return err
	}
	env["DB_PATH"] = dbPath
	defaults := map[string]string{
		"HOST":       "127.0.0.1",
		"PORT":       "8000",
		"RATE_LIMIT": "100/minute",
	}
	for k, v := range defaults {
		if _, ok := env[k]; !ok {
			env[k] = v
		}
	}
	return godotenv.Write(env, filename)
}

func main() {
	var rootCmd = &cobra.Command{
		Use:   "x-ui-usage",
		Short: "Read-only traffic usage API for 3x-ui panels",
	}

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the web server",
		Run: func(cmd *cobra.Command, args []string) {
			configPath, _ := cmd.Flags().GetString("config")
			runWebServer(configPath)
		},
	}
	runCmd.Flags().String("config", "", "optional TOML config file")

	var mockdbCmd = &cobra.Command{
		Use:   "mockdb",
		Short: "Create a development database with sample users",
		Run: func(cmd *cobra.Command, args []string) {
			dbPath, _ := cmd.Flags().GetString("db")
			extra, _ := cmd.Flags().GetInt("extra")
			overwrite, _ := cmd.Flags().GetBool("overwrite")
			writeEnv, _ := cmd.Flags().GetBool("env")
			createMockDB(dbPath, extra, overwrite, writeEnv)
		},
	}
	mockdbCmd.Flags().String("db", "mock_data/x-ui.db", "mock database file path")
	mockdbCmd.Flags().Int("extra", 0, "number of random users to add")
	mockdbCmd.Flags().Bool("overwrite", false, "replace an existing database file")
	mockdbCmd.Flags().Bool("env", false, "write DB_PATH and local defaults to .env")

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.GetVersion())
		},
	}

	rootCmd.AddCommand(runCmd, mockdbCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
