package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Perceptus-Labs/samvaad-go-sdk/config"
	"github.com/Perceptus-Labs/samvaad-go-sdk/handlers"
	"github.com/Perceptus-Labs/samvaad-go-sdk/utils"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "samvaad",
	Short: "Samvaad - live sign-language translation and practice server",
	Long: `Samvaad streams camera frames to a gesture recognition service, turns the
recognized gestures into English and Hindi sentences, reads them aloud, and
coaches learners through practice sessions.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the websocket session server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&envFile, "env-file", "", "env file to load (default is ./.env)")
	serveCmd.Flags().String("port", "", "HTTP port (overrides PORT)")
	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))

	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load environment variables from .env file
	envErr := config.LoadDotEnv(envFile)
	if envErr != nil && envFile != "" {
		return envErr
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Warn("Error loading .env file", zap.Error(envErr))
	}
	logger.Info("Server Version: Samvaad Gesture Server")

	// Set up Redis connection
	redisClient := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisHost,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 20 * time.Second, // initial connection timeout
	})
	defer redisClient.Close()

	redisCtx, cancelRedis := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelRedis()

	if _, err := redisClient.Ping(redisCtx).Result(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	logger.Info("Successfully connected to Redis")

	gestureAPI := utils.NewGestureAPIClient(cfg.GestureAPIURL, cfg.GestureAPITimeout)
	healthCtx, cancelHealth := context.WithTimeout(context.Background(), cfg.GestureAPITimeout)
	if err := gestureAPI.Health(healthCtx); err != nil {
		logger.Warn("Gesture API is not healthy yet", zap.String("url", cfg.GestureAPIURL), zap.Error(err))
	}
	cancelHealth()

	deps := handlers.SessionDeps{
		Recognizer: gestureAPI,
		Refiner:    gestureAPI,
		Progress: func(learnerID string) handlers.ProgressTracker {
			return utils.NewProgressStore(redisClient, learnerID)
		},
		LiveInterval:      cfg.LiveInterval,
		PracticeInterval:  cfg.PracticeInterval,
		HistorySize:       cfg.HistorySize,
		FrameMaxAge:       cfg.FrameMaxAge,
		HeartbeatInterval: cfg.HeartbeatInterval,
	}

	if cfg.DeepgramAPIKey == "" {
		logger.Warn("DEEPGRAM_API_KEY not set, narration disabled")
	} else {
		speechConfig := utils.DeepgramSpeechConfig{
			APIKey:       cfg.DeepgramAPIKey,
			DefaultModel: cfg.DeepgramTTSModel,
			LocaleModels: map[string]string{"hi-IN": cfg.DeepgramTTSModelHindi},
		}
		deps.Speech = func(sink utils.AudioSink) handlers.SpeechDriver {
			driver, err := utils.NewDeepgramSpeechDriver(speechConfig, sink, logger.Named("deepgram"))
			if err != nil {
				logger.Error("Failed to create speech driver", zap.Error(err))
				return nil
			}
			return driver
		}
	}

	if cfg.SnapshotSource == config.SnapshotSourceCamera {
		camera := utils.NewCameraCapture(cfg.CameraDevice, logger.Named("camera"))
		deps.Snapshots = func(*utils.FrameSource) handlers.SnapshotSource { return camera }
		logger.Info("Capturing frames from local camera", zap.Int("device", cfg.CameraDevice))
	}

	// Define HTTP routes
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handlers.HealthCheckHandler)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handlers.HandleGestureSession(w, r, deps)
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Set up signal handling
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverExit := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("addr", server.Addr))
		serverExit <- server.ListenAndServe()
	}()

	// On termination, close all connections and shut down the server
	select {
	case <-stop:
		logger.Info("Shutting down server...")
	case err := <-serverExit:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server exited unexpectedly", zap.Error(err))
			return err
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown did not finish", zap.Error(err))
	}

	logger.Info("Server shut down gracefully")
	return nil
}
